package types

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// GatewayEndpoint identifies the gateway this client connects to.
type GatewayEndpoint struct {
	Host   string `json:"host"`
	Port   int    `json:"port,omitempty"`
	Token  string `json:"token,omitempty"`
	Secure bool   `json:"secure"`
}

// IsZero reports whether no host has been configured.
func (e GatewayEndpoint) IsZero() bool { return strings.TrimSpace(e.Host) == "" }

// WebSocketURL returns ws://host[:port] or wss://host[:port].
func (e GatewayEndpoint) WebSocketURL() string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	return e.url(scheme)
}

// Origin returns the http(s) origin that mirrors WebSocketURL's scheme.
func (e GatewayEndpoint) Origin() string {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	return e.url(scheme)
}

func (e GatewayEndpoint) url(scheme string) string {
	host := strings.TrimSpace(e.Host)
	if e.Port > 0 {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(e.Port))
	} else if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	u := url.URL{Scheme: scheme, Host: host}
	return u.String()
}

// LooksSecureHost reports whether host looks like a public or tailnet DNS
// name (and so is probably fronted by TLS) rather than a bare IP, localhost
// or an mDNS .local name. It is a default for "auto" mode, not a guarantee.
func LooksSecureHost(host string) bool {
	h := strings.ToLower(strings.Trim(strings.TrimSpace(host), "[]"))
	if h == "" || h == "localhost" {
		return false
	}
	if net.ParseIP(h) != nil {
		return false
	}
	if strings.HasSuffix(h, ".local") || strings.HasSuffix(h, ".localhost") {
		return false
	}
	return strings.Contains(h, ".")
}
