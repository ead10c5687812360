package app

import (
	"fmt"
	"strings"

	"gatelink/internal/domain"
	"gatelink/internal/gateway"
)

// TLSMode selects transport security for the gateway connection.
type TLSMode string

const (
	// TLSAuto uses wss for DNS names and ws for IPs, localhost and .local.
	TLSAuto TLSMode = "auto"
	TLSOn   TLSMode = "on"
	TLSOff  TLSMode = "off"
)

// ParseTLSMode accepts auto, on or off (case-insensitive). Empty means auto.
func ParseTLSMode(s string) (TLSMode, error) {
	switch m := TLSMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TLSAuto, nil
	case TLSAuto, TLSOn, TLSOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid tls mode %q (want auto, on or off)", s)
	}
}

// Secure reports whether host should be dialled with wss under mode.
func (m TLSMode) Secure(host string) bool {
	switch m {
	case TLSOn:
		return true
	case TLSOff:
		return false
	default:
		return domain.LooksSecureHost(host)
	}
}

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string // config directory, e.g. $HOME/.gatelink
	Passphrase string // optional; seals the device private key at rest

	Host  string // gateway host; empty reuses the last saved endpoint
	Port  int
	Token string
	TLS   TLSMode

	PushToken    string
	PushPlatform string // fcm, apns or none

	LogLevel string

	Gateway gateway.Config
}

// Endpoint returns the endpoint described by the host flags, or false when
// no host was given.
func (c Config) Endpoint() (domain.GatewayEndpoint, bool) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return domain.GatewayEndpoint{}, false
	}
	return domain.GatewayEndpoint{
		Host:   host,
		Port:   c.Port,
		Token:  c.Token,
		Secure: c.TLS.Secure(host),
	}, true
}
