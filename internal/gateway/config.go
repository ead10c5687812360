package gateway

import (
	"runtime"
	"time"

	"gatelink/internal/services/reconnect"
)

// Config describes this client to the gateway and bounds its waits.
type Config struct {
	ClientID          string
	ClientDisplayName string
	ClientVersion     string
	Platform          string
	ClientMode        string
	Role              string
	Scopes            []string
	Caps              []string
	Commands          []string
	Permissions       map[string]bool
	Locale            string
	UserAgent         string

	// RequestTimeout bounds every request from send to response.
	RequestTimeout time.Duration
	// ChallengeTimeout bounds the wait for an optional connect.challenge.
	ChallengeTimeout time.Duration
	// DialTimeout bounds the WebSocket opening handshake.
	DialTimeout time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// MaxMessageBytes caps inbound frame size.
	MaxMessageBytes int64

	Reconnect reconnect.Policy
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		ClientID:         "cli",
		ClientVersion:    "0.1.0",
		Platform:         runtime.GOOS,
		ClientMode:       "cli",
		Role:             "operator",
		Scopes:           []string{"operator.read", "operator.write"},
		Locale:           "en-US",
		UserAgent:        "gatelink/0.1.0",
		RequestTimeout:   30 * time.Second,
		ChallengeTimeout: 2 * time.Second,
		DialTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageBytes:  16 << 20,
		Reconnect:        reconnect.DefaultPolicy(),
	}
}

// withDefaults fills zero durations and limits from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ChallengeTimeout <= 0 {
		c.ChallengeTimeout = d.ChallengeTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect = d.Reconnect
	}
	if c.Caps == nil {
		c.Caps = []string{}
	}
	if c.Commands == nil {
		c.Commands = []string{}
	}
	if c.Permissions == nil {
		c.Permissions = map[string]bool{}
	}
	return c
}
