package app

import (
	"context"
	"strings"

	"gatelink/internal/domain"
)

// StaticPushProvider hands out a push token fixed at startup.
type StaticPushProvider struct {
	platform string
	token    string
}

// NewStaticPushProvider returns a provider for token on platform. Platform
// "none" or an empty token disables registration.
func NewStaticPushProvider(platform, token string) *StaticPushProvider {
	return &StaticPushProvider{platform: strings.ToLower(strings.TrimSpace(platform)), token: strings.TrimSpace(token)}
}

func (p *StaticPushProvider) Platform() string { return p.platform }

func (p *StaticPushProvider) PushToken(context.Context) (string, error) {
	if p.platform == "" || p.platform == "none" {
		return "", nil
	}
	return p.token, nil
}

var _ domain.PushTokenProvider = (*StaticPushProvider)(nil)
