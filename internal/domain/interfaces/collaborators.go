package interfaces

import (
	"context"

	domaintypes "gatelink/internal/domain/types"
)

// MessageSink receives chat events for rendering. It must not block for long;
// it is called from the connection's receive loop.
type MessageSink interface {
	Deliver(event domaintypes.ChatEvent)
}

// PushTokenProvider yields the platform push token, if any.
//
// Platform is one of "fcm", "apns" or "none". An empty token means push is
// unavailable and registration is skipped.
type PushTokenProvider interface {
	Platform() string
	PushToken(ctx context.Context) (string, error)
}
