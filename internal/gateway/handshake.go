package gateway

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

// handshake dials ep, waits briefly for a challenge, and authenticates.
// The returned conn's receive loop is already running.
func (c *Client) handshake(ctx context.Context, ep domain.GatewayEndpoint) (_ *conn, _ wire.HelloOK, err error) {
	ctx, span := c.tracer.Start(ctx, "gateway.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.url", ep.WebSocketURL()),
			attribute.Bool("gateway.secure", ep.Secure),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ident, err := c.identity.LoadOrCreate()
	if err != nil {
		return nil, wire.HelloOK{}, &AuthError{Err: err}
	}

	ws, err := dial(ctx, ep, &c.cfg)
	if err != nil {
		return nil, wire.HelloOK{}, err
	}

	cn := newConn(ws, &c.cfg, c.logger, c.metrics, c.tracer)
	challenged := make(chan struct{}, 1)
	cn.onEvent = func(f wire.Frame) { c.handleEvent(f, challenged) }
	cn.onLost = func(err error) { c.connectionLost(cn, err) }

	// Only a challenge received on this socket may be signed.
	c.setChallenge(domain.ChallengeState{})
	go cn.readLoop()

	timer := time.NewTimer(c.cfg.ChallengeTimeout)
	select {
	case <-challenged:
		timer.Stop()
	case <-timer.C:
		c.logger.Debug("no connect challenge received, signing without nonce")
	case <-cn.done:
		timer.Stop()
		return nil, wire.HelloOK{}, cn.cause()
	case <-ctx.Done():
		timer.Stop()
		cn.close()
		return nil, wire.HelloOK{}, ctx.Err()
	}

	params, err := c.connectParams(ident, ep)
	if err != nil {
		cn.close()
		return nil, wire.HelloOK{}, err
	}

	var hello wire.HelloOK
	if err := cn.request(ctx, wire.MethodConnect, params, &hello); err != nil {
		cn.close()
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return nil, wire.HelloOK{}, &AuthError{Err: err}
		}
		return nil, wire.HelloOK{}, err
	}
	span.SetAttributes(attribute.Int("gateway.protocol", hello.Protocol))
	return cn, hello, nil
}

// connectParams builds the signed connect request from the current
// challenge, or from a local timestamp and an empty nonce when there is none.
func (c *Client) connectParams(ident domain.DeviceIdentity, ep domain.GatewayEndpoint) (wire.ConnectParams, error) {
	ch := c.Challenge()
	signedAt := ch.TS
	if ch.Nonce == "" || signedAt == 0 {
		signedAt = time.Now().UnixMilli()
	}

	token := ep.Token
	if token == "" {
		token = c.DeviceToken()
	}

	payload := crypto.BuildAuthPayload(
		string(ident.DeviceID), c.cfg.ClientID, c.cfg.ClientMode, c.cfg.Role,
		c.cfg.Scopes, signedAt, token, ch.Nonce,
	)
	sig, err := c.identity.Sign([]byte(payload), ident)
	if err != nil {
		return wire.ConnectParams{}, &AuthError{Err: err}
	}

	return wire.ConnectParams{
		MinProtocol: wire.ProtocolVersion,
		MaxProtocol: wire.ProtocolVersion,
		Client: wire.ClientInfo{
			ID:          c.cfg.ClientID,
			DisplayName: c.cfg.ClientDisplayName,
			Version:     c.cfg.ClientVersion,
			Platform:    c.cfg.Platform,
			Mode:        c.cfg.ClientMode,
		},
		Role:        c.cfg.Role,
		Scopes:      c.cfg.Scopes,
		Caps:        c.cfg.Caps,
		Commands:    c.cfg.Commands,
		Permissions: c.cfg.Permissions,
		Auth:        wire.AuthInfo{Token: token},
		Locale:      c.cfg.Locale,
		UserAgent:   c.cfg.UserAgent,
		Device: wire.DeviceAuth{
			ID:        string(ident.DeviceID),
			PublicKey: crypto.B64URL(ident.PublicKey.Slice()),
			Signature: sig,
			SignedAt:  signedAt,
			Nonce:     ch.Nonce,
		},
	}, nil
}

func (c *Client) setChallenge(ch domain.ChallengeState) {
	c.challengeMu.Lock()
	c.challenge = ch
	c.challengeMu.Unlock()
}

// handleEvent runs on a connection's receive loop.
func (c *Client) handleEvent(f wire.Frame, challenged chan<- struct{}) {
	switch f.Event {
	case wire.EventConnectChallenge:
		var p wire.ChallengePayload
		if err := f.DecodePayload(&p); err != nil {
			c.logger.Warn("malformed connect challenge", "error", err)
			return
		}
		c.setChallenge(domain.ChallengeState{Nonce: p.Nonce, TS: p.TS})
		select {
		case challenged <- struct{}{}:
		default:
		}

	case wire.EventChat:
		var p wire.ChatEventPayload
		if err := f.DecodePayload(&p); err != nil {
			c.logger.Warn("malformed chat event", "error", err)
			return
		}
		ev := chatEvent(p)
		if c.sink != nil {
			c.sink.Deliver(ev)
		}
		c.hub.publish(ChatReceived{Chat: ev})

	default:
		c.logger.Debug("unhandled gateway event", "event", f.Event, "seq", f.Seq)
		c.hub.publish(RawEvent{Name: f.Event, Payload: f.Payload, Seq: f.Seq})
	}
}
