package devgateway

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

// Error codes returned in failed responses.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeProtocolMismatch = "PROTOCOL_MISMATCH"
	CodeUnknownMethod    = "UNKNOWN_METHOD"
)

// peer is one client connection.
type peer struct {
	srv    *Server
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nonce    string
	authed   bool
	deviceID string
	seq      int64
	subs     map[string]bool
}

func newPeer(s *Server, ws *websocket.Conn, origin string) *peer {
	return &peer{
		srv:    s,
		ws:     ws,
		logger: s.logger.With("remote", ws.RemoteAddr().String(), "origin", origin),
		subs:   make(map[string]bool),
	}
}

func (p *peer) serve() {
	if !p.srv.opts.SkipChallenge {
		nonce := uuid.NewString()
		p.mu.Lock()
		p.nonce = nonce
		p.mu.Unlock()
		challenge := wire.ChallengePayload{Nonce: nonce, TS: p.srv.opts.Now().UnixMilli()}
		if err := p.sendEvent(wire.EventConnectChallenge, challenge); err != nil {
			p.logger.Debug("challenge write failed", "error", err)
			return
		}
	}

	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			p.logger.Debug("connection closed", "error", err)
			return
		}
		f, err := wire.Decode(data)
		if err != nil {
			p.logger.Warn("bad frame", "error", err)
			return
		}
		switch f.Type {
		case wire.FramePing:
			_ = p.write(wire.EncodePong())
		case wire.FrameRequest:
			p.handle(f)
		default:
			p.logger.Debug("ignoring frame", "type", f.Type)
		}
	}
}

func (p *peer) handle(f wire.Frame) {
	if p.srv.ignores(f.Method) {
		p.logger.Debug("not answering", "method", f.Method)
		return
	}

	var (
		payload any
		shape   *wire.ErrorShape
		after   func()
	)
	if f.Method != wire.MethodConnect && !p.isAuthed() {
		shape = &wire.ErrorShape{Code: CodeUnauthorized, Message: "connect first"}
	} else {
		switch f.Method {
		case wire.MethodConnect:
			payload, shape = p.connect(f)
		case wire.MethodChatSend:
			payload, shape, after = p.chatSend(f)
		case wire.MethodChatHistory:
			payload, shape = p.chatHistory(f)
		case wire.MethodChatSubscribe:
			payload, shape = p.chatSubscribe(f)
		case wire.MethodSessionsList:
			payload, shape = p.sessionsList(f)
		case wire.MethodDevicePushRegister:
			payload, shape = p.pushRegister(f)
		default:
			shape = &wire.ErrorShape{Code: CodeUnknownMethod, Message: "unknown method " + f.Method}
		}
	}

	result := "ok"
	if shape != nil {
		result = shape.Code
	}
	p.srv.metrics.requests.WithLabelValues(f.Method, result).Inc()

	data, err := wire.EncodeResponse(f.ID, payload, shape)
	if err != nil {
		p.logger.Error("encode response", "method", f.Method, "error", err)
		return
	}
	if err := p.write(data); err != nil {
		p.logger.Debug("response write failed", "error", err)
		return
	}
	if after != nil {
		go after()
	}
}

func invalid(err error) *wire.ErrorShape {
	return &wire.ErrorShape{Code: CodeInvalidRequest, Message: err.Error()}
}

func (p *peer) connect(f wire.Frame) (any, *wire.ErrorShape) {
	var params wire.ConnectParams
	if err := f.DecodeParams(&params); err != nil {
		return nil, invalid(err)
	}
	if params.MinProtocol > wire.ProtocolVersion || params.MaxProtocol < wire.ProtocolVersion {
		p.srv.metrics.connections.WithLabelValues("protocol").Inc()
		return nil, &wire.ErrorShape{
			Code:    CodeProtocolMismatch,
			Message: fmt.Sprintf("server speaks protocol %d", wire.ProtocolVersion),
		}
	}
	if err := p.verify(params); err != nil {
		p.srv.metrics.connections.WithLabelValues("rejected").Inc()
		p.logger.Warn("connect rejected", "device", params.Device.ID, "error", err)
		return nil, &wire.ErrorShape{Code: CodeUnauthorized, Message: err.Error()}
	}

	token := p.srv.store.deviceToken(params.Device.ID, uuid.NewString)
	p.mu.Lock()
	p.authed = true
	p.deviceID = params.Device.ID
	p.mu.Unlock()
	p.srv.metrics.connections.WithLabelValues("ok").Inc()
	p.logger.Info("device connected", "device", params.Device.ID, "client", params.Client.ID, "mode", params.Client.Mode)

	hello := wire.HelloOK{
		Type:     "hello-ok",
		Protocol: wire.ProtocolVersion,
		Policy:   wire.HelloPolicy{TickIntervalMs: p.srv.opts.TickIntervalMs},
		Auth:     &wire.HelloAuth{DeviceToken: token, Role: params.Role, Scopes: params.Scopes},
	}
	return hello, nil
}

// verify checks the token, the device id derivation, the nonce and the
// signature of a connect request.
func (p *peer) verify(params wire.ConnectParams) error {
	if want := p.srv.opts.Token; want != "" && params.Auth.Token != want && !p.srv.store.isDeviceToken(params.Auth.Token) {
		return fmt.Errorf("invalid token")
	}

	d := params.Device
	pub, err := crypto.FromB64URL(d.PublicKey)
	if err != nil || len(pub) != 32 {
		return fmt.Errorf("malformed public key")
	}
	if crypto.DeriveDeviceID(pub) != domain.DeviceID(d.ID) {
		return fmt.Errorf("device id does not match public key")
	}

	p.mu.Lock()
	nonce := p.nonce
	p.mu.Unlock()
	if d.Nonce != nonce {
		return fmt.Errorf("nonce mismatch")
	}

	sig, err := crypto.FromB64URL(d.Signature)
	if err != nil {
		return fmt.Errorf("malformed signature")
	}
	payload := crypto.BuildAuthPayload(
		d.ID, params.Client.ID, params.Client.Mode, params.Role,
		params.Scopes, d.SignedAt, params.Auth.Token, d.Nonce,
	)
	var key domain.Ed25519Public
	copy(key[:], pub)
	if !crypto.VerifyEd25519(key, []byte(payload), sig) {
		return fmt.Errorf("bad signature")
	}
	return nil
}

func (p *peer) chatSend(f wire.Frame) (any, *wire.ErrorShape, func()) {
	var params wire.ChatSendParams
	if err := f.DecodeParams(&params); err != nil {
		return nil, invalid(err), nil
	}
	if strings.TrimSpace(params.SessionKey) == "" {
		return nil, invalid(fmt.Errorf("sessionKey is required")), nil
	}

	run := uuid.NewString()
	if params.IdempotencyKey != "" {
		prev, dup := p.srv.store.runFor(params.IdempotencyKey, run)
		if dup {
			return wire.ChatSendResult{RunID: prev, Status: "in_flight"}, nil, nil
		}
	}

	now := p.srv.opts.Now().UnixMilli()
	user := wire.ChatMessage{Role: "user", Content: wire.Content{{Type: "text", Text: params.Message}}, Timestamp: &now}
	for _, a := range params.Attachments {
		user.Content = append(user.Content, wire.ContentBlock{Type: a.Type, MimeType: a.MimeType, Data: a.Content})
	}
	p.srv.store.appendMessage(params.SessionKey, user, now)

	p.mu.Lock()
	p.subs[params.SessionKey] = true
	p.mu.Unlock()

	reply := func() { p.srv.streamReply(params.SessionKey, run, params.Message, len(params.Attachments)) }
	return wire.ChatSendResult{RunID: run, Status: "started"}, nil, reply
}

func (p *peer) chatHistory(f wire.Frame) (any, *wire.ErrorShape) {
	var params wire.ChatHistoryParams
	if err := f.DecodeParams(&params); err != nil {
		return nil, invalid(err)
	}
	if params.SessionKey == "" {
		return nil, invalid(fmt.Errorf("sessionKey is required"))
	}
	return wire.ChatHistoryResult{
		SessionKey: params.SessionKey,
		SessionID:  params.SessionKey,
		Messages:   p.srv.store.history(params.SessionKey, params.Limit),
	}, nil
}

func (p *peer) chatSubscribe(f wire.Frame) (any, *wire.ErrorShape) {
	var params wire.ChatSubscribeParams
	if err := f.DecodeParams(&params); err != nil {
		return nil, invalid(err)
	}
	if params.SessionKey == "" {
		return nil, invalid(fmt.Errorf("sessionKey is required"))
	}
	p.mu.Lock()
	p.subs[params.SessionKey] = true
	p.mu.Unlock()
	return map[string]any{"subscribed": params.SessionKey}, nil
}

func (p *peer) sessionsList(f wire.Frame) (any, *wire.ErrorShape) {
	var params wire.SessionsListParams
	if len(f.Params) > 0 {
		if err := f.DecodeParams(&params); err != nil {
			return nil, invalid(err)
		}
	}
	sessions := p.srv.store.list(params.Limit)
	return wire.SessionsListResult{Count: len(sessions), Sessions: sessions}, nil
}

func (p *peer) pushRegister(f wire.Frame) (any, *wire.ErrorShape) {
	var params wire.PushRegisterParams
	if err := f.DecodeParams(&params); err != nil {
		return nil, invalid(err)
	}
	switch params.PushPlatform {
	case "fcm", "apns":
	default:
		return nil, invalid(fmt.Errorf("unsupported push platform %q", params.PushPlatform))
	}
	if params.PushToken == "" {
		return nil, invalid(fmt.Errorf("pushToken is required"))
	}
	p.mu.Lock()
	device := p.deviceID
	p.mu.Unlock()
	p.srv.store.addPush(PushRegistration{DeviceID: device, Token: params.PushToken, Platform: params.PushPlatform})
	return map[string]any{"registered": true}, nil
}

func (p *peer) isAuthed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authed
}

func (p *peer) subscribed(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[key]
}

func (p *peer) sendEvent(event string, payload any) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	data, err := wire.EncodeEvent(event, payload, &seq)
	if err != nil {
		return err
	}
	return p.write(data)
}

func (p *peer) write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.ws.WriteMessage(websocket.TextMessage, data)
}
