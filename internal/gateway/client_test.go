package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"gatelink/internal/devgateway"
	"gatelink/internal/domain"
	"gatelink/internal/services/identity"
	"gatelink/internal/services/reconnect"
	"gatelink/internal/store"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChallengeTimeout = 200 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	cfg.Reconnect = reconnect.Policy{
		MaxAttempts:    3,
		BaseDelay:      10 * time.Millisecond,
		MaxDelay:       40 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
	return cfg
}

type harness struct {
	gw  *devgateway.Server
	srv *httptest.Server
	ep  domain.GatewayEndpoint
}

func startGateway(t *testing.T, opts devgateway.Options) *harness {
	t.Helper()
	opts.Logger = quietLogger()
	gw := devgateway.New(opts)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
	})

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return &harness{gw: gw, srv: srv, ep: domain.GatewayEndpoint{Host: host, Port: port, Token: opts.Token}}
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()
	ids := identity.New(store.NewIdentityFileStore(t.TempDir(), ""), quietLogger())
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c := New(cfg, ids, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitEvent reads events until match returns true or the deadline passes.
func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func stateIs(s domain.ConnectionState) func(Event) bool {
	return func(e Event) bool {
		sc, ok := e.(StateChanged)
		return ok && sc.To == s
	}
}

func TestConnect_Handshake(t *testing.T) {
	h := startGateway(t, devgateway.Options{Token: "secret", TickIntervalMs: 5000})
	c := newTestClient(t, testConfig())
	events, unsubscribe := c.Events(32)
	defer unsubscribe()

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() || c.State() != domain.StateConnected {
		t.Fatalf("state = %v", c.State())
	}
	if c.TickInterval() != 5*time.Second {
		t.Fatalf("tick = %v", c.TickInterval())
	}
	if c.DeviceToken() == "" {
		t.Fatal("device token not captured")
	}
	if c.Challenge().Nonce == "" {
		t.Fatal("challenge not recorded")
	}

	first := waitEvent(t, events, func(Event) bool { return true }).(StateChanged)
	second := waitEvent(t, events, func(Event) bool { return true }).(StateChanged)
	if first.From != domain.StateDisconnected || first.To != domain.StateConnecting || second.To != domain.StateConnected {
		t.Fatalf("transitions = %+v, %+v", first, second)
	}
}

func TestConnect_WithoutChallenge(t *testing.T) {
	h := startGateway(t, devgateway.Options{SkipChallenge: true})
	cfg := testConfig()
	cfg.ChallengeTimeout = 50 * time.Millisecond
	c := newTestClient(t, cfg)

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Challenge().IsZero() {
		t.Fatalf("challenge = %+v, want none", c.Challenge())
	}
	if c.TickInterval() != 15*time.Second {
		t.Fatalf("tick = %v, want default", c.TickInterval())
	}
}

func TestConnect_RejectedIsAuthError(t *testing.T) {
	h := startGateway(t, devgateway.Options{Token: "secret"})
	c := newTestClient(t, testConfig())

	ep := h.ep
	ep.Token = "wrong"
	err := c.Connect(context.Background(), ep)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != devgateway.CodeUnauthorized {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
	time.Sleep(50 * time.Millisecond)
	if c.ReconnectAttempt() != 0 || c.State() != domain.StateDisconnected {
		t.Fatal("a failed explicit connect must not start reconnecting")
	}
}

func TestConnect_UnreachableFails(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	ep := h.ep
	h.gw.Close()
	h.srv.Close()

	c := newTestClient(t, testConfig())
	if err := c.Connect(context.Background(), ep); err == nil {
		t.Fatal("expected dial failure")
	}
	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
}

func TestConnect_EmptyEndpoint(t *testing.T) {
	c := newTestClient(t, testConfig())
	if err := c.Connect(context.Background(), domain.GatewayEndpoint{}); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("err = %v", err)
	}
}

func TestConnectLast_UsesSavedEndpoint(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	endpoints := store.NewEndpointFileStore(t.TempDir())

	first := newTestClient(t, testConfig(), WithEndpointStore(endpoints))
	if err := first.ConnectLast(context.Background()); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("ConnectLast with nothing saved: %v", err)
	}
	if err := first.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	first.Disconnect()

	second := newTestClient(t, testConfig(), WithEndpointStore(endpoints))
	if err := second.ConnectLast(context.Background()); err != nil {
		t.Fatalf("ConnectLast: %v", err)
	}
	if got, _ := second.Endpoint(); got != h.ep {
		t.Fatalf("endpoint = %+v, want %+v", got, h.ep)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ChatEvent
}

func (s *recordingSink) Deliver(e domain.ChatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestSendMessage_StreamsChatEvents(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	sink := &recordingSink{}
	c := newTestClient(t, testConfig(), WithMessageSink(sink))
	events, unsubscribe := c.Events(64)
	defer unsubscribe()

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	receipt, err := c.SendMessage(context.Background(), "main", "hi gateway")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if receipt.Queued || receipt.RunID == "" {
		t.Fatalf("receipt = %+v", receipt)
	}

	e := waitEvent(t, events, func(e Event) bool {
		cr, ok := e.(ChatReceived)
		return ok && cr.Chat.State == domain.ChatStateFinal
	}).(ChatReceived)
	if e.Chat.RunID != receipt.RunID || e.Chat.SessionKey != "main" {
		t.Fatalf("chat = %+v", e.Chat)
	}
	if e.Chat.Message == nil || e.Chat.Message.Text != "echo: hi gateway" || e.Chat.Message.Role != "assistant" {
		t.Fatalf("message = %+v", e.Chat.Message)
	}
	if u := e.Chat.Message.Usage; u == nil || u.TotalTokens == nil || *u.TotalTokens == 0 {
		t.Fatalf("usage = %+v", u)
	}
	if sink.len() < 2 {
		t.Fatalf("sink saw %d events, want deltas and a final", sink.len())
	}

	history, err := c.History(context.Background(), "main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Text != "hi gateway" {
		t.Fatalf("history = %+v", history)
	}

	sessions, err := c.GetSessions(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if sessions.Count != 1 || sessions.Sessions[0].Key != "main" {
		t.Fatalf("sessions = %+v", sessions)
	}
	if err := c.Subscribe(context.Background(), "other"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
}

func TestSendMessageWithAttachments(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig())
	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}

	files := []domain.Attachment{{FileName: "a.png", MimeType: "image/png", Data: []byte{1, 2, 3}}}
	if _, err := c.SendMessageWithAttachments(context.Background(), "main", "look", files); err != nil {
		t.Fatal(err)
	}
	msgs, err := devgateway.NewAdminClient(h.srv.URL).History("main", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) == 0 || msgs[0].Role != "user" {
		t.Fatalf("history = %+v", msgs)
	}
	var image bool
	for _, b := range msgs[0].Content {
		if b.Type == "image" && b.MimeType == "image/png" && b.Data == "AQID" {
			image = true
		}
	}
	if !image {
		t.Fatalf("attachment not forwarded: %+v", msgs[0].Content)
	}
}

func TestOfflineMessagesAreQueuedAndDrained(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig())
	events, unsubscribe := c.Events(64)
	defer unsubscribe()

	for _, text := range []string{"one", "two"} {
		r, err := c.SendMessage(context.Background(), "main", text)
		if err != nil {
			t.Fatalf("offline send returned error: %v", err)
		}
		if !r.Queued || r.QueuedID == "" {
			t.Fatalf("receipt = %+v, want queued", r)
		}
	}
	if c.OfflineQueueCount() != 2 {
		t.Fatalf("queue = %d", c.OfflineQueueCount())
	}

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	e := waitEvent(t, events, func(e Event) bool {
		_, ok := e.(OfflineQueueEmpty)
		return ok
	}).(OfflineQueueEmpty)
	if e.Sent != 2 || e.Dropped != 0 {
		t.Fatalf("drain = %+v", e)
	}
	if c.OfflineQueueCount() != 0 {
		t.Fatalf("queue = %d after drain", c.OfflineQueueCount())
	}

	msgs, err := devgateway.NewAdminClient(h.srv.URL).History("main", 0)
	if err != nil {
		t.Fatal(err)
	}
	var users []string
	for _, m := range msgs {
		if m.Role == "user" {
			users = append(users, m.Content.Text())
		}
	}
	if len(users) != 2 || users[0] != "one" || users[1] != "two" {
		t.Fatalf("delivered = %v, want FIFO order", users)
	}
}

func TestDisconnect_ClearsQueue(t *testing.T) {
	c := newTestClient(t, testConfig())
	if _, err := c.SendMessage(context.Background(), "main", "later"); err != nil {
		t.Fatal(err)
	}
	c.Disconnect()
	if c.OfflineQueueCount() != 0 {
		t.Fatalf("queue = %d after Disconnect", c.OfflineQueueCount())
	}
	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
}

func TestRequests_NotConnected(t *testing.T) {
	c := newTestClient(t, testConfig())
	ctx := context.Background()

	if _, err := c.GetHistory(ctx, "main", 0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("GetHistory: %v", err)
	}
	if _, err := c.GetSessions(ctx, 0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("GetSessions: %v", err)
	}
	if err := c.Subscribe(ctx, "main"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.RegisterPushToken(ctx, "t", "fcm"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("RegisterPushToken: %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	h := startGateway(t, devgateway.Options{IgnoreMethods: []string{"chat.history"}})
	cfg := testConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	c := newTestClient(t, cfg)
	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}

	_, err := c.GetHistory(context.Background(), "main", 0)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("err = %v, want ErrRequestTimeout", err)
	}
	cn := c.liveConn()
	if cn == nil {
		t.Fatal("a timed out request must not drop the connection")
	}
	if n := cn.pending.len(); n != 0 {
		t.Fatalf("pending = %d after timeout", n)
	}
}

func TestDisconnect_CancelsPendingRequests(t *testing.T) {
	h := startGateway(t, devgateway.Options{IgnoreMethods: []string{"chat.history"}})
	c := newTestClient(t, testConfig())
	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := c.GetHistory(context.Background(), "main", 0)
		errc <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for c.liveConn().pending.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	c.Disconnect()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrRequestCancelled) {
			t.Fatalf("err = %v, want ErrRequestCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not cancelled")
	}
}

func TestConnectionLoss_Reconnects(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig())
	events, unsubscribe := c.Events(64)
	defer unsubscribe()

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, events, stateIs(domain.StateConnected))

	if n := h.gw.DropAll(); n != 1 {
		t.Fatalf("dropped %d", n)
	}
	waitEvent(t, events, func(e Event) bool {
		_, ok := e.(ConnectionLost)
		return ok
	})
	waitEvent(t, events, stateIs(domain.StateReconnecting))
	waitEvent(t, events, stateIs(domain.StateConnected))

	if !c.IsConnected() {
		t.Fatal("not connected after reconnect")
	}
	if _, err := c.SendMessage(context.Background(), "main", "still here"); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
}

func TestConnectionLoss_GivesUp(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig())
	events, unsubscribe := c.Events(64)
	defer unsubscribe()

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	h.gw.Close()
	h.srv.Close()

	e := waitEvent(t, events, func(e Event) bool {
		_, ok := e.(ReconnectFailed)
		return ok
	}).(ReconnectFailed)
	if !errors.Is(e.Err, reconnect.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", e.Err)
	}
	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
	if c.ReconnectAttempt() != 0 {
		t.Fatalf("attempt = %d after giving up", c.ReconnectAttempt())
	}

	r, err := c.SendMessage(context.Background(), "main", "offline")
	if err != nil || !r.Queued {
		t.Fatalf("receipt = %+v, err = %v", r, err)
	}
}

type staticPush struct{ token string }

func (p staticPush) Platform() string                          { return "fcm" }
func (p staticPush) PushToken(context.Context) (string, error) { return p.token, nil }

func TestPushTokenRegisteredAfterConnect(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig(), WithPushTokenProvider(staticPush{token: "tok-1"}))
	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(h.gw.PushTokens()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	regs := h.gw.PushTokens()
	if len(regs) != 1 || regs[0].Token != "tok-1" || regs[0].Platform != "fcm" {
		t.Fatalf("registrations = %+v", regs)
	}
}

func TestUnknownEventsArePublishedRaw(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	c := newTestClient(t, testConfig())
	events, unsubscribe := c.Events(64)
	defer unsubscribe()
	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}

	if n := h.gw.Broadcast("presence", map[string]int{"online": 3}); n != 1 {
		t.Fatalf("broadcast reached %d", n)
	}
	e := waitEvent(t, events, func(e Event) bool {
		_, ok := e.(RawEvent)
		return ok
	}).(RawEvent)
	if e.Name != "presence" || string(e.Payload) != `{"online":3}` || e.Seq == nil {
		t.Fatalf("raw = %+v", e)
	}
}

func TestClose_ClosesSubscriberChannels(t *testing.T) {
	c := newTestClient(t, testConfig())
	events, _ := c.Events(1)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	for range events {
	}
	if err := c.Connect(context.Background(), domain.GatewayEndpoint{Host: "127.0.0.1"}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("Connect after Close: %v", err)
	}
}

func TestNewClient_StartsIdle(t *testing.T) {
	c := newTestClient(t, testConfig())

	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
	if c.IsConnected() {
		t.Fatal("fresh client reports connected")
	}
	if n := c.OfflineQueueCount(); n != 0 {
		t.Fatalf("queue = %d", n)
	}
	if n := c.ReconnectAttempt(); n != 0 {
		t.Fatalf("attempt = %d", n)
	}
	if c.DeviceToken() != "" {
		t.Fatal("fresh client has a device token")
	}
}

func TestDisconnect_CancelsReconnectInProgress(t *testing.T) {
	h := startGateway(t, devgateway.Options{})
	cfg := testConfig()
	cfg.Reconnect.BaseDelay = 300 * time.Millisecond
	cfg.Reconnect.MaxDelay = 300 * time.Millisecond
	c := newTestClient(t, cfg)
	events, unsubscribe := c.Events(64)
	defer unsubscribe()

	if err := c.Connect(context.Background(), h.ep); err != nil {
		t.Fatal(err)
	}
	h.gw.Close()
	h.srv.Close()
	waitEvent(t, events, stateIs(domain.StateReconnecting))

	c.Disconnect()
	if c.State() != domain.StateDisconnected {
		t.Fatalf("state = %v after cancelling reconnect", c.State())
	}
	if n := c.ReconnectAttempt(); n != 0 {
		t.Fatalf("attempt = %d after cancelling reconnect", n)
	}

	// The cancelled sequence must not move the state again.
	time.Sleep(2 * cfg.Reconnect.BaseDelay)
	if c.State() != domain.StateDisconnected || c.ReconnectAttempt() != 0 {
		t.Fatalf("state = %v attempt = %d after the cancelled delay", c.State(), c.ReconnectAttempt())
	}

	h2 := startGateway(t, devgateway.Options{})
	if err := c.Connect(context.Background(), h2.ep); err != nil {
		t.Fatalf("Connect after cancelled reconnect: %v", err)
	}
	waitEvent(t, events, stateIs(domain.StateConnected))

	// A later drop still reaches the same supervisor.
	if n := h2.gw.DropAll(); n != 1 {
		t.Fatalf("dropped %d", n)
	}
	waitEvent(t, events, stateIs(domain.StateReconnecting))
	waitEvent(t, events, stateIs(domain.StateConnected))
	if !c.IsConnected() {
		t.Fatal("not connected after second drop")
	}
}
