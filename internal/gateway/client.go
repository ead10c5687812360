package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gatelink/internal/domain"
	"gatelink/internal/services/outbox"
	"gatelink/internal/services/reconnect"
)

const tracerName = "gatelink/gateway"

// Client is a resilient, authenticated session with one gateway.
//
// All state transitions happen under stateMu and publish a StateChanged
// event before the lock is released, so subscribers see transitions in
// order.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	identity  domain.IdentityService
	endpoints domain.EndpointStore
	push      domain.PushTokenProvider
	sink      domain.MessageSink
	metrics   *Metrics
	tracer    trace.Tracer

	outbox     *outbox.Queue
	supervisor *reconnect.Supervisor
	hub        *hub

	life       context.Context
	stopLife   context.CancelFunc
	background sync.WaitGroup

	stateMu       sync.Mutex
	state         domain.ConnectionState
	endpoint      domain.GatewayEndpoint
	conn          *conn
	connectCancel context.CancelFunc
	connectGen    uint64
	tickInterval  time.Duration
	deviceToken   string
	closed        bool

	challengeMu sync.Mutex
	challenge   domain.ChallengeState
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEndpointStore persists each endpoint passed to Connect and lets
// ConnectLast reuse it.
func WithEndpointStore(s domain.EndpointStore) Option {
	return func(c *Client) { c.endpoints = s }
}

// WithPushTokenProvider registers the provider's token after every
// successful connect.
func WithPushTokenProvider(p domain.PushTokenProvider) Option {
	return func(c *Client) { c.push = p }
}

// WithMessageSink delivers every chat event to s.
func WithMessageSink(s domain.MessageSink) Option {
	return func(c *Client) { c.sink = s }
}

// WithMetricsRegistry registers the client's collectors with reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = NewMetrics(reg) }
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// New returns a disconnected Client that authenticates with ids.
func New(cfg Config, ids domain.IdentityService, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		identity: ids,
		state:    domain.StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.logger = c.logger.With("component", "gateway")
	c.hub = newHub(c.logger)
	c.outbox = outbox.New(c.logger)
	c.life, c.stopLife = context.WithCancel(context.Background())
	c.supervisor = reconnect.NewSupervisor(c.cfg.Reconnect, c, reconnect.Hooks{
		OnAttempt: func(int, time.Duration) {
			c.metrics.reconnectAttempts.Inc()
		},
		OnReconnected: c.afterConnect,
		OnGiveUp: func(err error) {
			c.metrics.reconnectGiveUps.Inc()
			c.hub.publish(ReconnectFailed{Err: err})
		},
	}, c.logger)
	c.metrics.observeState(domain.StateDisconnected)
	return c
}

// Events subscribes to client events. The returned function unsubscribes
// and closes the channel. Events are dropped for a subscriber whose buffer
// is full.
func (c *Client) Events(buffer int) (<-chan Event, func()) {
	return c.hub.subscribe(buffer)
}

// State returns the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// IsConnected reports whether requests can be sent right now.
func (c *Client) IsConnected() bool {
	return c.liveConn() != nil
}

// Endpoint returns the endpoint of the current or last connection.
func (c *Client) Endpoint() (domain.GatewayEndpoint, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.endpoint, !c.endpoint.IsZero()
}

// DeviceToken returns the device token granted by the last hello-ok, if any.
func (c *Client) DeviceToken() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.deviceToken
}

// TickInterval returns the heartbeat period advertised by the gateway.
func (c *Client) TickInterval() time.Duration {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.tickInterval
}

// Challenge returns the most recent connect.challenge seen.
func (c *Client) Challenge() domain.ChallengeState {
	c.challengeMu.Lock()
	defer c.challengeMu.Unlock()
	return c.challenge
}

// OfflineQueueCount returns the number of messages waiting to be sent.
func (c *Client) OfflineQueueCount() int { return c.outbox.Len() }

// ReconnectAttempt returns the reconnect attempt in progress, or 0.
func (c *Client) ReconnectAttempt() int { return c.supervisor.Attempt() }

// Connect opens an authenticated session with ep. Any running reconnect
// sequence and any existing connection are abandoned first. A failure here
// is returned to the caller and does not start automatic reconnection.
func (c *Client) Connect(ctx context.Context, ep domain.GatewayEndpoint) error {
	if ep.IsZero() {
		return ErrNoEndpoint
	}
	c.supervisor.Cancel()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return ErrClientClosed
	}
	if c.connectCancel != nil {
		c.connectCancel()
	}
	c.connectCancel = cancel
	c.connectGen++
	gen := c.connectGen
	old := c.conn
	c.conn = nil
	c.endpoint = ep
	c.stateMu.Unlock()

	if old != nil {
		old.close()
	}
	if c.endpoints != nil {
		if err := c.endpoints.SaveEndpoint(ep); err != nil {
			c.logger.Warn("saving gateway endpoint failed", "error", err)
		}
	}

	err := c.attempt(ctx, ep)
	if err != nil {
		c.stateMu.Lock()
		if c.connectGen == gen && c.conn == nil {
			c.setStateLocked(domain.StateDisconnected)
		}
		c.stateMu.Unlock()
		return err
	}
	c.afterConnect()
	return nil
}

// ConnectLast connects to the endpoint saved by a previous Connect.
func (c *Client) ConnectLast(ctx context.Context) error {
	if c.endpoints == nil {
		return ErrNoEndpoint
	}
	ep, ok, err := c.endpoints.LoadEndpoint()
	if err != nil {
		return fmt.Errorf("loading gateway endpoint: %w", err)
	}
	if !ok {
		return ErrNoEndpoint
	}
	return c.Connect(ctx, ep)
}

// Disconnect closes the session on purpose. Reconnection stops, pending
// requests are cancelled and the offline queue is discarded.
func (c *Client) Disconnect() {
	c.supervisor.Cancel()

	c.stateMu.Lock()
	if c.connectCancel != nil {
		c.connectCancel()
		c.connectCancel = nil
	}
	cn := c.conn
	c.conn = nil
	if c.state != domain.StateDisconnected {
		c.setStateLocked(domain.StateDisconnecting)
	}
	c.stateMu.Unlock()

	if cn != nil {
		cn.close()
	}
	if n := c.outbox.Clear(); n > 0 {
		c.logger.Info("discarded offline queue", "count", n)
	}
	c.metrics.queueDepth.Set(0)

	c.stateMu.Lock()
	c.setStateLocked(domain.StateDisconnected)
	c.stateMu.Unlock()
}

// Close disconnects, waits for background work to finish and closes every
// subscriber channel. The Client cannot be used afterwards.
func (c *Client) Close() error {
	c.stateMu.Lock()
	c.closed = true
	c.stateMu.Unlock()

	c.Disconnect()
	c.supervisor.Wait()
	c.stopLife()
	c.background.Wait()
	c.hub.close()
	return nil
}

// Attempt makes one connection attempt to the current endpoint. It is
// called by the reconnect supervisor.
func (c *Client) Attempt(ctx context.Context) error {
	c.stateMu.Lock()
	ep := c.endpoint
	c.stateMu.Unlock()
	if ep.IsZero() {
		return ErrNoEndpoint
	}
	return c.attempt(ctx, ep)
}

// Transition moves to state unless ctx is done. It is called by the
// reconnect supervisor.
func (c *Client) Transition(ctx context.Context, state domain.ConnectionState) {
	c.transition(ctx, state)
}

func (c *Client) transition(ctx context.Context, state domain.ConnectionState) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.setStateLocked(state)
	return true
}

func (c *Client) setStateLocked(to domain.ConnectionState) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.metrics.observeState(to)
	c.logger.Debug("connection state changed", "from", from, "to", to)
	c.hub.publish(StateChanged{From: from, To: to})
}

func (c *Client) liveConn() *conn {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != domain.StateConnected {
		return nil
	}
	return c.conn
}

// attempt performs one full handshake and, on success, installs the new
// connection as current.
func (c *Client) attempt(ctx context.Context, ep domain.GatewayEndpoint) (err error) {
	defer func() { c.metrics.connectsTotal.WithLabelValues(outcome(err)).Inc() }()

	if !c.transition(ctx, domain.StateConnecting) {
		return ctx.Err()
	}

	cn, hello, err := c.handshake(ctx, ep)
	if err != nil {
		return err
	}

	c.stateMu.Lock()
	if c.closed || ctx.Err() != nil {
		c.stateMu.Unlock()
		cn.close()
		if c.closed {
			return ErrClientClosed
		}
		return ctx.Err()
	}
	c.conn = cn
	c.tickInterval = time.Duration(hello.TickIntervalMs()) * time.Millisecond
	if hello.Auth != nil && hello.Auth.DeviceToken != "" {
		c.deviceToken = hello.Auth.DeviceToken
	}
	tick := c.tickInterval
	c.setStateLocked(domain.StateConnected)
	c.stateMu.Unlock()

	select {
	case <-cn.done:
		// Dropped between the handshake and installation.
		go c.connectionLost(cn, cn.cause())
	default:
		go cn.heartbeat(tick)
	}

	c.logger.Info("connected to gateway", "url", ep.WebSocketURL(), "protocol", hello.Protocol, "tick", tick)
	return nil
}

// connectionLost hands an involuntary drop of the current connection to
// the reconnect supervisor.
func (c *Client) connectionLost(cn *conn, err error) {
	c.stateMu.Lock()
	if c.conn != cn {
		c.stateMu.Unlock()
		return
	}
	c.conn = nil
	if c.closed || c.state == domain.StateDisconnecting || c.endpoint.IsZero() {
		c.setStateLocked(domain.StateDisconnected)
		c.stateMu.Unlock()
		return
	}
	c.stateMu.Unlock()

	c.logger.Warn("gateway connection lost", "error", err)
	c.hub.publish(ConnectionLost{Err: err})
	c.supervisor.Trigger(err)
}

// afterConnect drains the offline queue and registers the push token in
// the background.
func (c *Client) afterConnect() {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.drain()
	}()

	if c.push == nil {
		return
	}
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.registerPush()
	}()
}

func (c *Client) drain() {
	if c.outbox.Len() == 0 {
		return
	}
	res := c.outbox.Drain(c.life, c, c.IsConnected)
	c.metrics.queueSent.Add(float64(res.Sent))
	c.metrics.queueDropped.Add(float64(res.Dropped))
	c.metrics.queueDepth.Set(float64(res.Remaining))
	if res.Processed() > 0 && res.Remaining == 0 {
		c.hub.publish(OfflineQueueEmpty{Sent: res.Sent, Dropped: res.Dropped})
	}
}

func (c *Client) registerPush() {
	token, err := c.push.PushToken(c.life)
	if err != nil {
		c.logger.Warn("push token unavailable", "error", err)
		return
	}
	if token == "" {
		return
	}
	if err := c.RegisterPushToken(c.life, token, c.push.Platform()); err != nil {
		c.logger.Warn("push token registration failed", "error", err)
	}
}
