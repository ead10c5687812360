package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

// conn is one physical WebSocket connection. It owns the socket, the
// pending request table and the receive loop. A conn is never reused: once
// done is closed it stays dead.
type conn struct {
	ws      *websocket.Conn
	cfg     *Config
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	pending *pendingTable
	writeMu sync.Mutex

	// onEvent runs on the receive loop for every event frame.
	onEvent func(wire.Frame)
	// onLost runs once if the connection fails without close being called.
	onLost func(err error)

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func dial(ctx context.Context, ep domain.GatewayEndpoint, cfg *Config) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Origin", ep.Origin())
	if cfg.UserAgent != "" {
		header.Set("User-Agent", cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.DialTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, ep.WebSocketURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", ep.WebSocketURL(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", ep.WebSocketURL(), err)
	}
	ws.SetReadLimit(cfg.MaxMessageBytes)
	return ws, nil
}

func newConn(ws *websocket.Conn, cfg *Config, logger *slog.Logger, m *Metrics, tracer trace.Tracer) *conn {
	return &conn{
		ws:      ws,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		tracer:  tracer,
		pending: newPendingTable(),
		done:    make(chan struct{}),
	}
}

// readLoop decodes inbound frames until the socket fails. Any receive or
// decode error tears the connection down.
func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("receive: %w", err))
			return
		}
		frame, err := wire.Decode(data)
		if err != nil {
			c.fail(err)
			return
		}

		switch frame.Type {
		case wire.FrameResponse:
			if !c.pending.resolve(frame) {
				c.logger.Debug("response for unknown request", "id", frame.ID)
			}
		case wire.FrameEvent:
			c.metrics.eventsTotal.WithLabelValues(frame.Event).Inc()
			if c.onEvent != nil {
				c.onEvent(frame)
			}
		case wire.FramePong:
			c.logger.Debug("pong received")
		case wire.FramePing:
			if err := c.write(wire.EncodePong()); err != nil {
				c.logger.Debug("pong write failed", "error", err)
			}
		case wire.FrameRequest:
			c.logger.Warn("ignoring server request", "method", frame.Method, "id", frame.ID)
		default:
			c.logger.Debug("ignoring unknown frame type", "type", frame.Type)
		}
	}
}

// heartbeat sends a ping every interval until the connection is done.
func (c *conn) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(wire.EncodePing()); err != nil {
				c.logger.Debug("heartbeat stopped", "error", err)
				return
			}
		}
	}
}

func (c *conn) write(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// request sends method and waits for the correlated response, decoding its
// payload into out when out is non-nil.
func (c *conn) request(ctx context.Context, method string, params, out any) (err error) {
	id := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "gateway.request "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "gateway"),
			attribute.String("rpc.method", method),
			attribute.String("rpc.request_id", id),
		))
	start := time.Now()
	defer func() {
		c.metrics.requestsTotal.WithLabelValues(method, outcome(err)).Inc()
		c.metrics.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ch, err := c.pending.add(id)
	if err != nil {
		return err
	}
	data, err := wire.EncodeRequest(id, method, params)
	if err != nil {
		c.pending.remove(id)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if err := c.write(data); err != nil {
		c.pending.remove(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if !r.frame.OK {
			rpcErr := &RPCError{Method: method, Message: "request failed"}
			if r.frame.Error != nil {
				rpcErr.Code = r.frame.Error.Code
				rpcErr.Message = r.frame.Error.Message
			}
			return rpcErr
		}
		if out == nil {
			return nil
		}
		return r.frame.DecodePayload(out)
	case <-ctx.Done():
		c.pending.remove(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", method, ErrRequestTimeout)
		}
		return ctx.Err()
	}
}

// close shuts the connection down without reporting it as lost.
func (c *conn) close() {
	c.shutdown(nil, false)
}

// fail shuts the connection down and reports err through onLost.
func (c *conn) fail(err error) {
	c.shutdown(err, true)
}

func (c *conn) shutdown(cause error, lost bool) {
	c.closeOnce.Do(func() {
		c.err = cause
		close(c.done)

		// WriteControl may run concurrently with WriteMessage.
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()

		if n := c.pending.closeAll(ErrRequestCancelled); n > 0 {
			c.logger.Debug("cancelled pending requests", "count", n)
		}
		if lost && c.onLost != nil {
			c.onLost(cause)
		}
	})
}

// cause returns the error that ended the connection, or
// ErrConnectionClosed after an orderly close.
func (c *conn) cause() error {
	<-c.done
	if c.err != nil {
		return c.err
	}
	return ErrConnectionClosed
}
