package devgateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Options configures a Server. The zero value issues challenges, accepts
// any shared token and advertises the default tick interval.
type Options struct {
	Logger *slog.Logger

	// Token, when set, is the shared token connect must present. A device
	// token granted by an earlier hello-ok is accepted too.
	Token string

	// SkipChallenge suppresses connect.challenge; clients must then sign
	// with an empty nonce.
	SkipChallenge bool

	// TickIntervalMs is advertised in hello-ok. Zero omits the policy.
	TickIntervalMs int64

	// IgnoreMethods lists methods that never get a response.
	IgnoreMethods []string

	// ReplyDelay spaces the streamed chat events of an echo reply.
	ReplyDelay time.Duration

	// Registerer receives the server's collectors. Nil uses a private
	// registry.
	Registerer prometheus.Registerer

	Now func() time.Time
}

// Server is an in-memory gateway that speaks the client protocol well
// enough for development and tests.
type Server struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
	store    *memoryStore
	metrics  *serverMetrics

	mu    sync.Mutex
	peers map[*peer]struct{}
	wg    sync.WaitGroup
}

type serverMetrics struct {
	connections *prometheus.CounterVec
	requests    *prometheus.CounterVec
	active      prometheus.Gauge
}

// New returns a Server with its routes mounted.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(opts.Registerer)

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "devgateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // any origin in dev
			},
		},
		store: newMemoryStore(),
		peers: make(map[*peer]struct{}),
		metrics: &serverMetrics{
			connections: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: "devgateway",
				Name:      "connections_total",
				Help:      "WebSocket connections by handshake outcome",
			}, []string{"outcome"}),
			requests: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: "devgateway",
				Name:      "requests_total",
				Help:      "Requests handled by method and result",
			}, []string{"method", "result"}),
			active: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: "devgateway",
				Name:      "active_connections",
				Help:      "Open WebSocket connections",
			}),
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Get("/", s.handleWebSocket)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/admin", func(r chi.Router) {
		r.Post("/drop", s.handleDrop)
		r.Post("/events", s.handleInject)
		r.Get("/push-tokens", s.handlePushTokens)
		r.Get("/sessions/{key}/history", s.handleHistory)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler serving WebSocket and admin routes.
func (s *Server) Handler() http.Handler { return s.router }

// Mount adds extra routes, such as a metrics endpoint, to the router.
func (s *Server) Mount(pattern string, h http.Handler) { s.router.Handle(pattern, h) }

// Connections returns the number of open WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// DropAll closes every open connection abruptly, without a close frame.
func (s *Server) DropAll() int {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.ws.UnderlyingConn().Close()
	}
	if len(peers) > 0 {
		s.logger.Info("dropped connections", "count", len(peers))
	}
	return len(peers)
}

// Broadcast sends an event to every authenticated connection.
func (s *Server) Broadcast(event string, payload any) int {
	n := 0
	for _, p := range s.snapshot() {
		if !p.isAuthed() {
			continue
		}
		if err := p.sendEvent(event, payload); err == nil {
			n++
		}
	}
	return n
}

// PushTokens returns the push registrations received so far.
func (s *Server) PushTokens() []PushRegistration { return s.store.pushTokens() }

// Close drops every connection and waits for their handlers to return.
func (s *Server) Close() {
	s.DropAll()
	s.wg.Wait()
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	p := newPeer(s, ws, r.Header.Get("Origin"))
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.wg.Add(1)
	s.metrics.active.Inc()

	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		s.metrics.active.Dec()
		_ = ws.Close()
		s.wg.Done()
	}()

	p.serve()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) ignores(method string) bool {
	for _, m := range s.opts.IgnoreMethods {
		if m == method {
			return true
		}
	}
	return false
}
