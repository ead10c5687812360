package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"gatelink/internal/domain"
)

// Event is something a Client subscriber is told about. The concrete types
// are StateChanged, ChatReceived, RawEvent, ConnectionLost, ReconnectFailed
// and OfflineQueueEmpty.
type Event interface {
	EventName() string
}

// StateChanged is published with every connection state transition.
type StateChanged struct {
	From, To domain.ConnectionState
}

// ChatReceived carries a decoded chat event.
type ChatReceived struct {
	Chat domain.ChatEvent
}

// RawEvent carries a server event this client has no typed handling for.
type RawEvent struct {
	Name    string
	Payload json.RawMessage
	Seq     *int64
}

// ConnectionLost is published when an established connection drops
// involuntarily, before any reconnect attempt.
type ConnectionLost struct {
	Err error
}

// ReconnectFailed is published once a reconnect sequence gives up.
type ReconnectFailed struct {
	Err error
}

// OfflineQueueEmpty is published after a drain pass that processed at least
// one message and left the queue empty.
type OfflineQueueEmpty struct {
	Sent, Dropped int
}

func (StateChanged) EventName() string      { return "state_changed" }
func (ChatReceived) EventName() string      { return "chat_received" }
func (RawEvent) EventName() string          { return "raw_event" }
func (ConnectionLost) EventName() string    { return "connection_lost" }
func (ReconnectFailed) EventName() string   { return "reconnect_failed" }
func (OfflineQueueEmpty) EventName() string { return "offline_queue_empty" }

// hub fans events out to subscriber channels. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newHub(logger *slog.Logger) *hub {
	return &hub{logger: logger, subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", "subscriber", id, "event", e.EventName())
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
