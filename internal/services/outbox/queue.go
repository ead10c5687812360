package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatelink/internal/domain"
)

// Sender delivers one queued message over a live connection.
type Sender interface {
	SendQueued(ctx context.Context, msg domain.QueuedMessage) error
}

// DrainResult summarises one drain pass.
type DrainResult struct {
	Sent      int
	Dropped   int
	Remaining int
	// Stopped is set when the pass ended early because the connection went
	// away or ctx was cancelled.
	Stopped bool
}

// Processed returns how many messages the pass removed from the queue.
func (r DrainResult) Processed() int { return r.Sent + r.Dropped }

// Queue is a FIFO of messages awaiting a connection. It is safe for
// concurrent use; at most one drain pass runs at a time.
type Queue struct {
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	items []domain.QueuedMessage

	drainMu sync.Mutex
}

// New returns an empty queue.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger, now: time.Now}
}

// Enqueue appends a message and returns the stored record.
func (q *Queue) Enqueue(sessionKey domain.SessionKey, text string, attachments []domain.Attachment) domain.QueuedMessage {
	msg := domain.QueuedMessage{
		ID:          uuid.NewString(),
		SessionKey:  sessionKey,
		Text:        text,
		Attachments: append([]domain.Attachment(nil), attachments...),
		EnqueuedAt:  q.now(),
	}

	q.mu.Lock()
	q.items = append(q.items, msg)
	n := len(q.items)
	q.mu.Unlock()

	q.logger.Info("queued message while offline",
		"id", msg.ID, "session_key", sessionKey, "queue_len", n)
	return msg
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued messages in send order.
func (q *Queue) Snapshot() []domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.QueuedMessage(nil), q.items...)
}

// Clear discards every queued message and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// pop removes and returns the head, incrementing its attempt counter.
func (q *Queue) pop() (domain.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.QueuedMessage{}, false
	}
	msg := q.items[0]
	q.items[0] = domain.QueuedMessage{}
	q.items = q.items[1:]
	msg.Attempts++
	return msg, true
}

// Drain sends queued messages in FIFO order while connected reports true and
// ctx is live. A failed send is logged and the message dropped; the pass
// continues with the next one. Messages left behind when the pass stops early
// stay queued for the next pass.
func (q *Queue) Drain(ctx context.Context, sender Sender, connected func() bool) DrainResult {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var res DrainResult
	for {
		if ctx.Err() != nil || !connected() {
			res.Stopped = q.Len() > 0
			break
		}
		msg, ok := q.pop()
		if !ok {
			break
		}
		if err := sender.SendQueued(ctx, msg); err != nil {
			res.Dropped++
			q.logger.Warn("dropping queued message after send failure",
				"id", msg.ID, "session_key", msg.SessionKey, "attempts", msg.Attempts, "error", err)
			continue
		}
		res.Sent++
		q.logger.Debug("sent queued message", "id", msg.ID, "session_key", msg.SessionKey)
	}
	res.Remaining = q.Len()
	if res.Processed() > 0 {
		q.logger.Info("offline queue drain finished",
			"sent", res.Sent, "dropped", res.Dropped, "remaining", res.Remaining)
	}
	return res
}
