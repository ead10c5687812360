package types

import "time"

// Attachment is a file sent alongside a chat message.
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// QueuedMessage is an outbound chat message held while offline.
//
// Everything except Attempts is fixed at enqueue time.
type QueuedMessage struct {
	ID          string
	SessionKey  SessionKey
	Text        string
	Attachments []Attachment
	EnqueuedAt  time.Time
	Attempts    int
}

// HasAttachments reports whether the message carries files.
func (m QueuedMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Usage carries optional token and cost accounting for a message.
type Usage struct {
	InputTokens  *int64
	OutputTokens *int64
	TotalTokens  *int64
	Cost         *float64
}

// ChatMessage is a gateway chat message mapped for consumers.
type ChatMessage struct {
	Role       string
	Text       string
	Timestamp  time.Time
	StopReason string
	Usage      *Usage
}

// Run states carried by chat events.
const (
	ChatStateStreaming = "streaming"
	ChatStateDelta     = "delta"
	ChatStateFinal     = "final"
	ChatStateAborted   = "aborted"
	ChatStateError     = "error"
)

// ChatEvent is one server-pushed chat update.
type ChatEvent struct {
	SessionKey   SessionKey
	RunID        RunID
	State        string
	Seq          *int64
	Message      *ChatMessage
	ErrorMessage string
}
