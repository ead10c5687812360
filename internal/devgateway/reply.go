package devgateway

import (
	"fmt"
	"strings"
	"time"

	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

// streamReply echoes text back to the session as a run: one delta event per
// word, then a final event carrying the whole reply and its usage.
func (s *Server) streamReply(sessionKey, run, text string, attachments int) {
	reply := "echo: " + text
	if attachments > 0 {
		reply += fmt.Sprintf(" (+%d attachment(s))", attachments)
	}

	words := strings.Fields(reply)
	for i := range words {
		partial := strings.Join(words[:i+1], " ")
		s.publishChat(sessionKey, wire.ChatEventPayload{
			SessionKey: sessionKey,
			RunID:      run,
			State:      domain.ChatStateDelta,
			Message: &wire.ChatMessage{
				Role:    "assistant",
				Content: wire.Content{{Type: "text", Text: partial}},
			},
		})
		if s.opts.ReplyDelay > 0 {
			time.Sleep(s.opts.ReplyDelay)
		}
	}

	now := s.opts.Now().UnixMilli()
	in, out := int64(len(strings.Fields(text))), int64(len(words))
	total := in + out
	final := wire.ChatMessage{
		Role:       "assistant",
		Content:    wire.Content{{Type: "text", Text: reply}},
		Timestamp:  &now,
		StopReason: "stop",
		Usage:      &wire.Usage{Input: &in, Output: &out, TotalTokens: &total},
	}
	s.store.appendMessage(sessionKey, final, now)
	s.publishChat(sessionKey, wire.ChatEventPayload{
		SessionKey: sessionKey,
		RunID:      run,
		State:      domain.ChatStateFinal,
		Message:    &final,
	})
}

// publishChat sends a chat event to every peer subscribed to sessionKey.
func (s *Server) publishChat(sessionKey string, payload wire.ChatEventPayload) {
	for _, p := range s.snapshot() {
		if !p.isAuthed() || !p.subscribed(sessionKey) {
			continue
		}
		if err := p.sendEvent(wire.EventChat, payload); err != nil {
			p.logger.Debug("chat event write failed", "error", err)
		}
	}
}
