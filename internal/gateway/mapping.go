package gateway

import (
	"time"

	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

func chatEvent(p wire.ChatEventPayload) domain.ChatEvent {
	ev := domain.ChatEvent{
		SessionKey:   domain.SessionKey(p.SessionKey),
		RunID:        domain.RunID(p.RunID),
		State:        p.State,
		Seq:          p.Seq,
		ErrorMessage: p.ErrorMessage,
	}
	if p.Message != nil {
		m := chatMessage(*p.Message)
		ev.Message = &m
	}
	return ev
}

func chatMessage(m wire.ChatMessage) domain.ChatMessage {
	out := domain.ChatMessage{
		Role:       m.Role,
		Text:       m.Content.Text(),
		StopReason: m.StopReason,
	}
	if m.Timestamp != nil {
		out.Timestamp = time.UnixMilli(*m.Timestamp)
	}
	if u := m.Usage; u != nil {
		out.Usage = &domain.Usage{
			InputTokens:  u.Input,
			OutputTokens: u.Output,
			TotalTokens:  u.TotalTokens,
		}
		if u.Cost != nil {
			out.Usage.Cost = u.Cost.Total
		}
	}
	return out
}
