package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

// SendReceipt reports what happened to an outbound chat message.
type SendReceipt struct {
	// Queued is true when the client was offline and the message went to
	// the offline queue instead of the gateway.
	Queued   bool
	QueuedID string

	RunID  domain.RunID
	Status string
}

// SendMessage sends text to sessionKey, or queues it while offline.
func (c *Client) SendMessage(ctx context.Context, sessionKey domain.SessionKey, text string) (SendReceipt, error) {
	return c.SendMessageWithAttachments(ctx, sessionKey, text, nil)
}

// SendMessageWithAttachments sends text and files to sessionKey, or queues
// them while offline. Queuing is not an error.
func (c *Client) SendMessageWithAttachments(ctx context.Context, sessionKey domain.SessionKey, text string, attachments []domain.Attachment) (SendReceipt, error) {
	cn := c.liveConn()
	if cn == nil {
		m := c.outbox.Enqueue(sessionKey, text, attachments)
		c.metrics.queueDepth.Set(float64(c.outbox.Len()))
		c.logger.Info("offline, message queued", "id", m.ID, "session", sessionKey, "queued", c.outbox.Len())
		return SendReceipt{Queued: true, QueuedID: m.ID}, nil
	}
	res, err := c.chatSend(ctx, cn, sessionKey, text, attachments, uuid.NewString())
	if err != nil {
		return SendReceipt{}, err
	}
	return SendReceipt{RunID: domain.RunID(res.RunID), Status: res.Status}, nil
}

// SendQueued delivers a message taken from the offline queue. The queued
// id doubles as the idempotency key so a retried message is not duplicated.
func (c *Client) SendQueued(ctx context.Context, m domain.QueuedMessage) error {
	cn := c.liveConn()
	if cn == nil {
		return ErrNotConnected
	}
	_, err := c.chatSend(ctx, cn, m.SessionKey, m.Text, m.Attachments, m.ID)
	return err
}

func (c *Client) chatSend(ctx context.Context, cn *conn, sessionKey domain.SessionKey, text string, attachments []domain.Attachment, key string) (wire.ChatSendResult, error) {
	params := wire.ChatSendParams{
		SessionKey:     string(sessionKey),
		Message:        text,
		Deliver:        false,
		IdempotencyKey: key,
		Attachments:    chatAttachments(attachments),
	}
	var res wire.ChatSendResult
	err := cn.request(ctx, wire.MethodChatSend, params, &res)
	return res, err
}

// GetHistory returns up to limit recent messages of sessionKey. A limit of
// zero lets the gateway choose.
func (c *Client) GetHistory(ctx context.Context, sessionKey domain.SessionKey, limit int) (wire.ChatHistoryResult, error) {
	cn := c.liveConn()
	if cn == nil {
		return wire.ChatHistoryResult{}, ErrNotConnected
	}
	var res wire.ChatHistoryResult
	err := cn.request(ctx, wire.MethodChatHistory, wire.ChatHistoryParams{SessionKey: string(sessionKey), Limit: limit}, &res)
	return res, err
}

// History is GetHistory with messages mapped to domain form.
func (c *Client) History(ctx context.Context, sessionKey domain.SessionKey, limit int) ([]domain.ChatMessage, error) {
	res, err := c.GetHistory(ctx, sessionKey, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(res.Messages))
	for _, m := range res.Messages {
		out = append(out, chatMessage(m))
	}
	return out, nil
}

// Subscribe asks the gateway to push chat events for sessionKey.
func (c *Client) Subscribe(ctx context.Context, sessionKey domain.SessionKey) error {
	cn := c.liveConn()
	if cn == nil {
		return ErrNotConnected
	}
	return cn.request(ctx, wire.MethodChatSubscribe, wire.ChatSubscribeParams{SessionKey: string(sessionKey)}, nil)
}

// GetSessions lists up to limit sessions. A limit of zero lets the gateway
// choose.
func (c *Client) GetSessions(ctx context.Context, limit int) (wire.SessionsListResult, error) {
	cn := c.liveConn()
	if cn == nil {
		return wire.SessionsListResult{}, ErrNotConnected
	}
	var res wire.SessionsListResult
	err := cn.request(ctx, wire.MethodSessionsList, wire.SessionsListParams{Limit: limit}, &res)
	return res, err
}

// RegisterPushToken registers token for platform ("fcm" or "apns") with
// the gateway.
func (c *Client) RegisterPushToken(ctx context.Context, token, platform string) error {
	cn := c.liveConn()
	if cn == nil {
		return ErrNotConnected
	}
	params := wire.PushRegisterParams{PushToken: token, PushPlatform: strings.ToLower(platform)}
	return cn.request(ctx, wire.MethodDevicePushRegister, params, nil)
}

func chatAttachments(in []domain.Attachment) []wire.ChatAttachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]wire.ChatAttachment, 0, len(in))
	for _, a := range in {
		out = append(out, wire.ChatAttachment{
			Type:     attachmentType(a.MimeType),
			MimeType: a.MimeType,
			FileName: a.FileName,
			Content:  crypto.B64(a.Data),
		})
	}
	return out
}

func attachmentType(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return "image"
	}
	return "file"
}
