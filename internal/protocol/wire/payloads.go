package wire

import (
	"encoding/json"
	"strings"
)

// ProtocolVersion is the only gateway protocol version spoken here.
const ProtocolVersion = 3

// DefaultTickIntervalMs applies when hello-ok carries no policy.
const DefaultTickIntervalMs = 15000

// Methods.
const (
	MethodConnect            = "connect"
	MethodChatSend           = "chat.send"
	MethodChatHistory        = "chat.history"
	MethodChatSubscribe      = "chat.subscribe"
	MethodSessionsList       = "sessions.list"
	MethodDevicePushRegister = "device.push.register"
)

// Events.
const (
	EventConnectChallenge = "connect.challenge"
	EventChat             = "chat"
)

// ClientInfo describes this client to the gateway.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"`
}

// AuthInfo carries the shared gateway token, if any.
type AuthInfo struct {
	Token string `json:"token,omitempty"`
}

// DeviceAuth is the signed device block of a connect request.
type DeviceAuth struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	SignedAt  int64  `json:"signedAt"`
	Nonce     string `json:"nonce,omitempty"`
}

// ConnectParams are the params of the connect request.
type ConnectParams struct {
	MinProtocol int             `json:"minProtocol"`
	MaxProtocol int             `json:"maxProtocol"`
	Client      ClientInfo      `json:"client"`
	Role        string          `json:"role"`
	Scopes      []string        `json:"scopes"`
	Caps        []string        `json:"caps"`
	Commands    []string        `json:"commands"`
	Permissions map[string]bool `json:"permissions"`
	Auth        AuthInfo        `json:"auth"`
	Locale      string          `json:"locale,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
	Device      DeviceAuth      `json:"device"`
}

// ChallengePayload is the payload of connect.challenge.
type ChallengePayload struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// HelloPolicy is the connection policy advertised in hello-ok.
type HelloPolicy struct {
	TickIntervalMs int64 `json:"tickIntervalMs,omitempty"`
}

// HelloAuth is the auth grant advertised in hello-ok.
type HelloAuth struct {
	DeviceToken string   `json:"deviceToken,omitempty"`
	Role        string   `json:"role,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// HelloOK is the payload of a successful connect response.
type HelloOK struct {
	Type     string      `json:"type"`
	Protocol int         `json:"protocol"`
	Policy   HelloPolicy `json:"policy"`
	Auth     *HelloAuth  `json:"auth,omitempty"`
}

// TickIntervalMs returns the advertised heartbeat period or the default.
func (h HelloOK) TickIntervalMs() int64 {
	if h.Policy.TickIntervalMs > 0 {
		return h.Policy.TickIntervalMs
	}
	return DefaultTickIntervalMs
}

// ChatAttachment is a file inlined into chat.send as base64.
type ChatAttachment struct {
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName,omitempty"`
	Content  string `json:"content"`
}

// ChatSendParams are the params of chat.send.
type ChatSendParams struct {
	SessionKey     string           `json:"sessionKey"`
	Message        string           `json:"message"`
	Deliver        bool             `json:"deliver"`
	IdempotencyKey string           `json:"idempotencyKey"`
	Attachments    []ChatAttachment `json:"attachments,omitempty"`
}

// ChatSendResult is the payload of a chat.send response.
type ChatSendResult struct {
	RunID  string `json:"runId,omitempty"`
	Status string `json:"status,omitempty"`
}

// ChatHistoryParams are the params of chat.history.
type ChatHistoryParams struct {
	SessionKey string `json:"sessionKey"`
	Limit      int    `json:"limit,omitempty"`
}

// ChatHistoryResult is the payload of a chat.history response.
type ChatHistoryResult struct {
	SessionKey    string        `json:"sessionKey"`
	SessionID     string        `json:"sessionId,omitempty"`
	Messages      []ChatMessage `json:"messages"`
	ThinkingLevel string        `json:"thinkingLevel,omitempty"`
}

// ChatSubscribeParams are the params of chat.subscribe.
type ChatSubscribeParams struct {
	SessionKey string `json:"sessionKey"`
}

// SessionsListParams are the params of sessions.list.
type SessionsListParams struct {
	Limit int `json:"limit,omitempty"`
}

// SessionSummary is one entry of sessions.list.
type SessionSummary struct {
	Key           string   `json:"key"`
	Kind          string   `json:"kind,omitempty"`
	DisplayName   string   `json:"displayName,omitempty"`
	Label         string   `json:"label,omitempty"`
	UpdatedAt     *int64   `json:"updatedAt,omitempty"`
	Model         string   `json:"model,omitempty"`
	InputTokens   *int64   `json:"inputTokens,omitempty"`
	OutputTokens  *int64   `json:"outputTokens,omitempty"`
	TotalTokens   *int64   `json:"totalTokens,omitempty"`
	ContextTokens *int64   `json:"contextTokens,omitempty"`
	CostUSD       *float64 `json:"costUsd,omitempty"`
}

// SessionsListResult is the payload of a sessions.list response.
type SessionsListResult struct {
	Count    int              `json:"count"`
	Sessions []SessionSummary `json:"sessions"`
}

// PushRegisterParams are the params of device.push.register.
type PushRegisterParams struct {
	PushToken    string `json:"pushToken"`
	PushPlatform string `json:"pushPlatform"`
}

// Cost is the optional cost breakdown of a message, in USD.
type Cost struct {
	Input  *float64 `json:"input,omitempty"`
	Output *float64 `json:"output,omitempty"`
	Total  *float64 `json:"total,omitempty"`
}

// Usage is the optional token accounting of a message.
type Usage struct {
	Input       *int64 `json:"input,omitempty"`
	Output      *int64 `json:"output,omitempty"`
	CacheRead   *int64 `json:"cacheRead,omitempty"`
	CacheWrite  *int64 `json:"cacheWrite,omitempty"`
	TotalTokens *int64 `json:"totalTokens,omitempty"`
	Cost        *Cost  `json:"cost,omitempty"`
}

// ContentBlock is one part of a message body.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Content is a message body. On the wire it is either a plain string or an
// array of content blocks; both decode into a block slice.
type Content []ContentBlock

// UnmarshalJSON accepts a string or an array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{{Type: "text", Text: s}}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*c = blocks
	return nil
}

// Text joins the text blocks with newlines.
func (c Content) Text() string {
	var parts []string
	for _, b := range c {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ChatMessage is a message as the gateway sends it.
type ChatMessage struct {
	Role       string  `json:"role"`
	Content    Content `json:"content,omitempty"`
	Timestamp  *int64  `json:"timestamp,omitempty"`
	StopReason string  `json:"stopReason,omitempty"`
	Usage      *Usage  `json:"usage,omitempty"`
}

// ChatEventPayload is the payload of a chat event.
type ChatEventPayload struct {
	SessionKey   string       `json:"sessionKey"`
	RunID        string       `json:"runId,omitempty"`
	State        string       `json:"state,omitempty"`
	Seq          *int64       `json:"seq,omitempty"`
	Message      *ChatMessage `json:"message,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}
