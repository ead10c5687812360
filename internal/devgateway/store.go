package devgateway

import (
	"sort"
	"sync"

	"gatelink/internal/protocol/wire"
)

// PushRegistration is one device.push.register call.
type PushRegistration struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"pushToken"`
	Platform string `json:"pushPlatform"`
}

type session struct {
	key       string
	messages  []wire.ChatMessage
	updatedAt int64
	tokensIn  int64
	tokensOut int64
}

// memoryStore holds every session, device token and push registration.
// All state is lost on exit.
type memoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	deviceTokens map[string]string // device id -> token
	idempotency  map[string]string // idempotency key -> run id
	push         []PushRegistration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:     make(map[string]*session),
		deviceTokens: make(map[string]string),
		idempotency:  make(map[string]string),
	}
}

func (m *memoryStore) appendMessage(key string, msg wire.ChatMessage, at int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		s = &session{key: key}
		m.sessions[key] = s
	}
	s.messages = append(s.messages, msg)
	s.updatedAt = at
	if u := msg.Usage; u != nil {
		if u.Input != nil {
			s.tokensIn += *u.Input
		}
		if u.Output != nil {
			s.tokensOut += *u.Output
		}
	}
}

// history returns up to limit of the newest messages, oldest first.
func (m *memoryStore) history(key string, limit int) []wire.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return []wire.ChatMessage{}
	}
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]wire.ChatMessage(nil), msgs...)
}

// list returns up to limit sessions, most recently updated first.
func (m *memoryStore) list(limit int) []wire.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]wire.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		updated := s.updatedAt
		in, outTok := s.tokensIn, s.tokensOut
		total := in + outTok
		out = append(out, wire.SessionSummary{
			Key:          s.key,
			Kind:         "direct",
			DisplayName:  s.key,
			UpdatedAt:    &updated,
			InputTokens:  &in,
			OutputTokens: &outTok,
			TotalTokens:  &total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].UpdatedAt != *out[j].UpdatedAt {
			return *out[i].UpdatedAt > *out[j].UpdatedAt
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// runFor returns the run already started for key, or records run.
func (m *memoryStore) runFor(key, run string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.idempotency[key]; ok {
		return prev, true
	}
	m.idempotency[key] = run
	return run, false
}

func (m *memoryStore) deviceToken(deviceID string, mint func() string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.deviceTokens[deviceID]; ok {
		return t
	}
	t := mint()
	m.deviceTokens[deviceID] = t
	return t
}

func (m *memoryStore) isDeviceToken(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.deviceTokens {
		if t == token {
			return true
		}
	}
	return false
}

func (m *memoryStore) addPush(r PushRegistration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push = append(m.push, r)
}

func (m *memoryStore) pushTokens() []PushRegistration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PushRegistration(nil), m.push...)
}
