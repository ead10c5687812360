package wire

import (
	"bytes"
	"encoding/json"
	"errors"
)

// FrameType is the value of a frame's "type" field.
type FrameType string

const (
	FrameRequest  FrameType = "req"
	FrameResponse FrameType = "res"
	FrameEvent    FrameType = "event"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Request is an outbound RPC call.
type Request struct {
	Type   FrameType `json:"type"`
	ID     string    `json:"id"`
	Method string    `json:"method"`
	Params any       `json:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	Type    FrameType   `json:"type"`
	ID      string      `json:"id"`
	OK      bool        `json:"ok"`
	Payload any         `json:"payload,omitempty"`
	Error   *ErrorShape `json:"error,omitempty"`
}

// Event is an unsolicited server push.
type Event struct {
	Type         FrameType `json:"type"`
	Event        string    `json:"event"`
	Payload      any       `json:"payload,omitempty"`
	Seq          *int64    `json:"seq,omitempty"`
	StateVersion any       `json:"stateVersion,omitempty"`
}

type keepalive struct {
	Type FrameType `json:"type"`
}

// Frame is a decoded inbound frame of any type. Only the fields relevant to
// Type are populated.
type Frame struct {
	Type FrameType `json:"type"`

	// req / res
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	// event
	Event        string          `json:"event,omitempty"`
	Seq          *int64          `json:"seq,omitempty"`
	StateVersion json.RawMessage `json:"stateVersion,omitempty"`
}

// EncodeRequest returns the JSON text of a req frame.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	if id == "" || method == "" {
		return nil, errors.New("wire: request needs id and method")
	}
	return json.Marshal(Request{Type: FrameRequest, ID: id, Method: method, Params: params})
}

// EncodeResponse returns the JSON text of a res frame. A nil errShape means ok.
func EncodeResponse(id string, payload any, errShape *ErrorShape) ([]byte, error) {
	return json.Marshal(Response{
		Type:    FrameResponse,
		ID:      id,
		OK:      errShape == nil,
		Payload: payload,
		Error:   errShape,
	})
}

// EncodeEvent returns the JSON text of an event frame.
func EncodeEvent(name string, payload any, seq *int64) ([]byte, error) {
	return json.Marshal(Event{Type: FrameEvent, Event: name, Payload: payload, Seq: seq})
}

// EncodePing returns {"type":"ping"}.
func EncodePing() []byte { return mustKeepalive(FramePing) }

// EncodePong returns {"type":"pong"}.
func EncodePong() []byte { return mustKeepalive(FramePong) }

func mustKeepalive(t FrameType) []byte {
	b, _ := json.Marshal(keepalive{Type: t})
	return b
}

// Decode parses one inbound frame. Frames of a type this package does not
// know are returned as-is so callers can skip them.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if len(bytes.TrimSpace(data)) == 0 {
		return f, &ProtocolError{Op: "decode frame", Err: errors.New("empty frame")}
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, &ProtocolError{Op: "decode frame", Err: err}
	}
	switch f.Type {
	case FrameRequest:
		if f.ID == "" || f.Method == "" {
			return Frame{}, &ProtocolError{Op: "decode frame", Err: errors.New("req without id or method")}
		}
	case FrameResponse:
		if f.ID == "" {
			return Frame{}, &ProtocolError{Op: "decode frame", Err: errors.New("res without id")}
		}
	case FrameEvent:
		if f.Event == "" {
			return Frame{}, &ProtocolError{Op: "decode frame", Err: errors.New("event without name")}
		}
	case FramePing, FramePong:
	case "":
		return Frame{}, &ProtocolError{Op: "decode frame", Err: errors.New("missing type")}
	}
	return f, nil
}

// DecodePayload unmarshals the frame payload into v. An absent payload
// leaves v untouched.
func (f Frame) DecodePayload(v any) error {
	return decodeRaw("decode payload", f.Payload, v)
}

// DecodeParams unmarshals request params into v.
func (f Frame) DecodeParams(v any) error {
	return decodeRaw("decode params", f.Params, v)
}

func decodeRaw(op string, raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}
