package wire_test

import (
	"errors"
	"testing"

	"gatelink/internal/protocol/wire"
)

func TestEncodeRequest_StableFieldOrder(t *testing.T) {
	b, err := wire.EncodeRequest("abc", wire.MethodChatHistory, wire.ChatHistoryParams{SessionKey: "main", Limit: 20})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	want := `{"type":"req","id":"abc","method":"chat.history","params":{"sessionKey":"main","limit":20}}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}

	if _, err := wire.EncodeRequest("", "x", nil); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestEncodeKeepalive(t *testing.T) {
	if got := string(wire.EncodePing()); got != `{"type":"ping"}` {
		t.Fatalf("ping = %s", got)
	}
	if got := string(wire.EncodePong()); got != `{"type":"pong"}` {
		t.Fatalf("pong = %s", got)
	}
}

func TestChatSendParams_OmitsEmptyAttachments(t *testing.T) {
	b, err := wire.EncodeRequest("1", wire.MethodChatSend, wire.ChatSendParams{
		SessionKey: "main", Message: "hi", Deliver: false, IdempotencyKey: "k",
	})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	want := `{"type":"req","id":"1","method":"chat.send","params":{"sessionKey":"main","message":"hi","deliver":false,"idempotencyKey":"k"}}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}
}

func TestDecode_Response(t *testing.T) {
	f, err := wire.Decode([]byte(`{"type":"res","id":"r1","ok":true,"payload":{"type":"hello-ok","protocol":3,"policy":{"tickIntervalMs":5000},"extra":1}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != wire.FrameResponse || f.ID != "r1" || !f.OK {
		t.Fatalf("unexpected frame %+v", f)
	}
	var hello wire.HelloOK
	if err := f.DecodePayload(&hello); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if hello.TickIntervalMs() != 5000 || hello.Protocol != 3 {
		t.Fatalf("unexpected hello %+v", hello)
	}
}

func TestDecode_ErrorResponse(t *testing.T) {
	f, err := wire.Decode([]byte(`{"type":"res","id":"r2","ok":false,"error":{"code":"UNAUTHORIZED","message":"bad signature"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.OK || f.Error == nil || f.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestHelloOK_DefaultTick(t *testing.T) {
	if got := (wire.HelloOK{}).TickIntervalMs(); got != wire.DefaultTickIntervalMs {
		t.Fatalf("tick = %d, want %d", got, wire.DefaultTickIntervalMs)
	}
}

func TestDecode_ChatEvent(t *testing.T) {
	raw := `{"type":"event","event":"chat","seq":4,"stateVersion":{"presence":1},
		"payload":{"sessionKey":"main","runId":"run-1","state":"final",
		"message":{"role":"assistant","content":[{"type":"text","text":"hello"},{"type":"thinking","thinking":"hm"},{"type":"text","text":"world"}],
		"usage":{"input":10,"output":5,"cost":{"total":0.0012}}}}}`
	f, err := wire.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Seq == nil || *f.Seq != 4 {
		t.Fatalf("seq = %v", f.Seq)
	}
	var p wire.ChatEventPayload
	if err := f.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.Message == nil || p.Message.Content.Text() != "hello\nworld" {
		t.Fatalf("unexpected message %+v", p.Message)
	}
	if p.Message.Usage.Input == nil || *p.Message.Usage.Input != 10 {
		t.Fatal("missing input tokens")
	}
	if p.Message.Usage.Cost.Total == nil || *p.Message.Usage.Cost.Total != 0.0012 {
		t.Fatal("missing cost")
	}
	if p.Message.Usage.TotalTokens != nil {
		t.Fatal("absent optional field should stay nil")
	}
}

func TestContent_AcceptsPlainString(t *testing.T) {
	f, err := wire.Decode([]byte(`{"type":"event","event":"chat","payload":{"sessionKey":"s","message":{"role":"user","content":"plain"}}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var p wire.ChatEventPayload
	if err := f.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.Message.Content.Text() != "plain" {
		t.Fatalf("text = %q", p.Message.Content.Text())
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":           ``,
		"not json":        `{"type":`,
		"missing type":    `{"id":"x"}`,
		"res without id":  `{"type":"res","ok":true}`,
		"event sans name": `{"type":"event"}`,
		"req sans method": `{"type":"req","id":"1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wire.Decode([]byte(raw))
			var pe *wire.ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProtocolError, got %v", err)
			}
		})
	}
}

func TestDecode_UnknownTypePassesThrough(t *testing.T) {
	f, err := wire.Decode([]byte(`{"type":"hello-future","x":1}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != "hello-future" {
		t.Fatalf("type = %q", f.Type)
	}
}

func TestDecodePayload_TypeMismatch(t *testing.T) {
	f, err := wire.Decode([]byte(`{"type":"event","event":"connect.challenge","payload":{"nonce":5}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var c wire.ChallengePayload
	var pe *wire.ProtocolError
	if err := f.DecodePayload(&c); !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestDecode_ErrorCodeStringOrNumber(t *testing.T) {
	cases := []struct {
		name, frame, code string
	}{
		{"string", `{"type":"res","id":"1","ok":false,"error":{"code":"UNAUTHORIZED","message":"no"}}`, "UNAUTHORIZED"},
		{"number", `{"type":"res","id":"1","ok":false,"error":{"code":401,"message":"no"}}`, "401"},
		{"missing", `{"type":"res","id":"1","ok":false,"error":{"message":"no"}}`, ""},
		{"null", `{"type":"res","id":"1","ok":false,"error":{"code":null,"message":"no"}}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := wire.Decode([]byte(tc.frame))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if f.Error == nil || f.Error.Code != tc.code || f.Error.Message != "no" {
				t.Fatalf("error = %+v, want code %q", f.Error, tc.code)
			}
		})
	}

	if _, err := wire.Decode([]byte(`{"type":"res","id":"1","ok":false,"error":{"code":{},"message":"no"}}`)); err == nil {
		t.Fatal("object code should not decode")
	}
}
