package gateway

import (
	"testing"

	"gatelink/internal/domain"
	"gatelink/internal/protocol/wire"
)

func TestHub_DropsWhenSubscriberIsFull(t *testing.T) {
	h := newHub(quietLogger())
	slow, _ := h.subscribe(1)
	fast, _ := h.subscribe(8)

	for i := 0; i < 3; i++ {
		h.publish(OfflineQueueEmpty{Sent: i})
	}

	if got := len(slow); got != 1 {
		t.Fatalf("slow subscriber holds %d events, want 1", got)
	}
	if got := len(fast); got != 3 {
		t.Fatalf("fast subscriber holds %d events, want 3", got)
	}
	if e := (<-slow).(OfflineQueueEmpty); e.Sent != 0 {
		t.Fatalf("slow got %+v, want the first event", e)
	}
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	h := newHub(quietLogger())
	ch, unsubscribe := h.subscribe(4)
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}

	other, _ := h.subscribe(4)
	h.close()
	if _, ok := <-other; ok {
		t.Fatal("channel should be closed after close")
	}
	late, _ := h.subscribe(4)
	if _, ok := <-late; ok {
		t.Fatal("subscribing to a closed hub yields a closed channel")
	}
	h.publish(StateChanged{From: domain.StateDisconnected, To: domain.StateConnecting})
}

func TestPendingTable(t *testing.T) {
	p := newPendingTable()
	a, err := p.add("a")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := p.add("b")

	if !p.resolve(wire.Frame{Type: wire.FrameResponse, ID: "a", OK: true}) {
		t.Fatal("resolve a")
	}
	if p.resolve(wire.Frame{Type: wire.FrameResponse, ID: "a", OK: true}) {
		t.Fatal("a resolved twice")
	}
	if r := <-a; r.err != nil || !r.frame.OK {
		t.Fatalf("a = %+v", r)
	}

	if n := p.closeAll(ErrRequestCancelled); n != 1 {
		t.Fatalf("closeAll cancelled %d", n)
	}
	if r := <-b; r.err != ErrRequestCancelled {
		t.Fatalf("b = %+v", r)
	}
	if _, err := p.add("c"); err != ErrRequestCancelled {
		t.Fatalf("add after close = %v", err)
	}
	if p.len() != 0 {
		t.Fatalf("len = %d", p.len())
	}
}

func TestChatMessageMapping(t *testing.T) {
	ts, in, out := int64(1700000000000), int64(3), int64(5)
	total := 2.5
	m := chatMessage(wire.ChatMessage{
		Role:      "assistant",
		Content:   wire.Content{{Type: "thinking", Thinking: "hmm"}, {Type: "text", Text: "a"}, {Type: "text", Text: "b"}},
		Timestamp: &ts,
		Usage:     &wire.Usage{Input: &in, Output: &out, Cost: &wire.Cost{Total: &total}},
	})
	if m.Text != "a\nb" {
		t.Fatalf("text = %q", m.Text)
	}
	if m.Timestamp.UnixMilli() != ts {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}
	if m.Usage == nil || *m.Usage.InputTokens != 3 || *m.Usage.OutputTokens != 5 || m.Usage.TotalTokens != nil || *m.Usage.Cost != 2.5 {
		t.Fatalf("usage = %+v", m.Usage)
	}

	ev := chatEvent(wire.ChatEventPayload{SessionKey: "s", RunID: "r", State: "error", ErrorMessage: "boom"})
	if ev.Message != nil || ev.ErrorMessage != "boom" || ev.RunID != "r" {
		t.Fatalf("event = %+v", ev)
	}
}
