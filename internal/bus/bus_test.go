package bus

import (
	"context"
	"testing"
	"time"
)

// TestPublishConsume_Outbound verifies queued messages arrive in order.
func TestPublishConsume_Outbound(t *testing.T) {
	b := New()
	b.PublishOutbound(OutboundMessage{RecipientID: "a", Text: "one"})
	b.PublishOutbound(OutboundMessage{RecipientID: "a", Text: "two"})

	ctx := context.Background()
	msg, ok := b.ConsumeOutbound(ctx)
	if !ok || msg.Text != "one" {
		t.Fatalf("first consume = %+v ok=%v, want text one", msg, ok)
	}
	msg, ok = b.ConsumeOutbound(ctx)
	if !ok || msg.Text != "two" {
		t.Fatalf("second consume = %+v ok=%v, want text two", msg, ok)
	}
}

// TestConsumeOutbound_CancelledContext verifies consumption returns
// ok=false once the context is done instead of blocking forever.
func TestConsumeOutbound_CancelledContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := b.ConsumeOutbound(ctx); ok {
			t.Error("ConsumeOutbound returned ok=true on cancelled context")
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeOutbound did not return on cancelled context")
	}
}

// TestPublishOutbound_FullQueueDrops verifies the queue never blocks the
// publisher: overflow messages are dropped.
func TestPublishOutbound_FullQueueDrops(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboundBuffer+10; i++ {
			b.PublishOutbound(OutboundMessage{RecipientID: "r", Text: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishOutbound blocked on full queue")
	}
}

// TestBroadcast_Subscribers verifies subscribe/unsubscribe and delivery.
func TestBroadcast_Subscribers(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("c1", func(ev Event) { got = append(got, "c1:"+ev.Name) })
	b.Subscribe("c2", func(ev Event) { got = append(got, "c2:"+ev.Name) })

	b.Broadcast(Event{Name: "decision"})
	if len(got) != 2 {
		t.Fatalf("broadcast reached %d subscribers, want 2", len(got))
	}

	b.Unsubscribe("c1")
	got = nil
	b.Broadcast(Event{Name: "health"})
	if len(got) != 1 || got[0] != "c2:health" {
		t.Fatalf("after unsubscribe got %v, want [c2:health]", got)
	}
}
