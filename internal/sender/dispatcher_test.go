package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

// fakeSender records calls and fails on demand.
type fakeSender struct {
	mu    sync.Mutex
	calls []bus.OutboundMessage
	err   error
}

func (f *fakeSender) SendMessage(ctx context.Context, recipientID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bus.OutboundMessage{RecipientID: recipientID, Text: text})
	if f.err != nil {
		return "", f.err
	}
	return "mid", nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// TestDispatcher_SendsQueuedMessages verifies queued replies reach the
// platform client.
func TestDispatcher_SendsQueuedMessages(t *testing.T) {
	msgBus := bus.New()
	fake := &fakeSender{}
	d := NewDispatcher(fake, msgBus, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	msgBus.PublishOutbound(bus.OutboundMessage{RecipientID: "u", Text: "Echo: hi"})
	waitFor(t, func() bool { return fake.callCount() == 1 })
}

// TestDispatcher_FailureIsContained verifies a send failure is reported
// on the event feed and does not stop the dispatcher.
func TestDispatcher_FailureIsContained(t *testing.T) {
	msgBus := bus.New()
	fake := &fakeSender{err: errors.New("platform down")}
	d := NewDispatcher(fake, msgBus, msgBus)

	var mu sync.Mutex
	var results []bus.Event
	msgBus.Subscribe("test", func(ev bus.Event) {
		if ev.Name == protocol.EventSendResult {
			mu.Lock()
			results = append(results, ev)
			mu.Unlock()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	msgBus.PublishOutbound(bus.OutboundMessage{RecipientID: "u", Text: "one"})
	msgBus.PublishOutbound(bus.OutboundMessage{RecipientID: "u", Text: "two"})

	// Both sends attempted despite the first failing: no retry, no halt.
	waitFor(t, func() bool { return fake.callCount() == 2 })
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	payload, ok := results[0].Payload.(map[string]interface{})
	if !ok || payload["ok"] != false {
		t.Errorf("first send result payload = %+v, want ok=false", results[0].Payload)
	}
}

// TestDispatcher_StopsOnCancel verifies Run returns when the context is
// cancelled.
func TestDispatcher_StopsOnCancel(t *testing.T) {
	msgBus := bus.New()
	d := NewDispatcher(&fakeSender{}, msgBus, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
