package bus

import (
	"context"
	"log/slog"
	"sync"
)

// outboundBuffer bounds the queue of pending sends. Replies beyond the
// buffer are dropped (best-effort delivery, never blocks the webhook
// acknowledgment path).
const outboundBuffer = 256

// MessageBus carries outbound replies to the sender dispatcher and
// broadcasts operational events to WebSocket subscribers.
// Safe for concurrent use.
type MessageBus struct {
	outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

// New creates a message bus.
func New() *MessageBus {
	return &MessageBus{
		outbound:    make(chan OutboundMessage, outboundBuffer),
		subscribers: make(map[string]EventHandler),
	}
}

// PublishOutbound queues a reply for the sender. Never blocks: if the
// queue is full the message is dropped and logged.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Error("outbound queue full, dropping reply",
			"recipient_id", msg.RecipientID,
			"delivery_id", msg.DeliveryID,
		)
	}
}

// ConsumeOutbound blocks until a message is available or ctx is done.
// Returns ok=false on cancellation.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}

// Subscribe registers an event handler under an id. A second Subscribe
// with the same id replaces the handler.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes an event handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers an event to all subscribers. Handlers run on the
// caller's goroutine and must not block.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
