package bus

import "context"

// OutboundMessage is a reply queued for delivery through the platform
// send API. Queued fire-and-forget: the webhook acknowledgment never
// waits for the send result.
type OutboundMessage struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
	// DeliveryID correlates the send with the webhook delivery that
	// produced it (for logs and the event feed).
	DeliveryID string `json:"delivery_id,omitempty"`
}

// Event is a server-side event to broadcast to WebSocket clients.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the gateway server and the dispatch engine to decouple from
// the concrete MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts outbound message queueing between the dispatch
// engine and the sender.
type MessageRouter interface {
	PublishOutbound(msg OutboundMessage)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, bool)
}
