package sender

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

// Sender abstracts the platform send call for the dispatcher.
type Sender interface {
	SendMessage(ctx context.Context, recipientID, text string) (string, error)
}

// Dispatcher consumes outbound messages from the bus and performs the
// platform send. One consumer goroutine; each send result is logged and
// broadcast but never propagated — a failed send must not affect the
// delivery that produced it.
type Dispatcher struct {
	client Sender
	router bus.MessageRouter
	events bus.EventPublisher
	tracer trace.Tracer
}

// NewDispatcher creates the outbound dispatcher.
func NewDispatcher(client Sender, router bus.MessageRouter, events bus.EventPublisher) *Dispatcher {
	return &Dispatcher{
		client: client,
		router: router,
		events: events,
		tracer: otel.Tracer("pagerelay/sender"),
	}
}

// Run consumes the outbound queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("outbound dispatcher started")
	for {
		msg, ok := d.router.ConsumeOutbound(ctx)
		if !ok {
			slog.Info("outbound dispatcher stopped")
			return
		}
		d.send(ctx, msg)
	}
}

func (d *Dispatcher) send(ctx context.Context, msg bus.OutboundMessage) {
	sendCtx, span := d.tracer.Start(ctx, "sender.send",
		trace.WithAttributes(attribute.String("recipient.id", msg.RecipientID)))
	defer span.End()

	messageID, err := d.client.SendMessage(sendCtx, msg.RecipientID, msg.Text)
	if err != nil {
		slog.Error("send failed",
			"recipient_id", msg.RecipientID,
			"delivery_id", msg.DeliveryID,
			"error", err,
		)
		d.broadcast(msg, false, err)
		return
	}

	slog.Debug("reply sent",
		"recipient_id", msg.RecipientID,
		"message_id", messageID,
		"delivery_id", msg.DeliveryID,
	)
	d.broadcast(msg, true, nil)
}

func (d *Dispatcher) broadcast(msg bus.OutboundMessage, ok bool, err error) {
	if d.events == nil {
		return
	}
	payload := map[string]interface{}{
		"conversation_id": msg.RecipientID,
		"delivery_id":     msg.DeliveryID,
		"ok":              ok,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	d.events.Broadcast(bus.Event{Name: protocol.EventSendResult, Payload: payload})
}
