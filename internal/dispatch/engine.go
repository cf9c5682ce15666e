// Package dispatch applies the thread-control state machine: given a
// classified inbound event and current ownership state it mutates
// ownership (handoff events only) and produces at most one outbound
// reply. Events within one delivery are applied sequentially, so a
// handoff takes effect before any later event in the same delivery.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/internal/thread"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

// Decision is the outcome of processing one event. At most one reply.
type Decision struct {
	Action         string // protocol.ActionReply or protocol.ActionNoAction
	ConversationID string
	ReplyText      string
}

// Engine consumes classified events, reads and writes the ownership
// store, and queues replies on the bus. Stateless apart from the
// injected store; safe for concurrent use across deliveries.
type Engine struct {
	store  thread.ControlStore
	router bus.MessageRouter
	events bus.EventPublisher
	cfg    *config.Config
	tracer trace.Tracer
}

// NewEngine creates a dispatch engine around an injected ownership store.
func NewEngine(store thread.ControlStore, router bus.MessageRouter, events bus.EventPublisher, cfg *config.Config) *Engine {
	return &Engine{
		store:  store,
		router: router,
		events: events,
		cfg:    cfg,
		tracer: otel.Tracer("pagerelay/dispatch"),
	}
}

// Process applies one event and returns the decision. DeliveryID is
// carried through to outbound messages for log correlation.
func (e *Engine) Process(ctx context.Context, deliveryID string, ev Event) Decision {
	_, span := e.tracer.Start(ctx, "dispatch.process",
		trace.WithAttributes(
			attribute.String("event.kind", string(ev.Kind)),
			attribute.String("conversation.id", ev.ConversationID),
		))
	defer span.End()

	d := e.decide(ev)

	switch ev.Kind {
	case KindPassControl:
		e.store.SetHumanControlled(ev.ConversationID)
		slog.Info("thread passed to human agent", "conversation_id", ev.ConversationID)
		e.broadcast(protocol.EventHandoff, map[string]string{
			"conversation_id": ev.ConversationID,
			"owner":           protocol.OwnerHuman,
		})

	case KindTakeControl:
		e.store.ClearHumanControlled(ev.ConversationID)
		slog.Info("thread taken back by bot", "conversation_id", ev.ConversationID)
		e.broadcast(protocol.EventHandoff, map[string]string{
			"conversation_id": ev.ConversationID,
			"owner":           protocol.OwnerBot,
		})

	case KindRequestControl:
		slog.Info("thread control requested", "conversation_id", ev.ConversationID)

	case KindReaction:
		slog.Debug("reaction received",
			"conversation_id", ev.ConversationID, "reaction", ev.Reaction)

	case KindCommentChange:
		slog.Debug("comment change received",
			"post_id", ev.PostID, "comment_id", ev.CommentID)

	case KindUnknown:
		slog.Debug("unrecognized event shape", "raw_len", len(ev.Raw))
	}

	if d.Action == protocol.ActionReply {
		e.router.PublishOutbound(bus.OutboundMessage{
			RecipientID: d.ConversationID,
			Text:        d.ReplyText,
			DeliveryID:  deliveryID,
		})
	}

	span.SetAttributes(attribute.String("dispatch.action", d.Action))
	e.broadcast(protocol.EventDecision, map[string]string{
		"conversation_id": d.ConversationID,
		"kind":            string(ev.Kind),
		"action":          d.Action,
	})
	return d
}

// decide is the pure decision function over (event, state-at-decision-time).
func (e *Engine) decide(ev Event) Decision {
	none := Decision{Action: protocol.ActionNoAction, ConversationID: ev.ConversationID}

	if ev.Kind != KindMessage {
		return none
	}

	// Suppress the page's own messages echoed back to the webhook.
	if ev.IsEcho {
		return none
	}

	// Platform quirk: the handoff announcement arrives as a normal
	// message event. Never echo it, whatever the ownership state.
	if e.isHandoffNotice(ev.Text) {
		slog.Info("suppressed handoff notice message",
			"conversation_id", ev.ConversationID)
		return none
	}

	// Human agent owns the thread: the bot stays silent.
	if e.store.IsHumanControlled(ev.ConversationID) {
		slog.Debug("thread human-controlled, staying silent",
			"conversation_id", ev.ConversationID)
		return none
	}

	return Decision{
		Action:         protocol.ActionReply,
		ConversationID: ev.ConversationID,
		ReplyText:      e.cfg.ReplyPrefix() + ev.Text,
	}
}

// isHandoffNotice reports whether text contains one of the configured
// system-message phrases. Matched case-insensitively.
func (e *Engine) isHandoffNotice(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range e.cfg.HandoffPhrases() {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (e *Engine) broadcast(name string, payload interface{}) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(bus.Event{Name: name, Payload: payload})
}
