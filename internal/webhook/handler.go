package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/internal/dispatch"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

// ackBody is the body the platform expects with the success
// acknowledgment. Returned for every recognized delivery, even when
// individual events fail — negative acknowledgments would only cause
// redelivery storms.
const ackBody = "EVENT_RECEIVED"

// Handler is the webhook ingress. It owns the verification handshake
// and delivery decoding; every decoded event flows through the
// classifier into the dispatch engine sequentially, in array order.
type Handler struct {
	cfg     *config.Config
	engine  *dispatch.Engine
	limiter *SenderRateLimiter
	events  bus.EventPublisher
	tracer  trace.Tracer
}

// NewHandler creates the webhook ingress handler.
func NewHandler(cfg *config.Config, engine *dispatch.Engine, events bus.EventPublisher) *Handler {
	return &Handler{
		cfg:     cfg,
		engine:  engine,
		limiter: NewSenderRateLimiter(cfg.Gateway.RateLimitPerSender),
		events:  events,
		tracer:  otel.Tracer("pagerelay/webhook"),
	}
}

// RegisterRoutes registers the webhook endpoints on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", h.handleVerify)
	mux.HandleFunc("POST /webhook", h.handleDelivery)
}

// handleVerify answers the platform's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == h.cfg.Platform.VerifyToken {
		slog.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	slog.Warn("webhook verification failed", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// handleDelivery processes one webhook POST. Recognized object types are
// acknowledged with 200 after dispatching every event; unrecognized
// object types get 404 without iterating entries.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	deliveryID := uuid.NewString()

	var delivery Delivery
	if err := json.NewDecoder(r.Body).Decode(&delivery); err != nil {
		slog.Warn("undecodable webhook body", "delivery_id", deliveryID, "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !delivery.Recognized() {
		slog.Debug("unrecognized webhook object", "object", delivery.Object, "delivery_id", deliveryID)
		h.broadcast(protocol.EventDeliveryRejected, map[string]string{
			"delivery_id": deliveryID,
			"object":      delivery.Object,
		})
		http.NotFound(w, r)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "webhook.delivery",
		trace.WithAttributes(
			attribute.String("delivery.id", deliveryID),
			attribute.String("delivery.object", delivery.Object),
			attribute.Int("delivery.entries", len(delivery.Entry)),
		))
	defer span.End()

	h.broadcast(protocol.EventDeliveryReceived, map[string]interface{}{
		"delivery_id": deliveryID,
		"object":      delivery.Object,
		"entries":     len(delivery.Entry),
	})

	// Sequential, in array order: a handoff in this delivery must be
	// visible to every later event in the same delivery.
	for _, entry := range delivery.Entry {
		entryTime := time.UnixMilli(entry.Time)

		for _, raw := range entry.Messaging {
			ev := Classify(raw, entryTime)
			// Only message events are rate limited. Dropping a control
			// handoff would silently lose the ownership transition.
			if ev.Kind == dispatch.KindMessage && raw.Sender != nil && !h.limiter.Allow(raw.Sender.ID) {
				slog.Warn("sender rate limited, message skipped",
					"sender_id", raw.Sender.ID, "delivery_id", deliveryID)
				continue
			}
			h.engine.Process(ctx, deliveryID, ev)
		}

		for _, change := range entry.Changes {
			h.engine.Process(ctx, deliveryID, ClassifyChange(change))
		}
	}

	// Ack promptly; outbound sends continue in the background.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ackBody))
}

func (h *Handler) broadcast(name string, payload interface{}) {
	if h.events == nil {
		return
	}
	h.events.Broadcast(bus.Event{Name: name, Payload: payload})
}
