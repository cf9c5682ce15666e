// Package protocol defines the event names pushed on the gateway's
// WebSocket feed. The feed is broadcast-only: clients subscribe for
// operational visibility, they never call back into the relay.
package protocol

// ProtocolVersion is bumped when event payload shapes change.
const ProtocolVersion = 1

// WebSocket event names pushed from server to client.
const (
	EventHealth   = "health"
	EventShutdown = "shutdown"

	// Delivery lifecycle events.
	EventDeliveryReceived = "delivery.received"
	EventDeliveryRejected = "delivery.rejected"

	// Dispatch decision events (payload: conversation_id, kind, action).
	EventDecision = "decision"

	// Thread-control events (payload: conversation_id, owner).
	EventHandoff = "handoff"

	// Outbound send results (payload: conversation_id, ok, error).
	EventSendResult = "send.result"
)

// Decision action names (in decision payload.action).
const (
	ActionReply    = "reply"
	ActionNoAction = "none"
)

// Thread ownership values (in handoff payload.owner).
const (
	OwnerBot   = "bot"
	OwnerHuman = "human"
)
