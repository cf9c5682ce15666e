package protocol

// Frame types on the WebSocket feed. The feed only pushes events today;
// the type field leaves room for request/response frames later.
const (
	FrameTypeEvent = "event"
)

// EventFrame is a server-pushed event on the WebSocket feed.
type EventFrame struct {
	Type    string      `json:"type"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent builds an event frame.
func NewEvent(event string, payload interface{}) *EventFrame {
	return &EventFrame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: payload,
	}
}
