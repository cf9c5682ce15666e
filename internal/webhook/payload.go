// Package webhook is the ingress for Meta Graph webhook deliveries:
// it verifies the subscription handshake, decodes deliveries, classifies
// each raw event, and feeds the dispatch engine. Acknowledgment is
// always prompt and independent of dispatch outcomes.
package webhook

import "encoding/json"

// Recognized top-level object discriminators. Anything else is
// acknowledged with 404 without iterating entries.
const (
	ObjectPage              = "page"
	ObjectInstagram         = "instagram"
	ObjectInstagramComments = "instagram_comments"
)

// Delivery is one webhook POST body.
type Delivery struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Recognized reports whether the delivery's object type is processed.
func (d *Delivery) Recognized() bool {
	switch d.Object {
	case ObjectPage, ObjectInstagram, ObjectInstagramComments:
		return true
	}
	return false
}

// Entry groups events received for one page/account at one time.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"` // ms since epoch
	Messaging []MessagingEvent `json:"messaging"`
	Changes   []Change         `json:"changes"`
}

// MessagingEvent is one raw record from an entry's messaging array.
// The platform guarantees the discriminating fields are mutually
// exclusive on a single record.
type MessagingEvent struct {
	Sender    *Party `json:"sender"`
	Recipient *Party `json:"recipient"`
	Timestamp int64  `json:"timestamp"` // ms since epoch

	Message              *MessagePayload  `json:"message"`
	PassThreadControl    *ThreadControl   `json:"pass_thread_control"`
	TakeThreadControl    *ThreadControl   `json:"take_thread_control"`
	RequestThreadControl *ThreadControl   `json:"request_thread_control"`
	Reaction             *ReactionPayload `json:"message_reaction"`
}

// Party identifies one side of a conversation.
type Party struct {
	ID string `json:"id"`
}

// MessagePayload is the message field of a messaging event.
type MessagePayload struct {
	MID    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo"`
}

// ThreadControl carries handoff-protocol metadata.
type ThreadControl struct {
	PreviousOwnerAppID int64  `json:"previous_owner_app_id,omitempty"`
	NewOwnerAppID      int64  `json:"new_owner_app_id,omitempty"`
	RequestedOwnerAppID int64 `json:"requested_owner_app_id,omitempty"`
	Metadata           string `json:"metadata,omitempty"`
}

// ReactionPayload is a message_reaction notification.
type ReactionPayload struct {
	MID      string `json:"mid"`
	Action   string `json:"action"` // "react" or "unreact"
	Reaction string `json:"reaction,omitempty"`
	Emoji    string `json:"emoji,omitempty"`
}

// Change is one record from an entry's changes array.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// CommentValue is the value of a field=="comments" change.
type CommentValue struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	PostID string `json:"post_id"`
	Media  *struct {
		ID string `json:"id"`
	} `json:"media"`
	From *Party `json:"from"`
}
