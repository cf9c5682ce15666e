package dispatch

import (
	"encoding/json"
	"time"
)

// Kind discriminates classified inbound events. Exactly one kind per
// raw platform record; classification never merges events.
type Kind string

const (
	KindPassControl    Kind = "pass_control"    // human agent has taken over
	KindTakeControl    Kind = "take_control"    // bot is resuming
	KindRequestControl Kind = "request_control" // third-party app requests control (informational)
	KindMessage        Kind = "message"
	KindReaction       Kind = "reaction"
	KindCommentChange  Kind = "comment_change"
	KindUnknown        Kind = "unknown"
)

// Event is one classified inbound event. Carries at most one
// conversation id.
type Event struct {
	Kind           Kind
	ConversationID string

	// Message fields.
	Text      string
	IsEcho    bool
	Timestamp time.Time

	// Reaction payload (logged only).
	Reaction string

	// Comment-change fields (logged only).
	PostID    string
	CommentID string

	// Raw holds the undecoded record for unknown shapes, for diagnostics.
	Raw json.RawMessage
}
