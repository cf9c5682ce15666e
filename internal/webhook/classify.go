package webhook

import (
	"encoding/json"
	"time"

	"github.com/nextlevelbuilder/pagerelay/internal/dispatch"
)

// Classify maps one raw messaging record to exactly one dispatch event.
// First matching field wins; the discriminating fields are mutually
// exclusive on the platform side, the priority order only matters for
// malformed input. Missing text is always the empty string, never absent.
func Classify(ev MessagingEvent, entryTime time.Time) dispatch.Event {
	conversationID := ""
	if ev.Sender != nil {
		conversationID = ev.Sender.ID
	}

	// An event without a sender id would read or write an empty key in
	// the ownership store; refuse and classify as unknown instead.
	switch {
	case ev.PassThreadControl != nil:
		if conversationID == "" {
			return rawUnknown(ev)
		}
		return dispatch.Event{Kind: dispatch.KindPassControl, ConversationID: conversationID}

	case ev.TakeThreadControl != nil:
		if conversationID == "" {
			return rawUnknown(ev)
		}
		return dispatch.Event{Kind: dispatch.KindTakeControl, ConversationID: conversationID}

	case ev.RequestThreadControl != nil:
		return dispatch.Event{Kind: dispatch.KindRequestControl, ConversationID: conversationID}

	case ev.Message != nil:
		if conversationID == "" {
			return rawUnknown(ev)
		}
		ts := entryTime
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp)
		}
		return dispatch.Event{
			Kind:           dispatch.KindMessage,
			ConversationID: conversationID,
			Text:           ev.Message.Text,
			IsEcho:         ev.Message.IsEcho,
			Timestamp:      ts,
		}

	case ev.Reaction != nil:
		reaction := ev.Reaction.Reaction
		if reaction == "" {
			reaction = ev.Reaction.Emoji
		}
		return dispatch.Event{
			Kind:           dispatch.KindReaction,
			ConversationID: conversationID,
			Reaction:       reaction,
		}

	default:
		return rawUnknown(ev)
	}
}

// ClassifyChange maps one change record to a dispatch event. Only
// comment-field changes are recognized.
func ClassifyChange(ch Change) dispatch.Event {
	if ch.Field != "comments" {
		return dispatch.Event{Kind: dispatch.KindUnknown, Raw: ch.Value}
	}

	var val CommentValue
	if err := json.Unmarshal(ch.Value, &val); err != nil {
		return dispatch.Event{Kind: dispatch.KindUnknown, Raw: ch.Value}
	}

	postID := val.PostID
	if postID == "" && val.Media != nil {
		postID = val.Media.ID
	}
	return dispatch.Event{
		Kind:      dispatch.KindCommentChange,
		PostID:    postID,
		CommentID: val.ID,
		Text:      val.Text,
	}
}

func rawUnknown(ev MessagingEvent) dispatch.Event {
	raw, _ := json.Marshal(ev)
	return dispatch.Event{Kind: dispatch.KindUnknown, Raw: raw}
}
