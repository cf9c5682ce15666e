// Package sender delivers replies through the Meta Graph send API.
// Sends are fire-and-forget relative to webhook acknowledgment:
// failures are logged and broadcast on the event feed, never retried,
// never surfaced to the webhook response.
package sender

// SendRequest is the Graph send API request body.
type SendRequest struct {
	Recipient     Recipient `json:"recipient"`
	Message       Message   `json:"message"`
	MessagingType string    `json:"messaging_type"`
}

// Recipient addresses the conversation partner.
type Recipient struct {
	ID string `json:"id"`
}

// Message is the outbound message content.
type Message struct {
	Text string `json:"text"`
}

// NewSendRequest builds the outbound payload for a reply. Pure; empty
// text is permitted.
func NewSendRequest(recipientID, text string) SendRequest {
	return SendRequest{
		Recipient:     Recipient{ID: recipientID},
		Message:       Message{Text: text},
		MessagingType: "RESPONSE",
	}
}
