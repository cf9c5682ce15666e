package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestNewSendRequest verifies the reply formatter round-trip, including
// the empty string.
func TestNewSendRequest(t *testing.T) {
	for _, text := range []string{"hello", ""} {
		req := NewSendRequest("user-1", text)
		if req.Recipient.ID != "user-1" {
			t.Errorf("recipient = %q, want user-1", req.Recipient.ID)
		}
		if req.Message.Text != text {
			t.Errorf("text = %q, want %q", req.Message.Text, text)
		}
		if req.MessagingType != "RESPONSE" {
			t.Errorf("messaging_type = %q, want RESPONSE", req.MessagingType)
		}
	}
}

// TestSendMessage_Success verifies the wire shape of the send call.
func TestSendMessage_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody SendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{
			"recipient_id": "user-1",
			"message_id":   "mid-1",
		})
	}))
	defer srv.Close()

	g := NewGraphClient(srv.URL, "v19.0", "tok")
	mid, err := g.SendMessage(context.Background(), "user-1", "Echo: hi")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if mid != "mid-1" {
		t.Errorf("message id = %q, want mid-1", mid)
	}
	if gotPath != "/v19.0/me/messages" {
		t.Errorf("path = %q, want /v19.0/me/messages", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Recipient.ID != "user-1" || gotBody.Message.Text != "Echo: hi" || gotBody.MessagingType != "RESPONSE" {
		t.Errorf("request body = %+v", gotBody)
	}
}

// TestSendMessage_PlatformError verifies the error envelope is decoded
// into the returned error.
func TestSendMessage_PlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid user id","type":"OAuthException","code":100}}`))
	}))
	defer srv.Close()

	g := NewGraphClient(srv.URL, "v19.0", "tok")
	_, err := g.SendMessage(context.Background(), "bad", "x")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	for _, want := range []string{"code=100", "OAuthException", "Invalid user id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

// TestSendMessage_RatePacing verifies the limiter respects context
// cancellation instead of blocking a shutdown.
func TestSendMessage_RatePacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message_id": "m"})
	}))
	defer srv.Close()

	// 1 send per hour with burst 1: the second send must wait, so a
	// cancelled context should fail it promptly.
	g := NewGraphClient(srv.URL, "v19.0", "tok", WithSendRate(1.0/3600, 1))
	ctx := context.Background()
	if _, err := g.SendMessage(ctx, "u", "one"); err != nil {
		t.Fatalf("first send: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := g.SendMessage(cancelled, "u", "two"); err == nil {
		t.Fatal("expected pacing error on cancelled context")
	}
}
