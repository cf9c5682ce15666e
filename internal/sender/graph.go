package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// GraphClient is a lightweight Meta Graph API client using net/http.
// Outbound calls are paced with a token bucket so a burst of inbound
// messages cannot trip the platform's send quota.
type GraphClient struct {
	baseURL     string
	apiVersion  string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// GraphOption customizes the client.
type GraphOption func(*GraphClient)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) GraphOption {
	return func(g *GraphClient) { g.httpClient = c }
}

// WithSendRate paces outbound sends. perSec <= 0 leaves sends unpaced.
func WithSendRate(perSec float64, burst int) GraphOption {
	return func(g *GraphClient) {
		if perSec > 0 {
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

// NewGraphClient creates a Graph send API client.
func NewGraphClient(baseURL, apiVersion, accessToken string, opts ...GraphOption) *GraphClient {
	g := &GraphClient{
		baseURL:     baseURL,
		apiVersion:  apiVersion,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// graphError is the platform's error envelope.
type graphError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendMessage posts one reply to the send endpoint. Returns the
// platform-assigned message id on success.
func (g *GraphClient) SendMessage(ctx context.Context, recipientID, text string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("send pacing: %w", err)
		}
	}

	body, err := json.Marshal(NewSendRequest(recipientID, text))
	if err != nil {
		return "", fmt.Errorf("encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/me/messages", g.baseURL, g.apiVersion)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ge graphError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&ge); decodeErr == nil && ge.Error.Message != "" {
			return "", fmt.Errorf("graph send: status=%d code=%d type=%s: %s",
				resp.StatusCode, ge.Error.Code, ge.Error.Type, ge.Error.Message)
		}
		return "", fmt.Errorf("graph send: status=%d", resp.StatusCode)
	}

	var result struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	return result.MessageID, nil
}
