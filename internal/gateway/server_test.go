package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/internal/dispatch"
	"github.com/nextlevelbuilder/pagerelay/internal/thread"
	"github.com/nextlevelbuilder/pagerelay/internal/webhook"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, thread.ControlStore, *bus.MessageBus) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
		cfg.Platform.VerifyToken = "vt"
		cfg.Platform.AccessToken = "at"
	}
	store := thread.NewMemoryStore()
	b := bus.New()
	engine := dispatch.NewEngine(store, b, b, cfg)
	hook := webhook.NewHandler(cfg, engine, b)
	return NewServer(cfg, b, store, hook), store, b
}

// TestHandleHealth verifies the health endpoint reports status and
// protocol version.
func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	mux := srv.BuildMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("body = %s, want status ok", body)
	}
}

// TestHandleThreads_Auth verifies the introspection endpoint requires the
// gateway token when one is configured.
func TestHandleThreads_Auth(t *testing.T) {
	cfg := config.Default()
	cfg.Platform.VerifyToken = "vt"
	cfg.Platform.AccessToken = "at"
	cfg.Gateway.Token = "secret"

	srv, store, _ := newTestServer(t, cfg)
	mux := srv.BuildMux()
	store.SetHumanControlled("conv-1")

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"correct token", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// TestHandleThreads_ListsHumanControlled verifies the response body lists
// human-controlled conversations.
func TestHandleThreads_ListsHumanControlled(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)
	mux := srv.BuildMux()

	store.SetHumanControlled("conv-a")
	store.SetHumanControlled("conv-b")

	req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got threadList
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 2 || len(got.HumanControlled) != 2 {
		t.Errorf("count = %d, ids = %v, want 2 entries", got.Count, got.HumanControlled)
	}
}

// TestCheckOrigin verifies origin validation against the whitelist.
func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no config allows all", nil, "https://evil.example", true},
		{"empty origin allowed", []string{"https://app.example"}, "", true},
		{"listed origin allowed", []string{"https://app.example"}, "https://app.example", true},
		{"unlisted origin rejected", []string{"https://app.example"}, "https://evil.example", false},
		{"wildcard allows all", []string{"*"}, "https://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Platform.VerifyToken = "vt"
			cfg.Platform.AccessToken = "at"
			cfg.Gateway.AllowedOrigins = tt.allowed
			srv, _, _ := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := srv.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// TestWebSocketFeed_ReceivesBroadcast verifies a connected client receives
// events broadcast on the bus.
func TestWebSocketFeed_ReceivesBroadcast(t *testing.T) {
	srv, _, b := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, start := StartTestServer(srv, ctx)
	go start()

	url := "ws://" + addr + "/ws"
	var conn *websocket.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription happens on register; give the server a beat.
	time.Sleep(20 * time.Millisecond)
	b.Broadcast(bus.Event{Name: protocol.EventHandoff, Payload: map[string]any{
		"conversation_id": "conv-1",
		"owner":           protocol.OwnerHuman,
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame protocol.EventFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != protocol.FrameTypeEvent || frame.Event != protocol.EventHandoff {
		t.Errorf("frame = %+v, want handoff event", frame)
	}
}

// TestWebSocketFeed_ShutdownEvent verifies cancellation pushes a shutdown
// frame to connected clients through the bus subscription.
func TestWebSocketFeed_ShutdownEvent(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, start := StartTestServer(srv, ctx)
	go start()

	url := "ws://" + addr + "/ws"
	var conn *websocket.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame protocol.EventFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("connection closed before shutdown frame: %v", err)
		}
		if frame.Event == protocol.EventShutdown {
			return
		}
	}
}
