// Package gateway runs the relay's HTTP surface: the webhook endpoints,
// the health check, thread introspection, and a broadcast-only WebSocket
// event feed for operational visibility.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/internal/thread"
	"github.com/nextlevelbuilder/pagerelay/internal/webhook"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

// Server is the relay's HTTP server handling webhook and WebSocket connections.
type Server struct {
	cfg      *config.Config
	eventPub bus.EventPublisher
	threads  thread.ControlStore
	hook     *webhook.Handler

	upgrader websocket.Upgrader
	clients  map[string]*Client
	mu       sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the relay server. The webhook handler owns the
// /webhook routes; the server adds the operational endpoints around it.
func NewServer(cfg *config.Config, eventPub bus.EventPublisher, threads thread.ControlStore, hook *webhook.Handler) *Server {
	s := &Server{
		cfg:      cfg,
		eventPub: eventPub,
		threads:  threads,
		hook:     hook,
		clients:  make(map[string]*Client),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	return s
}

// checkOrigin validates WebSocket connection origin against the allowed origins whitelist.
// If no origins are configured, all origins are allowed (dev mode).
// Empty Origin header (non-browser clients like CLI tooling) is always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("security.cors_rejected", "origin", origin)
	return false
}

// BuildMux creates and caches the HTTP mux with all routes registered.
// Call this before Start() if you need the mux for additional listeners
// (e.g. Tailscale).
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()

	// Webhook verification + delivery endpoints.
	s.hook.RegisterRoutes(mux)

	// WebSocket event feed.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Operational endpoints.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/threads", s.requireToken(s.handleThreads))

	s.mux = mux
	return mux
}

// Start begins listening for webhook and WebSocket connections.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		s.eventPub.Broadcast(bus.Event{Name: protocol.EventShutdown})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// handleWebSocket upgrades HTTP to WebSocket and manages the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn)
	s.registerClient(client)

	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	client.Run(r.Context())
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}

// requireToken guards an endpoint with bearer auth when a gateway token
// is configured. No token configured means the endpoint is open (dev mode).
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.Gateway.Token
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c

	// Forward bus events to this client.
	s.eventPub.Subscribe(c.id, func(event bus.Event) {
		c.SendEvent(*protocol.NewEvent(event.Name, event.Payload))
	})

	slog.Info("client connected", "id", c.id)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
	s.eventPub.Unsubscribe(c.id)
	slog.Info("client disconnected", "id", c.id)
}

// StartTestServer creates a listener on :0 (random port) and returns the
// actual address and a start function. Used for integration tests.
func StartTestServer(s *Server, ctx context.Context) (addr string, start func()) {
	mux := s.BuildMux()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.httpServer = &http.Server{Handler: mux}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			s.eventPub.Broadcast(bus.Event{Name: protocol.EventShutdown})
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}

	return addr, start
}
