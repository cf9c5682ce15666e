package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings at this interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound frame buffer per client. A client that cannot keep up
	// drops frames rather than stalling the broadcaster.
	sendBuffer = 64
)

// Client is one WebSocket subscriber on the event feed. The feed is
// push-only: inbound frames are read and discarded to service control
// messages, never interpreted.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan protocol.EventFrame
	done chan struct{}
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan protocol.EventFrame, sendBuffer),
		done: make(chan struct{}),
	}
}

// SendEvent queues a frame for delivery. Non-blocking: frames to a slow
// client are dropped with a warning.
func (c *Client) SendEvent(event protocol.EventFrame) {
	select {
	case c.send <- event:
	case <-c.done:
	default:
		slog.Warn("dropping event for slow client", "id", c.id, "event", event.Event)
	}
}

// Run services the connection until the peer disconnects or ctx is
// cancelled. It starts the write pump and blocks in the read loop.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-c.done:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "id", c.id, "error", err)
			}
			return
		}
		// Inbound frames are ignored; the feed is broadcast-only.
	}
}

// Close tears the connection down. Safe to call more than once from the
// owning server only.
func (c *Client) Close() {
	close(c.done)
	c.conn.Close()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("websocket write failed", "id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
