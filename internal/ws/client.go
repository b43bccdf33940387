package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
)

// Envelope is the wire format for every socket event, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one authenticated socket. Outbound writes go through a buffered
// channel drained by a single write pump, so any goroutine may emit to it.
type Client struct {
	ID       string
	Identity auth.Identity

	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	once          sync.Once
	pingInterval  time.Duration
	writeDeadline time.Duration
}

func newClient(conn *websocket.Conn, ident auth.Identity, pingInterval, writeDeadline time.Duration) *Client {
	return &Client{
		ID:            uuid.NewString(),
		Identity:      ident,
		conn:          conn,
		send:          make(chan []byte, 256),
		done:          make(chan struct{}),
		pingInterval:  pingInterval,
		writeDeadline: writeDeadline,
	}
}

// Emit marshals one event envelope and queues it for delivery.
func (c *Client) Emit(event string, data interface{}) {
	b, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(b)
}

// EmitError reports a recoverable per-event failure without disconnecting.
func (c *Client) EmitError(reason string) {
	c.Emit("error", reason)
}

// enqueue drops the payload when the client cannot keep up; a slow reader
// must not stall fan-out to the rest of the room.
func (c *Client) enqueue(b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
