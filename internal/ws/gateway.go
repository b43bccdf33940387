package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/chat"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/metrics"
)

const eventTimeout = 5 * time.Second

// PresenceTracker records connect/disconnect transitions. May be nil.
type PresenceTracker interface {
	Connected(ctx context.Context, userID string) error
	Disconnected(ctx context.Context, userID string) error
}

// Gateway owns the socket lifecycle: handshake auth, the per-connection read
// loop, event dispatch, and room cleanup on disconnect. Every per-event
// failure is answered with an "error" event and leaves the socket connected;
// only a failed handshake rejects the connection.
type Gateway struct {
	svc      *chat.Service
	registry *Registry
	verifier *auth.Verifier
	presence PresenceTracker
	log      *zap.SugaredLogger

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
}

func NewGateway(svc *chat.Service, registry *Registry, verifier *auth.Verifier, presence PresenceTracker, log *zap.SugaredLogger, pingInterval, writeDeadline time.Duration, maxMsgSize int64) *Gateway {
	return &Gateway{
		svc:           svc,
		registry:      registry,
		verifier:      verifier,
		presence:      presence,
		log:           log,
		pingInterval:  pingInterval,
		writeDeadline: writeDeadline,
		maxMsgSize:    maxMsgSize,
	}
}

// Upgrade authenticates the handshake before the protocol switch. The token
// rides in the query string because browser websocket clients cannot set
// headers. A bad token rejects the connection outright.
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	ident, err := g.verifier.Verify(c.Query("token"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid/expired token",
		})
	}
	c.Locals("identity", ident)
	return c.Next()
}

// Handle runs the connection until the transport closes.
func (g *Gateway) Handle(conn *websocket.Conn) {
	ident, ok := conn.Locals("identity").(*auth.Identity)
	if !ok {
		_ = conn.Close()
		return
	}

	client := newClient(conn, *ident, g.pingInterval, g.writeDeadline)
	metrics.ActiveConnections.Inc()
	g.trackPresence(ident.ID, true)
	g.log.Infow("socket connected", "user", ident.ID, "role", ident.Role, "socket", client.ID)

	defer func() {
		g.registry.Leave(client)
		client.Close()
		metrics.ActiveConnections.Dec()
		g.trackPresence(ident.ID, false)
		g.log.Infow("socket disconnected", "user", ident.ID, "socket", client.ID)
	}()

	go client.writePump()

	conn.SetReadLimit(g.maxMsgSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			client.EmitError("invalid event payload")
			continue
		}
		g.dispatch(client, env)
	}
}

// dispatch contains each event's failure to that event: a panicking handler
// answers with an error event instead of tearing the connection down.
func (g *Gateway) dispatch(c *Client, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorw("event handler panic", "event", env.Event, "socket", c.ID, "panic", r)
			metrics.EventErrors.WithLabelValues(env.Event).Inc()
			c.EmitError("internal error")
		}
	}()

	switch env.Event {
	case "join-chat":
		g.handleJoin(c, env.Data)
	case "send-message":
		g.handleSend(c, env.Data)
	case "typing-start":
		g.handleTyping(c, env.Data, true)
	case "typing-stop":
		g.handleTyping(c, env.Data, false)
	default:
		// unknown events are ignored, not fatal
	}
}

func (g *Gateway) handleJoin(c *Client, data json.RawMessage) {
	appointmentID, err := decodeAppointmentID(data)
	if err != nil {
		g.emitError(c, "join-chat", "Unauthorized access to chat")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	res, err := g.svc.Join(ctx, c.Identity, appointmentID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrInvalidID) {
			g.emitError(c, "join-chat", "Unauthorized access to chat")
		} else {
			g.log.Errorw("join chat", "appointment", appointmentID, "err", err)
			g.emitError(c, "join-chat", "Failed to join chat")
		}
		return
	}

	g.registry.Join(appointmentID, c)
	c.Emit("chat-history", res.History)
	c.Emit("chat-info", res.Info)
	g.log.Infow("socket joined room", "user", c.Identity.ID, "appointment", appointmentID)
}

type sendMessageData struct {
	AppointmentID string `json:"appointmentId"`
	Message       string `json:"message"`
}

func (g *Gateway) handleSend(c *Client, data json.RawMessage) {
	var req sendMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		g.emitError(c, "send-message", "invalid event payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	// Send persists first and then fans out new-message to the whole room,
	// this socket included, within the same call.
	if _, _, err := g.svc.Send(ctx, c.Identity, req.AppointmentID, req.Message); err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			g.emitError(c, "send-message", "Message cannot be empty")
		case errors.Is(err, chat.ErrNotFound), errors.Is(err, chat.ErrInvalidID):
			g.emitError(c, "send-message", "Chat not found or unauthorized")
		default:
			g.log.Errorw("send message", "appointment", req.AppointmentID, "err", err)
			g.emitError(c, "send-message", "Failed to send message")
		}
	}
}

func (g *Gateway) handleTyping(c *Client, data json.RawMessage, start bool) {
	appointmentID, err := decodeAppointmentID(data)
	if err != nil {
		return
	}
	if start {
		g.registry.BroadcastExcept(appointmentID, "user-typing", fiber.Map{
			"userId":   c.Identity.ID,
			"userType": c.Identity.Role,
		}, c)
		return
	}
	g.registry.BroadcastExcept(appointmentID, "user-stopped-typing", fiber.Map{
		"userId": c.Identity.ID,
	}, c)
}

func (g *Gateway) emitError(c *Client, event, reason string) {
	metrics.EventErrors.WithLabelValues(event).Inc()
	c.EmitError(reason)
}

func (g *Gateway) trackPresence(userID string, online bool) {
	if g.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	var err error
	if online {
		err = g.presence.Connected(ctx, userID)
	} else {
		err = g.presence.Disconnected(ctx, userID)
	}
	if err != nil {
		g.log.Warnw("presence update failed", "user", userID, "err", err)
	}
}

// decodeAppointmentID accepts either a bare JSON string or an object with an
// appointmentId field; clients have historically sent both shapes.
func decodeAppointmentID(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s, nil
	}
	var obj struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.AppointmentID != "" {
		return obj.AppointmentID, nil
	}
	return "", errors.New("missing appointment id")
}
