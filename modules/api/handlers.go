package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	maxFrameSize        = 64 * 1024
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

var errBadPayload = errors.New("invalid payload")

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// The socket is served on /ws and, for older clients, /socket.
	for _, path := range []string{"/ws", "/socket"} {
		app.Use(path, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get(path, websocket.New(m.handleWebSocket))
	}

	api := app.Group("/api/v1")
	api.Get("/messages", m.getHistory)
	api.Get("/activity", m.getActivity)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":             "api",
			"room_id":            m.relay.RoomID(),
			"connected_clients":  m.hub.ClientCount(),
			"identified_clients": m.relay.Registry().IdentifiedCount(),
		},
	})
}

// getHistory handles GET /api/v1/messages.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit),
			})
		}
		limit = parsed
	}

	resp, err := m.relayAdapter.GetHistory(c.UserContext(), limit)
	if err != nil {
		log.Printf("[api] Failed to load history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load message history",
		})
	}

	return c.JSON(HistoryResponse{
		RoomID:   resp.RoomID,
		Count:    len(resp.Messages),
		Messages: resp.Messages,
	})
}

// getActivity handles GET /api/v1/activity.
func (m *APIModule) getActivity(c *fiber.Ctx) error {
	if m.activity == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: "Activity tracking is not enabled",
		})
	}
	return c.JSON(ActivityResponse{
		Stats:  m.activity.Stats(),
		Recent: m.activity.Recent(),
	})
}

// handleWebSocket serves one websocket connection until it closes.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	c.SetReadLimit(maxFrameSize)

	client := broadcast.NewClient(uuid.New().String(), c)
	m.hub.Register(client)
	m.relay.Connect(client)
	defer func() {
		m.relay.Disconnect(client)
		m.hub.Unregister(client)
		log.Printf("[api] WebSocket client disconnected: %s", client.ID())
	}()

	log.Printf("[api] WebSocket client connected: %s", client.ID())

	limiter := newRateLimiter(m.rateLimit, m.rateBurst)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Read error from %s: %v", client.ID(), err)
			}
			return
		}
		if !limiter.allow() {
			m.sendError(client, "Rate limit exceeded")
			continue
		}
		m.dispatch(context.Background(), client, data)
	}
}

// dispatch handles a single inbound frame. A panic is contained to the frame.
func (m *APIModule) dispatch(ctx context.Context, client *broadcast.Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[api] Recovered while handling frame from %s: %v", client.ID(), r)
		}
	}()

	var env broadcast.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.sendError(client, "Invalid message format")
		return
	}

	switch env.Type {
	case relay.EventUserJoined:
		m.handleJoin(ctx, client, env.Payload)
	case relay.EventMessage:
		m.handleMessage(ctx, client, env.Payload)
	default:
		m.sendError(client, "Unknown message type: "+env.Type)
	}
}

func (m *APIModule) handleJoin(ctx context.Context, client *broadcast.Client, payload json.RawMessage) {
	userID, err := decodeUserID(payload)
	if err != nil {
		m.sendError(client, "userJoined payload must be a user id or null")
		return
	}
	if err := m.relay.Join(ctx, client, userID); err != nil {
		log.Printf("[api] Join failed for %s: %v", client.ID(), err)
	}
}

func (m *APIModule) handleMessage(ctx context.Context, client *broadcast.Client, payload json.RawMessage) {
	messages, err := decodeMessages(payload)
	if err != nil {
		m.sendError(client, "message payload must be an object or a list of objects")
		return
	}

	for _, in := range messages {
		if _, err := m.relay.HandleMessage(ctx, client, in); err != nil {
			if errors.Is(err, relay.ErrUnidentified) {
				return
			}
			log.Printf("[api] Message from %s dropped: %v", client.ID(), err)
		}
	}
}

func (m *APIModule) sendError(client *broadcast.Client, message string) {
	if err := client.SendError(message); err != nil {
		log.Printf("[api] Failed to send error to %s: %v", client.ID(), err)
	}
}

// decodeUserID accepts a JSON string, null or an absent payload.
func decodeUserID(payload json.RawMessage) (string, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return "", nil
	}
	var userID string
	if err := json.Unmarshal(payload, &userID); err != nil {
		return "", errBadPayload
	}
	return userID, nil
}

// decodeMessages accepts a single message object or a list of them.
func decodeMessages(payload json.RawMessage) ([]relay.IncomingMessage, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, errBadPayload
	}

	if payload[0] == '[' {
		var list []relay.IncomingMessage
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, errBadPayload
		}
		return list, nil
	}

	var single relay.IncomingMessage
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, errBadPayload
	}
	return []relay.IncomingMessage{single}, nil
}
