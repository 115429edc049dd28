package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

// WebSocket constants
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Handler handles chat HTTP requests
type Handler struct {
	transport   *Transport
	repo        Repository
	hub         *Hub
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
}

// RateLimiter caps inbound websocket events per user.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  30,
		window: time.Minute,
	}
}

// Allow checks if user can send another event
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	if rl.redis == nil {
		return true
	}

	key := fmt.Sprintf("ratelimit:chat:%s", userID)
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return true // fail open
	}
	if count == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}
	return count <= int64(rl.limit)
}

// NewHandler creates chat handler
func NewHandler(transport *Transport, repo Repository, hub *Hub, redisClient *redis.Client, allowedOrigins []string) *Handler {
	return &Handler{
		transport:   transport,
		repo:        repo,
		hub:         hub,
		rateLimiter: NewRateLimiter(redisClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || origin == allowed {
				return true
			}
		}
		log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
		return false
	}
}

// GetMessages handles GET /chat/rooms/{roomId}/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "roomId"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.transport.RequireMember(r.Context(), roomID, userID); err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	limit, offset := response.Pagination(r)
	messages, err := h.repo.ListMessagesByRoom(r.Context(), roomID, limit, offset)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	items := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		items[i] = MessageResponseFromEntity(m)
	}
	response.OK(w, items)
}

// WebSocket handles GET /chat/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	rooms, err := h.repo.ListRoomIDsByUser(r.Context(), userID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Connection{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.hub.Register(client)
	for _, roomID := range rooms {
		h.hub.SubscribeToRoom(roomID, userID)
	}

	go h.wsReader(client)
	go h.wsWriter(client)
}

type inboundEvent struct {
	Type   string    `json:"type"`
	RoomID uuid.UUID `json:"room_id"`
}

func (h *Handler) wsReader(client *Connection) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", client.UserID.String()).Msg("WebSocket read error")
			}
			return
		}

		if !h.rateLimiter.Allow(context.Background(), client.UserID) {
			continue
		}

		var event inboundEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		h.handleInbound(client.UserID, event)
	}
}

// Clients only send typing indicators; everything else is server-originated.
func (h *Handler) handleInbound(userID uuid.UUID, event inboundEvent) {
	if event.Type != string(EventTyping) || !h.hub.IsSubscribed(event.RoomID, userID) {
		return
	}
	if err := h.hub.BroadcastToRoom(event.RoomID, &WSEvent{
		Type:     EventTyping,
		RoomID:   event.RoomID,
		SenderID: userID,
	}); err != nil {
		log.Warn().Err(err).Str("room_id", event.RoomID.String()).Msg("typing broadcast failed")
	}
}

func (h *Handler) wsWriter(client *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
