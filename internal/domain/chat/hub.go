package chat

import (
	"context"
	"encoding/json"
	"expvar"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType for WebSocket messages
type EventType string

const (
	EventNewMessage EventType = "new_message"
	EventTyping     EventType = "typing"
)

// Redis channels
const (
	roomChannelPrefix = "chat:room:"
	userEventsChannel = "ws:user_events"
)

var (
	wsConnectionsGauge   = expvar.NewInt("websocket_connections")
	wsEventsSentTotal    = expvar.NewInt("websocket_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("websocket_events_dropped_total")
)

type userEventMessage struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// WSEvent represents a WebSocket event
type WSEvent struct {
	Type     EventType   `json:"type"`
	RoomID   uuid.UUID   `json:"room_id,omitempty"`
	SenderID uuid.UUID   `json:"sender_id,omitempty"`
	Message  *Message    `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans events out to local websocket connections. With Redis configured,
// room and user events go through pub/sub so every API instance delivers them.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool

	// roomID -> userIDs subscribed on this instance
	localRooms map[uuid.UUID]map[uuid.UUID]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

// NewHub creates a new WebSocket hub. redisClient may be nil.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		localRooms:  make(map[uuid.UUID]map[uuid.UUID]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(ctx, roomChannelPrefix+"*", userEventsChannel)
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			wsConnectionsGauge.Add(1)
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User connected to WebSocket")

		case conn := <-h.unregister:
			h.removeConnection(conn)
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User disconnected from WebSocket")
		}
	}
}

func (h *Hub) removeConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[conn.UserID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; exists {
		delete(conns, conn)
		close(conn.Send)
		wsConnectionsGauge.Add(-1)
	}
	if len(conns) > 0 {
		return
	}
	delete(h.connections, conn.UserID)
	for roomID, users := range h.localRooms {
		delete(users, conn.UserID)
		if len(users) == 0 {
			delete(h.localRooms, roomID)
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			if strings.HasPrefix(msg.Channel, roomChannelPrefix) {
				roomID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, roomChannelPrefix))
				if err != nil {
					continue
				}
				h.broadcastLocalRaw(roomID, []byte(msg.Payload))
				continue
			}

			if msg.Channel == userEventsChannel {
				h.handleUserEventPayload(msg.Payload)
			}
		}
	}
}

func (h *Hub) handleUserEventPayload(payload string) {
	var event userEventMessage
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	if event.SenderInstanceID == h.instanceID {
		return
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return
	}
	h.sendLocal(userID, event.Payload)
}

func (h *Hub) broadcastLocalRaw(roomID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.localRooms[roomID] {
		for conn := range h.connections[userID] {
			h.deliver(conn, data)
		}
	}
}

func (h *Hub) deliver(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
		wsEventsSentTotal.Add(1)
	default:
		wsEventsDroppedTotal.Add(1)
		log.Warn().Str("user_id", conn.UserID.String()).Msg("WebSocket send buffer full")
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SubscribeToRoom adds user to room on this instance
func (h *Hub) SubscribeToRoom(roomID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.localRooms[roomID] == nil {
		h.localRooms[roomID] = make(map[uuid.UUID]bool)
	}
	h.localRooms[roomID][userID] = true
}

// BroadcastToRoom sends event to all users in room across all instances.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event *WSEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if h.redis == nil {
		h.broadcastLocalRaw(roomID, data)
		return nil
	}

	channel := roomChannelPrefix + roomID.String()
	if err := h.redis.Publish(h.ctx, channel, data).Err(); err != nil {
		// Local subscribers still get it.
		h.broadcastLocalRaw(roomID, data)
		return err
	}
	return nil
}

// SendToUserJSON sends JSON payload to all active connections for user.
func (h *Hub) SendToUserJSON(userID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.sendLocal(userID, data)

	if h.redis == nil {
		return nil
	}
	event, err := json.Marshal(userEventMessage{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return err
	}
	return h.redis.Publish(h.ctx, userEventsChannel, event).Err()
}

func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[userID] {
		h.deliver(conn, data)
	}
}

// IsSubscribed reports whether userID listens to roomID on this instance.
func (h *Hub) IsSubscribed(roomID, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.localRooms[roomID][userID]
}

// LocalRoomUserCount returns number of users subscribed locally to room.
func (h *Hub) LocalRoomUserCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.localRooms[roomID])
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
