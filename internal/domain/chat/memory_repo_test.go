package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memRepo struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*Room
	members  map[uuid.UUID]map[uuid.UUID]bool
	messages []*Message
}

func newMemRepo() *memRepo {
	return &memRepo{
		rooms:   map[uuid.UUID]*Room{},
		members: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (r *memRepo) addRoom(roomID uuid.UUID, userIDs ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomID] = &Room{ID: roomID}
	r.members[roomID] = map[uuid.UUID]bool{}
	for _, id := range userIDs {
		r.members[roomID][id] = true
	}
}

func (r *memRepo) GetRoomByID(_ context.Context, id uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[id], nil
}

func (r *memRepo) ListRoomIDsByUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for roomID, users := range r.members {
		if users[userID] {
			ids = append(ids, roomID)
		}
	}
	return ids, nil
}

func (r *memRepo) IsMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[roomID][userID], nil
}

func (r *memRepo) CreateMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memRepo) GetMessageByID(_ context.Context, id uuid.UUID) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListMessagesByRoom(_ context.Context, roomID uuid.UUID, limit, offset int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, 0)
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].RoomID == roomID {
			out = append(out, r.messages[i])
		}
	}
	if offset >= len(out) {
		return []*Message{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
