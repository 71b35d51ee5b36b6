package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

// RoomRepository keeps rooms in process memory. Rooms are lost on restart.
type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]domain.Room
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{rooms: make(map[string]domain.Room)}
}

func (r *RoomRepository) CreateRoom(_ context.Context, room domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return domain.ErrRoomExists
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *RoomRepository) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (r *RoomRepository) UpdateStatus(_ context.Context, roomID string, status domain.RoomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.Status = status
	r.rooms[roomID] = room
	return nil
}
