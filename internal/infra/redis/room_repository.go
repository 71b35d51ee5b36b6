package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/domain"
)

// RoomRepository stores rooms in Redis, one hash per room:
//
//	HSET room:{roomID} data {room json} status {status}
//
// The status lives in its own field so lifecycle writes never rewrite the
// question set. Ids of running rooms are also kept in the set rooms:active.
type RoomRepository struct {
	client *redis.Client
	ttl    time.Duration
}

const (
	fieldData   = "data"
	fieldStatus = "status"

	activeRoomsKey = "rooms:active"
)

// NewRoomRepository returns a repository whose keys expire after ttl; zero keeps them forever.
func NewRoomRepository(client *redis.Client, ttl time.Duration) *RoomRepository {
	return &RoomRepository{client: client, ttl: ttl}
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room domain.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	status := room.Status
	if status == "" {
		status = domain.RoomCreated
	}
	key := r.key(room.ID)

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrRoomExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldData, raw, fieldStatus, string(status))
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			if status == domain.RoomActive {
				pipe.SAdd(ctx, activeRoomsKey, room.ID)
			}
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			// someone wrote the key between WATCH and EXEC
			return domain.ErrRoomExists
		}
		return err
	}, key)
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	fields, err := r.client.HMGet(ctx, r.key(roomID), fieldData, fieldStatus).Result()
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	data, ok := fields[0].(string)
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return domain.Room{}, fmt.Errorf("unmarshal room: %w", err)
	}
	if status, ok := fields[1].(string); ok && status != "" {
		room.Status = domain.RoomStatus(status)
	}
	return room, nil
}

func (r *RoomRepository) UpdateStatus(ctx context.Context, roomID string, status domain.RoomStatus) error {
	key := r.key(roomID)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			// the key may have expired while the room was running
			_ = r.client.SRem(ctx, activeRoomsKey, roomID).Err()
			return domain.ErrRoomNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldStatus, string(status))
			if status == domain.RoomActive {
				pipe.SAdd(ctx, activeRoomsKey, roomID)
			} else {
				pipe.SRem(ctx, activeRoomsKey, roomID)
			}
			return nil
		})
		return err
	}, key)
}

// ActiveRooms lists rooms stored as active.
func (r *RoomRepository) ActiveRooms(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return ids, nil
}

func (r *RoomRepository) key(roomID string) string {
	return "room:" + roomID
}
