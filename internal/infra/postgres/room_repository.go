package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-room-service/internal/domain"
)

// RoomRepository stores rooms as JSONB in Postgres. The status column is the
// source of truth for the lifecycle; the status inside data is ignored on read.
type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
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
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO rooms (id, data, status, created_at) VALUES ($1, $2::jsonb, $3, $4) ON CONFLICT (id) DO NOTHING`,
		room.ID, string(raw), string(status), room.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomExists
	}
	return nil
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var (
		raw    []byte
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT data, status FROM rooms WHERE id=$1`, roomID).Scan(&raw, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return domain.Room{}, fmt.Errorf("unmarshal room: %w", err)
	}
	room.Status = domain.RoomStatus(status)
	return room, nil
}

func (r *RoomRepository) UpdateStatus(ctx context.Context, roomID string, status domain.RoomStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms SET status=$2 WHERE id=$1`, roomID, string(status))
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// ActiveRooms lists rooms stored as active. After a restart none of them can
// resume, so the caller marks them completed.
func (r *RoomRepository) ActiveRooms(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM rooms WHERE status=$1`, string(domain.RoomActive))
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
