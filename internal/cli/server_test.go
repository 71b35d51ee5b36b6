package cli

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	redisstore "quiz-room-service/internal/infra/redis"
)

func TestCloseInterruptedRedisRooms(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := redisstore.NewRoomRepository(client, 0)

	for _, id := range []string{"running", "idle"} {
		require.NoError(t, repo.CreateRoom(ctx, domain.Room{ID: id, CredentialHash: "x", CreatedAt: time.Now()}))
	}
	require.NoError(t, repo.UpdateStatus(ctx, "running", domain.RoomActive))

	require.NoError(t, closeInterruptedRooms(ctx, repo, slog.Default()))

	summary, err := app.NewRoomService(app.RoomServiceConfig{Rooms: repo}).Summary(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCompleted, summary.Status)

	idle, err := repo.GetRoom(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCreated, idle.Status)

	ids, err := repo.ActiveRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

type staleActiveStore struct {
	*memory.RoomRepository
	ids []string
}

func (s staleActiveStore) ActiveRooms(context.Context) ([]string, error) {
	return s.ids, nil
}

func TestCloseInterruptedRoomsSkipsVanishedRooms(t *testing.T) {
	ctx := context.Background()
	rooms := memory.NewRoomRepository()
	require.NoError(t, rooms.CreateRoom(ctx, domain.Room{ID: "kept", Status: domain.RoomActive}))

	store := staleActiveStore{RoomRepository: rooms, ids: []string{"gone", "kept"}}
	require.NoError(t, closeInterruptedRooms(ctx, store, slog.Default()))

	room, err := rooms.GetRoom(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCompleted, room.Status)
}
