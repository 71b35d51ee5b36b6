package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// CachedRoomRepository caches rooms read from a slower store with a TTL.
// Concurrent misses for the same room share one load.
type CachedRoomRepository struct {
	backend app.RoomRepository
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedRoom
}

type cachedRoom struct {
	room      domain.Room
	expiresAt time.Time
}

func NewCachedRoomRepository(backend app.RoomRepository, ttl time.Duration) *CachedRoomRepository {
	return &CachedRoomRepository{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedRoom),
	}
}

func (r *CachedRoomRepository) CreateRoom(ctx context.Context, room domain.Room) error {
	if err := r.backend.CreateRoom(ctx, room); err != nil {
		return err
	}
	r.invalidate(room.ID)
	return nil
}

func (r *CachedRoomRepository) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	if room, ok := r.lookup(roomID); ok {
		return room, nil
	}

	result, err, _ := r.sf.Do(roomID, func() (interface{}, error) {
		if room, ok := r.lookup(roomID); ok {
			return room, nil
		}
		now := r.clock()
		room, err := r.backend.GetRoom(ctx, roomID)
		if err != nil {
			return domain.Room{}, err
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[roomID] = cachedRoom{room: room, expiresAt: now.Add(ttl)}
			r.mu.Unlock()
		}
		return room, nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return result.(domain.Room), nil
}

// UpdateStatus writes through and drops the cached copy.
func (r *CachedRoomRepository) UpdateStatus(ctx context.Context, roomID string, status domain.RoomStatus) error {
	err := r.backend.UpdateStatus(ctx, roomID, status)
	r.invalidate(roomID)
	return err
}

func (r *CachedRoomRepository) lookup(roomID string) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[roomID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Room{}, false
	}
	return entry.room, true
}

func (r *CachedRoomRepository) invalidate(roomID string) {
	r.mu.Lock()
	delete(r.cache, roomID)
	r.mu.Unlock()
}

func (r *CachedRoomRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
