package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Attach(string, string)        {}
func (nopBroadcaster) Detach(string, string)        {}
func (nopBroadcaster) Publish(string, domain.Event) {}
func (nopBroadcaster) Reply(string, domain.Event)   {}

func newSession() *app.Session {
	return app.NewSession(domain.Room{ID: "room-1", Status: domain.RoomCreated}, nopBroadcaster{}, nil)
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := NewSessionStore(client, time.Minute)

	_ = store.GetOrCreate("room-1", newSession)
	if !mr.Exists("room:session:room-1") {
		t.Fatalf("expected redis key to be set")
	}

	if !store.DeleteIfIdle("room-1") {
		t.Fatalf("expected idle session to be retired")
	}
	if mr.Exists("room:session:room-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionStoreRefreshExtendsMarkers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	_ = store.GetOrCreate("room-1", newSession)

	mr.FastForward(50 * time.Second)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if !mr.Exists("room:session:room-1") {
		t.Fatalf("expected refreshed marker to survive")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
