package app_test

import (
	"sync"

	"quiz-room-service/internal/domain"
)

type delivery struct {
	conn  string
	event domain.Event
}

// recorder is a Broadcaster that expands room publishes into per-connection
// deliveries, the way the hub does.
type recorder struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
	log     []delivery
}

func newRecorder() *recorder {
	return &recorder{members: make(map[string]map[string]struct{})}
}

func (r *recorder) Attach(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]struct{})
	}
	r.members[roomID][connID] = struct{}{}
}

func (r *recorder) Detach(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[roomID], connID)
}

func (r *recorder) Publish(roomID string, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.members[roomID] {
		r.log = append(r.log, delivery{conn: connID, event: event})
	}
}

func (r *recorder) Reply(connID string, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, delivery{conn: connID, event: event})
}

// events returns what connID received, in order.
func (r *recorder) events(connID string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, d := range r.log {
		if d.conn == connID {
			out = append(out, d.event)
		}
	}
	return out
}

func (r *recorder) names(connID string) []string {
	var out []string
	for _, ev := range r.events(connID) {
		out = append(out, ev.Name)
	}
	return out
}

func (r *recorder) count(connID, name string) int {
	n := 0
	for _, ev := range r.events(connID) {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(connID, name string) (domain.Event, bool) {
	events := r.events(connID)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name {
			return events[i], true
		}
	}
	return domain.Event{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
