// Package hub fans room events out to connection outboxes.
package hub

import (
	"log/slog"
	"sync"

	"quiz-room-service/internal/domain"
)

// DefaultBufferSize is the outbox capacity of a connection.
const DefaultBufferSize = 64

type client struct {
	out    chan domain.Event
	rooms  map[string]struct{}
	closed bool
}

// Hub implements app.Broadcaster. Each connection owns a FIFO outbox drained by
// its writer and sends never block. When an outbox fills up, queued leaderboard
// snapshots superseded by a newer one are dropped; a connection that is still
// full after that is disconnected instead of stalling the room.
type Hub struct {
	logger     *slog.Logger
	bufferSize int

	mu      sync.Mutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
}

func New(logger *slog.Logger, bufferSize int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		logger:     logger.With(slog.String("component", "hub")),
		bufferSize: bufferSize,
		clients:    make(map[string]*client),
		rooms:      make(map[string]map[string]struct{}),
	}
}

// Connect registers a connection and returns its outbox. The channel is closed
// by Disconnect or when the connection falls too far behind.
func (h *Hub) Connect(connID string) <-chan domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		h.closeLocked(connID, c)
	}
	c := &client{
		out:   make(chan domain.Event, h.bufferSize),
		rooms: make(map[string]struct{}),
	}
	h.clients[connID] = c
	return c.out
}

// Disconnect closes the outbox and drops every membership. It is idempotent.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		h.closeLocked(connID, c)
	}
}

func (h *Hub) Attach(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok || c.closed {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	c.rooms[roomID] = struct{}{}
}

func (h *Hub) Detach(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(roomID, connID)
	if c, ok := h.clients[connID]; ok {
		delete(c.rooms, roomID)
	}
}

// Publish enqueues event for every member of roomID.
func (h *Hub) Publish(roomID string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.rooms[roomID] {
		h.sendLocked(connID, event)
	}
}

// Reply enqueues event for a single connection.
func (h *Hub) Reply(connID string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(connID, event)
}

// Members returns the number of connections attached to roomID.
func (h *Hub) Members(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

func (h *Hub) sendLocked(connID string, event domain.Event) {
	c, ok := h.clients[connID]
	if !ok || c.closed {
		return
	}
	select {
	case c.out <- event:
		return
	default:
	}
	if compact(c.out, event) {
		h.logger.Debug("outbox compacted", slog.String("conn", connID), slog.Int("queued", len(c.out)))
		return
	}
	h.logger.Warn("outbox full, dropping connection", slog.String("conn", connID), slog.String("event", event.Name))
	h.closeLocked(connID, c)
}

// compact empties a full outbox, drops every leaderboard snapshot that a later
// one supersedes, and queues the rest followed by event. It reports false when
// nothing could be dropped. Callers hold the hub lock, so this is the only
// producer; the writer may keep receiving meanwhile, which only frees space.
func compact(out chan domain.Event, event domain.Event) bool {
	queued := make([]domain.Event, 0, cap(out)+1)
	for drained := false; !drained; {
		select {
		case ev := <-out:
			queued = append(queued, ev)
		default:
			drained = true
		}
	}
	queued = append(queued, event)

	kept := queued[:0]
	last := -1
	for i, ev := range queued {
		if ev.Name == domain.EventLeaderboardUpdate {
			last = i
		}
	}
	for i, ev := range queued {
		if ev.Name == domain.EventLeaderboardUpdate && i != last {
			continue
		}
		kept = append(kept, ev)
	}

	fits := len(kept) <= cap(out)
	if !fits {
		kept = kept[:cap(out)]
	}
	for _, ev := range kept {
		out <- ev
	}
	return fits
}

func (h *Hub) closeLocked(connID string, c *client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	for roomID := range c.rooms {
		h.detachLocked(roomID, connID)
	}
	delete(h.clients, connID)
}

func (h *Hub) detachLocked(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}
