package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

// Advancer moves a room past an expected question.
type Advancer interface {
	Advance(ctx context.Context, roomID string, expected int) error
}

// AutoAdvancer is a ProgressListener that advances each room once the time
// limit of its open question runs out. It keeps one timer per room and never
// lets a lower question index replace a higher one.
type AutoAdvancer struct {
	advancer Advancer
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*armedTimer
}

type armedTimer struct {
	index int
	timer *time.Timer
}

func NewAutoAdvancer(advancer Advancer, logger *slog.Logger) *AutoAdvancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoAdvancer{
		advancer: advancer,
		logger:   logger.With(slog.String("component", "auto-advance")),
		timers:   make(map[string]*armedTimer),
	}
}

// QuestionOpened replaces the room's timer. A non-positive limit disables it.
// Notices for an index below the armed one are stale and ignored.
func (a *AutoAdvancer) QuestionOpened(roomID string, index int, timeLimit time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if armed, ok := a.timers[roomID]; ok {
		if index < armed.index {
			return
		}
		armed.timer.Stop()
		delete(a.timers, roomID)
	}
	if timeLimit <= 0 {
		return
	}
	armed := &armedTimer{index: index}
	armed.timer = time.AfterFunc(timeLimit, func() {
		a.fire(roomID, armed)
	})
	a.timers[roomID] = armed
}

// QuizClosed drops the room's timer.
func (a *AutoAdvancer) QuizClosed(roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if armed, ok := a.timers[roomID]; ok {
		armed.timer.Stop()
		delete(a.timers, roomID)
	}
}

// Stop cancels every pending timer.
func (a *AutoAdvancer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for roomID, armed := range a.timers {
		armed.timer.Stop()
		delete(a.timers, roomID)
	}
}

// Pending returns the number of rooms with a running timer.
func (a *AutoAdvancer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

func (a *AutoAdvancer) fire(roomID string, armed *armedTimer) {
	a.mu.Lock()
	if a.timers[roomID] == armed {
		delete(a.timers, roomID)
	}
	a.mu.Unlock()

	err := a.advancer.Advance(context.Background(), roomID, armed.index)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleAdvance), errors.Is(err, domain.ErrNotActive):
		// a moderator got there first
	default:
		a.logger.Warn("timed advance failed", slog.String("room", roomID), slog.Int("question", armed.index), slog.String("error", err.Error()))
	}
}
