package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

const notStarted = -1

// statusWriter persists a lifecycle transition before it becomes visible in memory.
type statusWriter func(ctx context.Context, roomID string, status domain.RoomStatus) error

// Session is the live state of one room. Every mutation holds mu for its whole
// duration, broadcasts included, so events for a room leave in the order the
// mutations were serialized.
type Session struct {
	roomID    string
	questions []domain.Question
	timeLimit time.Duration
	out       Broadcaster
	now       func() time.Time
	// listener is notified under mu, so it sees transitions in order.
	listener ProgressListener

	mu           sync.Mutex
	status       domain.RoomStatus
	current      int
	participants map[string]*domain.Participant
	answered     map[string]struct{}
	retired      bool
}

// progress describes what a transition opened or closed.
type progress struct {
	opened    int // index of the question now open, or notStarted
	completed bool
	final     domain.Leaderboard
}

// NewSession builds the live state of a stored room. A nil now uses time.Now.
func NewSession(room domain.Room, out Broadcaster, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	status := room.Status
	switch status {
	case domain.RoomActive:
		// the pointer did not survive a restart, so the quiz cannot resume
		status = domain.RoomCompleted
	case "":
		status = domain.RoomCreated
	}
	current := notStarted
	if status == domain.RoomCompleted {
		current = len(room.Questions)
	}
	return &Session{
		roomID:       room.ID,
		questions:    room.Questions,
		timeLimit:    time.Duration(room.Params.TimePerQuestion) * time.Second,
		out:          out,
		now:          now,
		status:       status,
		current:      current,
		participants: make(map[string]*domain.Participant),
		answered:     make(map[string]struct{}),
	}
}

// ID returns the room id of the session.
func (s *Session) ID() string {
	return s.roomID
}

// Status returns the lifecycle state.
func (s *Session) Status() domain.RoomStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentIndex returns the open question index, or -1 before the start.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants) == 0
}

// Retire marks an empty, non-running session as dead and reports whether it did.
// A running quiz is kept so reconnecting participants can continue.
func (s *Session) Retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.participants) > 0 || s.status == domain.RoomActive {
		return false
	}
	s.retired = true
	return true
}

// Leaderboard returns the current snapshot.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) join(connID, displayName string) (domain.Leaderboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return nil, false
	}

	if p, ok := s.participants[connID]; ok {
		p.DisplayName = displayName
	} else {
		s.participants[connID] = &domain.Participant{
			ConnectionID: connID,
			DisplayName:  displayName,
			JoinedAt:     s.now(),
		}
	}
	s.out.Attach(s.roomID, connID)

	lb := s.snapshotLocked()
	s.out.Publish(s.roomID, domain.Event{Name: domain.EventLeaderboardUpdate, Payload: lb})
	s.out.Reply(connID, domain.Event{Name: domain.EventJoined, Payload: domain.JoinedPayload{Success: true}})
	return lb, true
}

func (s *Session) leave(connID string) (domain.Leaderboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[connID]; !ok {
		return nil, false
	}
	delete(s.participants, connID)
	delete(s.answered, connID)
	s.out.Detach(s.roomID, connID)

	lb := s.snapshotLocked()
	s.out.Publish(s.roomID, domain.Event{Name: domain.EventLeaderboardUpdate, Payload: lb})
	return lb, true
}

func (s *Session) isParticipant(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[connID]
	return ok
}

func (s *Session) start(ctx context.Context, connID string, persist statusWriter) (progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connID]; !ok {
		return progress{}, domain.ErrNotParticipant
	}
	if s.status != domain.RoomCreated {
		return progress{}, domain.ErrAlreadyStarted
	}
	if err := persist(ctx, s.roomID, domain.RoomActive); err != nil {
		return progress{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}

	s.status = domain.RoomActive
	s.current = 0
	clear(s.answered)
	s.out.Publish(s.roomID, domain.Event{
		Name:    domain.EventQuizStarted,
		Payload: domain.QuizStartedPayload{TotalQuestions: len(s.questions)},
	})
	if len(s.questions) == 0 {
		return s.completeLocked(ctx, persist)
	}
	s.publishQuestionLocked()
	return s.openedLocked(), nil
}

func (s *Session) advance(ctx context.Context, expected int, persist statusWriter) (progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.RoomActive {
		return progress{}, domain.ErrNotActive
	}
	if expected != s.current {
		return progress{}, domain.ErrStaleAdvance
	}

	next := s.current + 1
	if next >= len(s.questions) {
		return s.completeLocked(ctx, persist)
	}
	s.current = next
	clear(s.answered)
	s.publishQuestionLocked()
	return s.openedLocked(), nil
}

func (s *Session) openedLocked() progress {
	if s.listener != nil {
		s.listener.QuestionOpened(s.roomID, s.current, s.timeLimit)
	}
	return progress{opened: s.current}
}

// completeLocked leaves the session untouched when the status write fails.
func (s *Session) completeLocked(ctx context.Context, persist statusWriter) (progress, error) {
	if err := persist(ctx, s.roomID, domain.RoomCompleted); err != nil {
		return progress{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	s.status = domain.RoomCompleted
	s.current = len(s.questions)
	clear(s.answered)

	lb := s.snapshotLocked()
	s.out.Publish(s.roomID, domain.Event{
		Name:    domain.EventQuizCompleted,
		Payload: domain.QuizCompletedPayload{Leaderboard: lb},
	})
	if s.listener != nil {
		s.listener.QuizClosed(s.roomID)
	}
	return progress{opened: notStarted, completed: true, final: lb}, nil
}

func (s *Session) submit(connID string, questionIndex int, raw string, points int) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.RoomActive {
		return domain.AnswerResult{}, domain.ErrNotActive
	}
	participant, ok := s.participants[connID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrNotParticipant
	}
	if questionIndex != s.current {
		return domain.AnswerResult{}, domain.ErrStaleAnswer
	}
	if _, done := s.answered[connID]; done {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	result := domain.AnswerResult{Correct: s.questions[s.current].Grade(raw)}
	s.answered[connID] = struct{}{}
	if result.Correct {
		participant.Score += points
	}

	s.out.Publish(s.roomID, domain.Event{Name: domain.EventLeaderboardUpdate, Payload: s.snapshotLocked()})
	s.out.Reply(connID, domain.Event{Name: domain.EventAnswerResult, Payload: result})
	return result, nil
}

func (s *Session) publishQuestionLocked() {
	s.out.Publish(s.roomID, domain.Event{
		Name: domain.EventQuestion,
		Payload: domain.QuestionPayload{
			Index:    s.current,
			Question: s.questions[s.current].Public(),
		},
	})
}

func (s *Session) snapshotLocked() domain.Leaderboard {
	lb := make(domain.Leaderboard, len(s.participants))
	for id, p := range s.participants {
		lb[id] = domain.LeaderboardEntry{Username: p.DisplayName, Score: p.Score}
	}
	return lb
}
