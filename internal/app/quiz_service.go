package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/metrics"
)

// DefaultPointsPerCorrect is awarded for each correct answer.
const DefaultPointsPerCorrect = 10

const anonymousName = "Anon"

// RoomRepository abstracts the room store (in-memory, Redis, Postgres).
type RoomRepository interface {
	// CreateRoom stores a new room and returns domain.ErrRoomExists on an id collision.
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	UpdateStatus(ctx context.Context, roomID string, status domain.RoomStatus) error
}

// SessionRepository abstracts where live sessions are registered.
type SessionRepository interface {
	GetOrCreate(roomID string, create func() *Session) *Session
	Get(roomID string) (*Session, bool)
	// DeleteIfIdle retires the session when it is empty and not running.
	DeleteIfIdle(roomID string) bool
	Count() int
}

// Broadcaster delivers room-scoped events and direct replies. Calls must not block.
type Broadcaster interface {
	Attach(roomID, connID string)
	Detach(roomID, connID string)
	Publish(roomID string, event domain.Event)
	Reply(connID string, event domain.Event)
}

// ProgressListener is told when questions open and when a room stops running.
type ProgressListener interface {
	QuestionOpened(roomID string, index int, timeLimit time.Duration)
	QuizClosed(roomID string)
}

// ResultPublisher ships the final leaderboard of a completed quiz.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result domain.QuizResult) error
}

// QuizService is the quiz session engine: join, progression, grading and leave.
type QuizService struct {
	rooms    RoomRepository
	sessions SessionRepository
	auth     *Authenticator
	out      Broadcaster
	logger   *slog.Logger
	metrics  *metrics.Metrics
	points   int
	now      func() time.Time
	listener ProgressListener
	results  ResultPublisher

	mu          sync.Mutex
	memberships map[string]string // connection id -> room id
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

// WithPointsPerCorrect overrides the score awarded per correct answer.
func WithPointsPerCorrect(points int) Option {
	return func(s *QuizService) {
		if points > 0 {
			s.points = points
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithResultPublisher(p ResultPublisher) Option {
	return func(s *QuizService) { s.results = p }
}

func NewQuizService(rooms RoomRepository, sessions SessionRepository, out Broadcaster, opts ...Option) *QuizService {
	s := &QuizService{
		rooms:       rooms,
		sessions:    sessions,
		auth:        NewAuthenticator(rooms),
		out:         out,
		logger:      slog.Default(),
		points:      DefaultPointsPerCorrect,
		now:         time.Now,
		memberships: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "quiz"))
	return s
}

// SetProgressListener installs the listener. Call it before serving traffic.
func (s *QuizService) SetProgressListener(l ProgressListener) {
	s.listener = l
}

// Join authenticates the connection and registers it as a participant with score 0.
// Rejections are replied to the connection as join_error.
func (s *QuizService) Join(ctx context.Context, roomID, connID, displayName, credential string) (domain.Leaderboard, error) {
	room, err := s.auth.Authenticate(ctx, roomID, credential)
	if err != nil {
		s.metrics.JoinRejected(err)
		s.logger.Info("join rejected", slog.String("room", roomID), slog.String("conn", connID), slog.String("reason", err.Error()))
		s.out.Reply(connID, domain.Event{Name: domain.EventJoinError, Payload: domain.ReasonPayload{Reason: rejectionReason(err)}})
		return nil, err
	}
	if displayName == "" {
		displayName = anonymousName
	}

	s.mu.Lock()
	previous, hadRoom := s.memberships[connID]
	s.mu.Unlock()
	if hadRoom && previous != room.ID {
		s.Leave(ctx, connID)
	}

	for {
		session := s.sessions.GetOrCreate(room.ID, func() *Session {
			session := NewSession(room, s.out, s.now)
			session.listener = s.listener
			return session
		})
		lb, ok := session.join(connID, displayName)
		if !ok {
			// retired between lookup and join; a fresh session will be created
			continue
		}
		s.mu.Lock()
		s.memberships[connID] = room.ID
		s.mu.Unlock()

		s.metrics.JoinAccepted()
		s.metrics.SetActiveSessions(s.sessions.Count())
		s.logger.Info("participant joined", slog.String("room", room.ID), slog.String("conn", connID), slog.Int("participants", len(lb)))
		return lb, nil
	}
}

// Start moves a room from Created to Active and opens the first question.
// Rejections are replied to the caller as an error event.
func (s *QuizService) Start(ctx context.Context, roomID, connID string) error {
	session, err := s.sessionFor(ctx, roomID)
	if err == nil {
		var p progress
		p, err = session.start(ctx, connID, s.rooms.UpdateStatus)
		if err == nil {
			s.logger.Info("quiz started", slog.String("room", roomID), slog.String("conn", connID))
			s.afterProgress(ctx, session, p)
			return nil
		}
	}
	s.logger.Info("start rejected", slog.String("room", roomID), slog.String("conn", connID), slog.String("reason", err.Error()))
	s.out.Reply(connID, domain.Event{Name: domain.EventError, Payload: domain.ReasonPayload{Reason: rejectionReason(err)}})
	return err
}

// Advance moves past question expected. It is a no-op returning
// domain.ErrStaleAdvance when expected is no longer the open question.
func (s *QuizService) Advance(ctx context.Context, roomID string, expected int) error {
	session, ok := s.sessions.Get(roomID)
	if !ok {
		return domain.ErrNotActive
	}
	p, err := session.advance(ctx, expected, s.rooms.UpdateStatus)
	if err != nil {
		return err
	}
	s.afterProgress(ctx, session, p)
	return nil
}

// AdvanceAs is Advance on behalf of a participant connection.
func (s *QuizService) AdvanceAs(ctx context.Context, roomID, connID string, expected int) error {
	session, ok := s.sessions.Get(roomID)
	if !ok || !session.isParticipant(connID) {
		err := domain.ErrNotParticipant
		s.out.Reply(connID, domain.Event{Name: domain.EventError, Payload: domain.ReasonPayload{Reason: rejectionReason(err)}})
		return err
	}
	err := s.Advance(ctx, roomID, expected)
	switch {
	case err == nil, errors.Is(err, domain.ErrStaleAdvance):
	default:
		s.out.Reply(connID, domain.Event{Name: domain.EventError, Payload: domain.ReasonPayload{Reason: rejectionReason(err)}})
	}
	return err
}

// SubmitAnswer grades a participant's answer to the open question. Stale,
// duplicate and unauthenticated submissions return an error for which
// domain.IsIgnorableAnswer is true and produce no broadcast or reply.
func (s *QuizService) SubmitAnswer(_ context.Context, roomID, connID string, questionIndex int, raw string) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(roomID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrNotParticipant
	}
	result, err := session.submit(connID, questionIndex, raw, s.points)
	if err != nil {
		s.logger.Debug("answer ignored", slog.String("room", roomID), slog.String("conn", connID), slog.Int("question", questionIndex), slog.String("reason", err.Error()))
		return domain.AnswerResult{}, err
	}
	s.metrics.AnswerGraded(result.Correct)
	return result, nil
}

// Leave removes the connection from whichever room it joined. It is idempotent.
func (s *QuizService) Leave(_ context.Context, connID string) {
	s.mu.Lock()
	roomID, ok := s.memberships[connID]
	delete(s.memberships, connID)
	s.mu.Unlock()
	if !ok {
		return
	}

	session, ok := s.sessions.Get(roomID)
	if !ok {
		return
	}
	if _, left := session.leave(connID); left {
		s.logger.Info("participant left", slog.String("room", roomID), slog.String("conn", connID))
	}
	if s.sessions.DeleteIfIdle(roomID) {
		s.logger.Info("session retired", slog.String("room", roomID))
	}
	s.metrics.SetActiveSessions(s.sessions.Count())
}

// RoomOf returns the room a connection has joined.
func (s *QuizService) RoomOf(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.memberships[connID]
	return roomID, ok
}

func (s *QuizService) sessionFor(ctx context.Context, roomID string) (*Session, error) {
	if session, ok := s.sessions.Get(roomID); ok {
		return session, nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	// the room exists but nobody has joined it
	return nil, domain.ErrNotParticipant
}

// afterProgress runs outside the session lock. The progress listener has
// already been told under it.
func (s *QuizService) afterProgress(ctx context.Context, session *Session, p progress) {
	if !p.completed {
		return
	}
	s.metrics.QuizCompleted()
	s.logger.Info("quiz completed", slog.String("room", session.ID()), slog.Int("participants", len(p.final)))

	if s.results == nil {
		return
	}
	result := domain.QuizResult{
		RoomID:      session.ID(),
		Questions:   len(session.questions),
		Leaderboard: p.final,
		CompletedAt: s.now(),
	}
	if err := s.results.PublishResult(ctx, result); err != nil {
		s.logger.Warn("publish result failed", slog.String("room", session.ID()), slog.String("error", err.Error()))
	}
}

// rejectionReason maps an error to the message shown to the connection.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "Invalid password"
	case errors.Is(err, domain.ErrAlreadyStarted):
		return "Quiz already started"
	case errors.Is(err, domain.ErrNotActive):
		return "Quiz is not active"
	case errors.Is(err, domain.ErrNotParticipant):
		return "Join the room first"
	case errors.Is(err, domain.ErrPersistenceFailed):
		return "Could not save room state, try again"
	}
	return "Request failed"
}
