package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/metrics"
	"quiz-room-service/internal/random"
)

const (
	// DefaultRoomIDLength gives ~58 bits of entropy with random.CodeAlphabet.
	DefaultRoomIDLength = 10
	// GeneratedSecretLength is the length of a secret generated for the caller.
	GeneratedSecretLength = 6

	maxRoomIDAttempts = 5
)

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

// QuizGenerator produces questions from extracted text.
type QuizGenerator interface {
	Generate(ctx context.Context, text string, params domain.GenerationParams) (domain.GeneratedQuiz, error)
}

// DocumentArchive keeps a copy of uploaded source documents.
type DocumentArchive interface {
	Put(ctx context.Context, key string, doc domain.Document) error
}

// CreateRoomRequest is the input of the room creation flow.
type CreateRoomRequest struct {
	Document   domain.Document
	Params     domain.GenerationParams
	Credential string // optional; generated when empty
}

// CreateRoomResponse carries the plaintext credential. It is never retrievable again.
type CreateRoomResponse struct {
	RoomID     string `json:"roomId"`
	Credential string `json:"password"`
}

// RoomService creates rooms from uploaded documents and serves room summaries.
type RoomService struct {
	rooms     RoomRepository
	extractor TextExtractor
	generator QuizGenerator
	archive   DocumentArchive
	random    random.Source
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	idLength  int
}

// RoomServiceConfig wires RoomService. Archive, Metrics and Random are optional.
type RoomServiceConfig struct {
	Rooms     RoomRepository
	Extractor TextExtractor
	Generator QuizGenerator
	Archive   DocumentArchive
	Random    random.Source
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
	IDLength  int
}

func NewRoomService(cfg RoomServiceConfig) *RoomService {
	s := &RoomService{
		rooms:     cfg.Rooms,
		extractor: cfg.Extractor,
		generator: cfg.Generator,
		archive:   cfg.Archive,
		random:    cfg.Random,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		idLength:  cfg.IDLength,
	}
	if s.random == nil {
		s.random = random.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.idLength <= 0 {
		s.idLength = DefaultRoomIDLength
	}
	s.logger = s.logger.With(slog.String("component", "rooms"))
	return s
}

// CreateRoom runs extraction, generation, credential hashing and persistence.
// Any failure aborts the whole flow and no room becomes visible.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (CreateRoomResponse, error) {
	text, err := s.extractor.Extract(ctx, req.Document)
	if err != nil {
		return CreateRoomResponse{}, classify(domain.ErrExtractionFailed, err)
	}

	generated, err := s.generator.Generate(ctx, text, req.Params)
	if err != nil {
		return CreateRoomResponse{}, classify(domain.ErrGenerationFailed, err)
	}
	if len(generated.Questions) == 0 {
		return CreateRoomResponse{}, fmt.Errorf("%w: no questions generated", domain.ErrGenerationFailed)
	}
	for i, q := range generated.Questions {
		if err := q.Validate(); err != nil {
			return CreateRoomResponse{}, fmt.Errorf("%w: question %d: %w", domain.ErrGenerationFailed, i, err)
		}
	}

	secret := req.Credential
	if secret == "" {
		secret = s.random.String(GeneratedSecretLength, random.CodeAlphabet)
	}
	hash, err := HashCredential(secret)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("hash credential: %w", err)
	}

	room := domain.Room{
		CredentialHash: hash,
		Questions:      generated.Questions,
		Summary:        generated.Summary,
		Params:         req.Params,
		Status:         domain.RoomCreated,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.insertWithFreshID(ctx, &room); err != nil {
		return CreateRoomResponse{}, err
	}

	s.archiveDocument(ctx, room.ID, req.Document)
	s.metrics.RoomCreated()
	s.logger.Info("room created", slog.String("room", room.ID), slog.Int("questions", len(room.Questions)))
	return CreateRoomResponse{RoomID: room.ID, Credential: secret}, nil
}

// Summary returns the public view of a room.
func (s *RoomService) Summary(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return room.Summarize(), nil
}

func (s *RoomService) insertWithFreshID(ctx context.Context, room *domain.Room) error {
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		room.ID = s.random.String(s.idLength, random.CodeAlphabet)
		err := s.rooms.CreateRoom(ctx, *room)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRoomExists) {
			return fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
		}
		s.logger.Warn("room id collision", slog.String("room", room.ID), slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("%w: no free room id after %d attempts", domain.ErrPersistenceFailed, maxRoomIDAttempts)
}

func (s *RoomService) archiveDocument(ctx context.Context, roomID string, doc domain.Document) {
	if s.archive == nil || len(doc.Data) == 0 {
		return
	}
	key := "rooms/" + roomID + "/" + safeName(doc.Name)
	if err := s.archive.Put(ctx, key, doc); err != nil {
		s.logger.Warn("archive source document failed", slog.String("room", roomID), slog.String("error", err.Error()))
	}
}

func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "source"
	}
	return base
}

func classify(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
