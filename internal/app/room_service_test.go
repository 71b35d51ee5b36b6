package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	"quiz-room-service/internal/random/randomtest"
)

type staticExtractor struct {
	text string
	err  error
}

func (e staticExtractor) Extract(context.Context, domain.Document) (string, error) {
	return e.text, e.err
}

type staticGenerator struct {
	quiz   domain.GeneratedQuiz
	err    error
	gotTxt string
}

func (g *staticGenerator) Generate(_ context.Context, text string, _ domain.GenerationParams) (domain.GeneratedQuiz, error) {
	g.gotTxt = text
	return g.quiz, g.err
}

type archiveFunc func(ctx context.Context, key string, doc domain.Document) error

func (f archiveFunc) Put(ctx context.Context, key string, doc domain.Document) error {
	return f(ctx, key, doc)
}

func generatedQuiz() domain.GeneratedQuiz {
	return domain.GeneratedQuiz{
		Questions: []domain.Question{
			choice(1),
			{Prompt: "Sky is blue.", Key: domain.BoolKey{Value: true}},
		},
		Summary: "colours",
	}
}

func TestCreateRoomStoresHashedCredential(t *testing.T) {
	ctx := context.Background()
	rooms := memory.NewRoomRepository()
	gen := &staticGenerator{quiz: generatedQuiz()}
	stamp := time.Date(2024, 11, 22, 9, 30, 0, 0, time.UTC)
	service := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     rooms,
		Extractor: staticExtractor{text: "notes"},
		Generator: gen,
		Now:       func() time.Time { return stamp },
	})

	resp, err := service.CreateRoom(ctx, app.CreateRoomRequest{
		Document:   domain.Document{Name: "notes.txt", Data: []byte("notes")},
		Params:     domain.DefaultGenerationParams(),
		Credential: "hunter2",
	})
	require.NoError(t, err)
	assert.Len(t, resp.RoomID, app.DefaultRoomIDLength)
	assert.Equal(t, "hunter2", resp.Credential)
	assert.Equal(t, "notes", gen.gotTxt)

	room, err := rooms.GetRoom(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", room.CredentialHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(room.CredentialHash), []byte("hunter2")))
	assert.Equal(t, domain.RoomCreated, room.Status)
	assert.Equal(t, stamp, room.CreatedAt)
	assert.Len(t, room.Questions, 2)

	summary, err := service.Summary(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "colours", summary.Summary)
	assert.Len(t, summary.Quiz, 2)
}

func TestCreateRoomRetriesOnIDCollision(t *testing.T) {
	ctx := context.Background()
	rooms := memory.NewRoomRepository()
	require.NoError(t, rooms.CreateRoom(ctx, domain.Room{ID: "TAKEN"}))

	service := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     rooms,
		Extractor: staticExtractor{text: "notes"},
		Generator: &staticGenerator{quiz: generatedQuiz()},
		Random:    randomtest.NewSequence("s3cret", "TAKEN", "FRESH"),
	})

	resp, err := service.CreateRoom(ctx, app.CreateRoomRequest{Params: domain.DefaultGenerationParams()})
	require.NoError(t, err)
	assert.Equal(t, "FRESH", resp.RoomID)
	assert.Equal(t, "s3cret", resp.Credential)
}

func TestCreateRoomGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	rooms := memory.NewRoomRepository()
	require.NoError(t, rooms.CreateRoom(ctx, domain.Room{ID: "TAKEN"}))

	service := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     rooms,
		Extractor: staticExtractor{text: "notes"},
		Generator: &staticGenerator{quiz: generatedQuiz()},
		Random:    randomtest.NewSequence("s3cret", "TAKEN"),
	})

	_, err := service.CreateRoom(ctx, app.CreateRoomRequest{})
	assert.True(t, errors.Is(err, domain.ErrPersistenceFailed))
}

func TestCreateRoomFailuresLeaveNoRoom(t *testing.T) {
	invalid := domain.GeneratedQuiz{Questions: []domain.Question{
		{Prompt: "Pick", Choices: []string{"a", "b"}, Key: domain.ChoiceKey{Index: 0}},
	}}
	cases := []struct {
		name      string
		extractor staticExtractor
		generator *staticGenerator
		want      error
	}{
		{"extraction", staticExtractor{err: errors.New("unreadable")}, &staticGenerator{quiz: generatedQuiz()}, domain.ErrExtractionFailed},
		{"generation", staticExtractor{text: "notes"}, &staticGenerator{err: errors.New("upstream 500")}, domain.ErrGenerationFailed},
		{"empty quiz", staticExtractor{text: "notes"}, &staticGenerator{}, domain.ErrGenerationFailed},
		{"invalid question", staticExtractor{text: "notes"}, &staticGenerator{quiz: invalid}, domain.ErrGenerationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := memory.NewRoomRepository()
			service := app.NewRoomService(app.RoomServiceConfig{
				Rooms:     rooms,
				Extractor: tc.extractor,
				Generator: tc.generator,
				Random:    randomtest.NewSequence("s3cret", "ROOM"),
			})
			_, err := service.CreateRoom(context.Background(), app.CreateRoomRequest{})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)

			_, err = rooms.GetRoom(context.Background(), "ROOM")
			assert.True(t, errors.Is(err, domain.ErrRoomNotFound))
		})
	}
}

func TestCreateRoomArchivesSourceDocument(t *testing.T) {
	var keys []string
	archive := archiveFunc(func(_ context.Context, key string, _ domain.Document) error {
		keys = append(keys, key)
		return errors.New("bucket offline")
	})
	service := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     memory.NewRoomRepository(),
		Extractor: staticExtractor{text: "notes"},
		Generator: &staticGenerator{quiz: generatedQuiz()},
		Archive:   archive,
		Random:    randomtest.NewSequence("s3cret", "ROOM"),
	})

	resp, err := service.CreateRoom(context.Background(), app.CreateRoomRequest{
		Document: domain.Document{Name: `C:\Users\me\lecture 1.pdf`, Data: []byte("%PDF")},
	})
	require.NoError(t, err, "archive failures must not fail room creation")
	assert.Equal(t, "ROOM", resp.RoomID)
	assert.Equal(t, []string{"rooms/ROOM/lecture 1.pdf"}, keys)
}

func TestSummaryOfMissingRoom(t *testing.T) {
	service := app.NewRoomService(app.RoomServiceConfig{Rooms: memory.NewRoomRepository()})
	_, err := service.Summary(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrRoomNotFound))
}

func TestCreateRoomIDsAreDistinct(t *testing.T) {
	ctx := context.Background()
	rooms := memory.NewRoomRepository()
	service := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     rooms,
		Extractor: staticExtractor{text: "notes"},
		Generator: &staticGenerator{quiz: generatedQuiz()},
	})

	const n = 25
	ids := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		resp, err := service.CreateRoom(ctx, app.CreateRoomRequest{Credential: "pw"})
		require.NoError(t, err)
		assert.Len(t, resp.RoomID, app.DefaultRoomIDLength)
		ids[resp.RoomID] = struct{}{}

		_, err = rooms.GetRoom(ctx, resp.RoomID)
		require.NoError(t, err)
	}
	assert.Len(t, ids, n)
}
