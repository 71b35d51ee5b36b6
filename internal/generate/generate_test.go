package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

const sampleReply = `{
  "quiz": [
    {"type":"MCQ","difficulty":"Easy","question":"2+2?","options":["1","2","3","4"],"correct":3},
    {"type":"TF","difficulty":"Medium","question":"The sky is green.","correct":false},
    {"type":"Fill","difficulty":"Hard","question":"The ____ is the powerhouse of the cell.","correct":"mitochondria"}
  ],
  "summary": "Arithmetic and biology basics."
}`

func TestParseQuizVariants(t *testing.T) {
	cases := map[string]string{
		"bare":   sampleReply,
		"fenced": "```json\n" + sampleReply + "\n```",
		"prose":  "Sure! Here is your quiz:\n" + sampleReply + "\nGood luck.",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			quiz, err := ParseQuiz(content)
			require.NoError(t, err)
			require.Len(t, quiz.Questions, 3)
			assert.Equal(t, "Arithmetic and biology basics.", quiz.Summary)
			assert.Equal(t, domain.KindMultipleChoice, quiz.Questions[0].Kind())
			assert.True(t, quiz.Questions[0].Grade("3"))
			assert.True(t, quiz.Questions[1].Grade("False"))
			assert.True(t, quiz.Questions[2].Grade(" Mitochondria "))
		})
	}
}

func TestParseQuizRejectsGarbage(t *testing.T) {
	_, err := ParseQuiz("I cannot help with that.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationFailed))
}

func TestBuildPromptTruncatesNotes(t *testing.T) {
	notes := strings.Repeat("a", MaxNotesChars+500)
	prompt := BuildPrompt(notes, domain.DefaultGenerationParams())

	assert.Contains(t, prompt, strings.Repeat("a", MaxNotesChars)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("a", MaxNotesChars+1))
	assert.Contains(t, prompt, `- Types and counts: {"mcq":8,"tf":1,"fill":1}`)
	assert.Contains(t, prompt, `- Difficulty splits: {"easy":50,"medium":30,"hard":20}`)
	assert.Contains(t, prompt, "- Time per question (seconds): 20")
}

func TestClientGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		reply := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": "```json\n" + sampleReply + "\n```"}},
			},
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	client := NewClient(Config{APIURL: srv.URL, APIKey: "test-key", Timeout: time.Second})
	quiz, err := client.Generate(context.Background(), "notes", domain.DefaultGenerationParams())
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 3)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "Notes:\nnotes")
}

func TestClientGenerateFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIURL: srv.URL, APIKey: "k"}).Generate(context.Background(), "notes", domain.DefaultGenerationParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationFailed))

	_, err = NewClient(Config{}).Generate(context.Background(), "notes", domain.DefaultGenerationParams())
	assert.True(t, errors.Is(err, domain.ErrGenerationFailed))
}
