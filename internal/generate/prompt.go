package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"quiz-room-service/internal/domain"
)

// MaxNotesChars bounds the notes embedded in a prompt.
const MaxNotesChars = 20000

// BuildPrompt renders the generation instructions for text and params.
func BuildPrompt(text string, params domain.GenerationParams) string {
	types, _ := json.Marshal(params.Types)
	split, _ := json.Marshal(params.DifficultySplit)

	var b strings.Builder
	b.WriteString("You are a quiz generator. Use only the content from the notes below to make a quiz.\n\n")
	b.WriteString("Notes:\n")
	b.WriteString(truncateRunes(text, MaxNotesChars))
	b.WriteString("\n\nParameters:\n")
	fmt.Fprintf(&b, "- Total questions: %d\n", params.TotalQuestions)
	fmt.Fprintf(&b, "- Types and counts: %s\n", types)
	fmt.Fprintf(&b, "- Difficulty splits: %s\n", split)
	fmt.Fprintf(&b, "- Time per question (seconds): %d\n", params.TimePerQuestion)
	b.WriteString(`
Requirements:
1. For MCQs provide exactly 4 options and indicate the correct option index (0-3).
2. For True/False give the statement and the correct boolean.
3. For Fill-in-the-blank provide the sentence with a blank like "The ____ is ..." and the correct phrase.
4. Label each question with difficulty (Easy/Medium/Hard).
5. Output JSON only with fields: quiz (array), summary (string).
Example item:
{
 "type":"MCQ",
 "difficulty":"Easy",
 "question":"...?",
 "options":["a","b","c","d"],
 "correct": 1
}

Return only JSON.
`)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
