package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// QuestionKind names a question variant on the wire.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "MCQ"
	KindTrueFalse      QuestionKind = "TF"
	KindFillBlank      QuestionKind = "Fill"
)

// MultipleChoiceOptions is the fixed number of choices of a multiple choice question.
const MultipleChoiceOptions = 4

// AnswerKey is the ground truth of a question. The set of implementations is
// closed: ChoiceKey, BoolKey and PhraseKey.
type AnswerKey interface {
	Kind() QuestionKind
	// Grade reports whether the raw submitted answer matches the key.
	Grade(raw string) bool
	isAnswerKey()
}

// ChoiceKey is the index of the correct choice.
type ChoiceKey struct {
	Index int
}

func (ChoiceKey) Kind() QuestionKind { return KindMultipleChoice }
func (ChoiceKey) isAnswerKey()       {}

// Grade compares the numeric value of raw with the key index.
func (k ChoiceKey) Grade(raw string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	return n == float64(k.Index)
}

// BoolKey is the truth value of a statement.
type BoolKey struct {
	Value bool
}

func (BoolKey) Kind() QuestionKind { return KindTrueFalse }
func (BoolKey) isAnswerKey()       {}

// Grade accepts "true"/"false" in any letter case.
func (k BoolKey) Grade(raw string) bool {
	v, ok := parseBool(raw)
	return ok && v == k.Value
}

// PhraseKey is the phrase that fills the blank.
type PhraseKey struct {
	Phrase string
}

func (PhraseKey) Kind() QuestionKind { return KindFillBlank }
func (PhraseKey) isAnswerKey()       {}

// Grade is an exact match after trimming and lowercasing both sides.
func (k PhraseKey) Grade(raw string) bool {
	return NormalizePhrase(raw) == NormalizePhrase(k.Phrase)
}

// NormalizePhrase trims surrounding whitespace and lowercases.
func NormalizePhrase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseBool(raw string) (bool, bool) {
	switch NormalizePhrase(raw) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Question is one item of a room's question set.
type Question struct {
	Prompt     string
	Choices    []string // multiple choice only
	Key        AnswerKey
	Difficulty Difficulty
}

// Kind is derived from the answer key so the two can never disagree.
func (q Question) Kind() QuestionKind {
	if q.Key == nil {
		return ""
	}
	return q.Key.Kind()
}

// Grade decides correctness of a raw answer.
func (q Question) Grade(raw string) bool {
	if q.Key == nil {
		return false
	}
	return q.Key.Grade(raw)
}

// Validate checks the per-kind shape rules.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	switch key := q.Key.(type) {
	case ChoiceKey:
		if len(q.Choices) != MultipleChoiceOptions {
			return fmt.Errorf("%w: multiple choice needs %d options, got %d", ErrInvalidQuestion, MultipleChoiceOptions, len(q.Choices))
		}
		if key.Index < 0 || key.Index >= len(q.Choices) {
			return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, key.Index)
		}
	case BoolKey:
		if len(q.Choices) != 0 {
			return fmt.Errorf("%w: true/false question has options", ErrInvalidQuestion)
		}
	case PhraseKey:
		if NormalizePhrase(key.Phrase) == "" {
			return fmt.Errorf("%w: empty answer phrase", ErrInvalidQuestion)
		}
	case nil:
		return fmt.Errorf("%w: missing answer key", ErrInvalidQuestion)
	}
	return nil
}

// PublicQuestion is what participants see: never the answer key.
type PublicQuestion struct {
	Type       QuestionKind `json:"type"`
	Difficulty Difficulty   `json:"difficulty"`
	Question   string       `json:"question"`
	Options    []string     `json:"options,omitempty"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	var options []string
	if len(q.Choices) > 0 {
		options = append([]string(nil), q.Choices...)
	}
	return PublicQuestion{
		Type:       q.Kind(),
		Difficulty: q.Difficulty,
		Question:   q.Prompt,
		Options:    options,
	}
}

// questionJSON is the stored and generated form of a question.
type questionJSON struct {
	Type       string          `json:"type"`
	Difficulty string          `json:"difficulty"`
	Question   string          `json:"question"`
	Options    []string        `json:"options,omitempty"`
	Correct    json.RawMessage `json:"correct"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := questionJSON{
		Type:       string(q.Kind()),
		Difficulty: string(q.Difficulty),
		Question:   q.Prompt,
		Options:    q.Choices,
	}
	var correct any
	switch key := q.Key.(type) {
	case ChoiceKey:
		correct = key.Index
	case BoolKey:
		correct = key.Value
	case PhraseKey:
		correct = key.Phrase
	case nil:
		return nil, fmt.Errorf("%w: missing answer key", ErrInvalidQuestion)
	}
	raw, err := json.Marshal(correct)
	if err != nil {
		return nil, err
	}
	out.Correct = raw
	return json.Marshal(out)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var in questionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := ParseQuestionKind(in.Type)
	if err != nil {
		return err
	}
	correct := scalarText(in.Correct)

	var key AnswerKey
	switch kind {
	case KindMultipleChoice:
		idx, err := strconv.Atoi(strings.TrimSpace(correct))
		if err != nil {
			return fmt.Errorf("%w: correct option %q is not an index", ErrInvalidQuestion, correct)
		}
		key = ChoiceKey{Index: idx}
	case KindTrueFalse:
		v, ok := parseBool(correct)
		if !ok {
			return fmt.Errorf("%w: correct value %q is not a boolean", ErrInvalidQuestion, correct)
		}
		key = BoolKey{Value: v}
	case KindFillBlank:
		key = PhraseKey{Phrase: correct}
	}

	*q = Question{
		Prompt:     in.Question,
		Choices:    in.Options,
		Key:        key,
		Difficulty: ParseDifficulty(in.Difficulty),
	}
	return nil
}

// ParseQuestionKind accepts the generator's spellings of a kind.
func ParseQuestionKind(s string) (QuestionKind, error) {
	switch strings.NewReplacer("_", "", "-", "", " ", "", "/", "").Replace(strings.ToLower(s)) {
	case "mcq", "multiplechoice":
		return KindMultipleChoice, nil
	case "tf", "truefalse":
		return KindTrueFalse, nil
	case "fill", "fillblank", "fillintheblank":
		return KindFillBlank, nil
	}
	return "", fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, s)
}

// ParseDifficulty is case-insensitive; anything unrecognised is Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	}
	return DifficultyMedium
}

// AnswerText renders a JSON scalar (string, number or bool) as plain text.
func AnswerText(raw json.RawMessage) string {
	return scalarText(raw)
}

func scalarText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
