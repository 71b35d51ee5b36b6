package domain

import "time"

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomCreated   RoomStatus = "created"
	RoomActive    RoomStatus = "active"
	RoomCompleted RoomStatus = "completed"
)

// Difficulty is informational only; it never affects grading.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// QuestionCounts is the requested number of questions per kind.
type QuestionCounts struct {
	MultipleChoice int `json:"mcq"`
	TrueFalse      int `json:"tf"`
	FillBlank      int `json:"fill"`
}

// DifficultySplit holds percentage targets per difficulty.
type DifficultySplit struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// GenerationParams are the parameters handed to the quiz generator. The engine
// never interprets them beyond TimePerQuestion for the optional auto-advance.
type GenerationParams struct {
	TotalQuestions  int             `json:"totalQuestions"`
	Types           QuestionCounts  `json:"types"`
	DifficultySplit DifficultySplit `json:"difficultySplit"`
	TimePerQuestion int             `json:"timePerQ"` // seconds
}

// DefaultGenerationParams mirrors the defaults of the room creation form.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		TotalQuestions:  10,
		Types:           QuestionCounts{MultipleChoice: 8, TrueFalse: 1, FillBlank: 1},
		DifficultySplit: DifficultySplit{Easy: 50, Medium: 30, Hard: 20},
		TimePerQuestion: 20,
	}
}

// Room is created once and is immutable afterwards except for Status.
type Room struct {
	ID             string           `json:"roomId"`
	CredentialHash string           `json:"credentialHash"`
	Questions      []Question       `json:"quiz"`
	Summary        string           `json:"summary"`
	Params         GenerationParams `json:"params"`
	Status         RoomStatus       `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// RoomSummary is the read-only view shown before joining. Answer keys are stripped.
type RoomSummary struct {
	RoomID    string           `json:"roomId"`
	Params    GenerationParams `json:"params"`
	Quiz      []PublicQuestion `json:"quiz"`
	Summary   string           `json:"summary"`
	Status    RoomStatus       `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Summarize builds the public summary of a room.
func (r Room) Summarize() RoomSummary {
	quiz := make([]PublicQuestion, 0, len(r.Questions))
	for _, q := range r.Questions {
		quiz = append(quiz, q.Public())
	}
	status := r.Status
	if status == "" {
		status = RoomCreated
	}
	return RoomSummary{
		RoomID:    r.ID,
		Params:    r.Params,
		Quiz:      quiz,
		Summary:   r.Summary,
		Status:    status,
		CreatedAt: r.CreatedAt,
	}
}

// Participant is one joined connection.
type Participant struct {
	ConnectionID string
	DisplayName  string
	Score        int
	JoinedAt     time.Time
}

// LeaderboardEntry is the wire form of a participant's standing.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Leaderboard maps connection id to standing. It is a mapping, not a ranking;
// clients sort if they want ranks.
type Leaderboard map[string]LeaderboardEntry

// AnswerResult is the private reply to a graded submission.
type AnswerResult struct {
	Correct bool `json:"correct"`
}

// QuizResult is published when a room completes.
type QuizResult struct {
	RoomID      string      `json:"roomId"`
	Questions   int         `json:"totalQuestions"`
	Leaderboard Leaderboard `json:"leaderboard"`
	CompletedAt time.Time   `json:"completedAt"`
}

// Document is an uploaded source file.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// GeneratedQuiz is the output of the quiz generator.
type GeneratedQuiz struct {
	Questions []Question `json:"quiz"`
	Summary   string     `json:"summary"`
}
