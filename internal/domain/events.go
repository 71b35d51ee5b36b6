package domain

// Inbound event names.
const (
	EventJoinRoom     = "join_room"
	EventStartQuiz    = "start_quiz"
	EventSubmitAnswer = "submit_answer"
	EventNextQuestion = "next_question"
)

// Outbound event names.
const (
	EventJoined            = "joined"
	EventJoinError         = "join_error"
	EventQuizStarted       = "quiz_started"
	EventQuestion          = "question"
	EventAnswerResult      = "answer_result"
	EventLeaderboardUpdate = "leaderboard_update"
	EventQuizCompleted     = "quiz_completed"
	EventError             = "error"
)

// Event is a named payload delivered to a room or a single connection.
type Event struct {
	Name    string
	Payload any
}

type JoinedPayload struct {
	Success bool `json:"success"`
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

type QuizStartedPayload struct {
	TotalQuestions int `json:"totalQuestions"`
}

type QuestionPayload struct {
	Index    int            `json:"index"`
	Question PublicQuestion `json:"question"`
}

type QuizCompletedPayload struct {
	Leaderboard Leaderboard `json:"leaderboard"`
}
