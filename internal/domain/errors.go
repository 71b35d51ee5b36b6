package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room exists for an id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidCredential is returned when a join secret does not match the room.
	ErrInvalidCredential = errors.New("invalid password")
	// ErrAlreadyStarted rejects a second start of the same room.
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrNotActive rejects progression of a room that is not running.
	ErrNotActive = errors.New("quiz is not active")
	// ErrNotParticipant is returned when a connection acts on a room it has not joined.
	ErrNotParticipant = errors.New("participant not found in room")
	// ErrStaleAnswer marks a submission for a question other than the current one.
	ErrStaleAnswer = errors.New("answer is not for the current question")
	// ErrStaleAdvance marks an advance request for a question that is no longer current.
	ErrStaleAdvance = errors.New("question already advanced")
	// ErrDuplicateAnswer marks a second submission for the same question.
	ErrDuplicateAnswer = errors.New("answer already submitted")
	// ErrRoomExists is returned by a room store when the id is already taken.
	ErrRoomExists = errors.New("room id already exists")
	// ErrInvalidQuestion is returned when generated content breaks question rules.
	ErrInvalidQuestion = errors.New("invalid question")

	ErrGenerationFailed  = errors.New("quiz generation failed")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrPersistenceFailed = errors.New("persistence failed")
)

// IsIgnorableAnswer reports whether a submission error is an expected race of
// concurrent play, or an unauthenticated sender, absorbed without any reply.
func IsIgnorableAnswer(err error) bool {
	return errors.Is(err, ErrStaleAnswer) ||
		errors.Is(err, ErrDuplicateAnswer) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrNotParticipant)
}
