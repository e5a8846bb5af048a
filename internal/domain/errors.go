package domain

import "errors"

var (
	// ErrGameNotFound is returned when a submission references an unknown game.
	ErrGameNotFound = errors.New("game not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCorrectAnswerNotFound indicates a question has no correct choice configured.
	ErrCorrectAnswerNotFound = errors.New("correct answer not found")
	// ErrPlayerNotFound is returned when the submitting player cannot be resolved.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuestionEnded rejects submissions past the question window plus grace.
	ErrQuestionEnded = errors.New("question ended, answers locked")
)

// Reason maps a pipeline failure to its stable machine-readable string so the
// calling layer can translate it into a user-facing status.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "GAME_NOT_FOUND"
	case errors.Is(err, ErrQuestionNotFound):
		return "QUESTION_NOT_FOUND"
	case errors.Is(err, ErrCorrectAnswerNotFound):
		return "CORRECT_ANSWER_NOT_FOUND"
	case errors.Is(err, ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	case errors.Is(err, ErrAlreadyAnswered):
		return "ALREADY_ANSWERED"
	case errors.Is(err, ErrQuestionEnded):
		return "QUESTION_ENDED"
	default:
		return "INTERNAL_ERROR"
	}
}
