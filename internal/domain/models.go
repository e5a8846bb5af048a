package domain

import "time"

// Player roles. Hosts drive the game flow and never appear on leaderboards.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// Rank movement markers for leaderboard entries.
const (
	RankUp   = "up"
	RankDown = "down"
	RankSame = "same"
)

// Player is the identity record resolved from a device.
type Player struct {
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// Game is one live play-through of a quiz.
type Game struct {
	ID     string `json:"id"`
	QuizID string `json:"quizId"`
	HostID string `json:"hostId"`
	Status string `json:"status"`
}

// Question carries only what scoring needs: base points, the answering window
// in seconds, and the correct choice.
type Question struct {
	ID              string  `json:"id"`
	QuizID          string  `json:"quizId"`
	BasePoints      int     `json:"basePoints"`
	TimeAllowed     float64 `json:"timeAllowed"`
	CorrectAnswerID string  `json:"correctAnswerId"`
}

// PlaySettings are the per-quiz scoring toggles. Both default to off when the
// quiz has no settings row.
type PlaySettings struct {
	TimeBonus   bool `json:"timeBonus"`
	StreakBonus bool `json:"streakBonus"`
}

// AnswerSubmission is the raw answer signal from a client. AnswerID is nil
// when the player let the timer run out without picking a choice.
type AnswerSubmission struct {
	QuestionID     string  `json:"questionId"`
	QuestionNumber int     `json:"questionNumber"`
	AnswerID       *string `json:"answerId"`
	TimeTaken      float64 `json:"timeTaken"`
}

// AnswerRecord is one scored answer inside a player's report.
type AnswerRecord struct {
	QuestionID   string    `json:"questionId"`
	AnswerID     *string   `json:"answerId"`
	IsCorrect    bool      `json:"isCorrect"`
	TimeTaken    float64   `json:"timeTaken"`
	PointsEarned int       `json:"pointsEarned"`
	AnsweredAt   time.Time `json:"answeredAt"`
}

// StreakSummary tracks the running and best streak of correct, in-time answers.
type StreakSummary struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// TimingSummary is derived from all recorded time-taken values, in seconds.
type TimingSummary struct {
	Average float64 `json:"average"`
	Fastest float64 `json:"fastest"`
	Slowest float64 `json:"slowest"`
}

// RankEvent is one entry in the rank-history trail, appended per answer.
type RankEvent struct {
	QuestionNumber int       `json:"questionNumber"`
	Rank           int       `json:"rank"`
	Score          int       `json:"score"`
	PointsEarned   int       `json:"pointsEarned"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// AnswerReport is a player's cumulative per-game answer history and derived
// statistics. Ranks are 1-based; zero means "not ranked yet".
type AnswerReport struct {
	TotalAnswers     int            `json:"totalAnswers"`
	CorrectAnswers   int            `json:"correctAnswers"`
	IncorrectAnswers int            `json:"incorrectAnswers"`
	Answers          []AnswerRecord `json:"answers"`
	Streak           StreakSummary  `json:"streak"`
	Timing           TimingSummary  `json:"timing"`
	CurrentRank      int            `json:"currentRank,omitempty"`
	PreviousRank     int            `json:"previousRank,omitempty"`
	RankHistory      []RankEvent    `json:"rankHistory"`
}

// HasAnswered reports whether the question already appears in the report.
func (r *AnswerReport) HasAnswered(questionID string) bool {
	for i := range r.Answers {
		if r.Answers[i].QuestionID == questionID {
			return true
		}
	}
	return false
}

// RunningStreak counts consecutive correct answers scanning from the most
// recent record backward, stopping at the first incorrect one.
func (r *AnswerReport) RunningStreak() int {
	streak := 0
	for i := len(r.Answers) - 1; i >= 0; i-- {
		if !r.Answers[i].IsCorrect {
			break
		}
		streak++
	}
	return streak
}

// GamePlayerData is the durable projection of one player's state in one game.
type GamePlayerData struct {
	PlayerID string       `json:"playerId"`
	GameID   string       `json:"gameId"`
	Score    int          `json:"score"`
	Report   AnswerReport `json:"report"`
}

// GamePlayer pairs the durable row with the resolved player profile.
type GamePlayer struct {
	Player Player
	Data   GamePlayerData
}

// LeaderboardEntry is one ranked row. RankChange is empty on a player's first
// leaderboard appearance.
type LeaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	Nickname    string `json:"nickname"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
	RankChange  string `json:"rankChange,omitempty"`
	ScoreChange int    `json:"scoreChange"`
}

// Leaderboard is the ordered scoreboard for one game.
type Leaderboard struct {
	GameID    string             `json:"gameId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// PlayerStats summarizes one player's report for direct queries.
type PlayerStats struct {
	PlayerID         string        `json:"playerId"`
	GameID           string        `json:"gameId"`
	Score            int           `json:"score"`
	TotalAnswers     int           `json:"totalAnswers"`
	CorrectAnswers   int           `json:"correctAnswers"`
	IncorrectAnswers int           `json:"incorrectAnswers"`
	Streak           StreakSummary `json:"streak"`
	Timing           TimingSummary `json:"timing"`
	CurrentRank      int           `json:"currentRank,omitempty"`
	PreviousRank     int           `json:"previousRank,omitempty"`
	RankHistory      []RankEvent   `json:"rankHistory"`
}
