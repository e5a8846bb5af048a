package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

// GameStore resolves read-only game context (from cache/backing store).
type GameStore interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	// GetPlaySettings returns the quiz toggles, with both bonuses disabled
	// when the quiz has no settings row.
	GetPlaySettings(ctx context.Context, quizID string) (domain.PlaySettings, error)
	GetPlayer(ctx context.Context, playerID string) (domain.Player, error)
}

// PlayerDataStore abstracts how per-player game state is stored. Update must
// write score and report atomically for one row.
type PlayerDataStore interface {
	Get(ctx context.Context, gameID, playerID string) (domain.GamePlayerData, bool, error)
	Create(ctx context.Context, data domain.GamePlayerData) error
	Update(ctx context.Context, data domain.GamePlayerData) error
	ListByGame(ctx context.Context, gameID string) ([]domain.GamePlayer, error)
}

// ActiveQuestionSource reports the open answering window for a game's room.
// Implemented by the realtime hub and injected here to avoid a package cycle.
type ActiveQuestionSource interface {
	ActiveQuestion(roomID string) (questionID string, endsAt time.Time, ok bool)
}

// Streak bonus caps: each consecutive correct answer adds 10%, up to +50%.
const (
	streakBonusStep = 0.1
	streakBonusCap  = 0.5
	// lateTolerance flags submissions whose reported time exceeds the allotted
	// window by more than 10%. They are still accepted, just not scored in time.
	lateTolerance = 1.1
)

// ScoreService is the authoritative answer-scoring pipeline. A submission for
// one player-game pair runs to completion before another is applied to the
// same pair; rank computed across different players may be momentarily stale.
type ScoreService struct {
	games   GameStore
	players PlayerDataStore
	windows ActiveQuestionSource
	clock   clockwork.Clock
	grace   time.Duration
}

func NewScoreService(games GameStore, players PlayerDataStore, windows ActiveQuestionSource, clock clockwork.Clock, grace time.Duration) *ScoreService {
	return &ScoreService{
		games:   games,
		players: players,
		windows: windows,
		clock:   clock,
		grace:   grace,
	}
}

// SubmitResult is returned to the transport layer for broadcast.
type SubmitResult struct {
	PlayerData   domain.GamePlayerData
	IsCorrect    bool
	PointsEarned int
	Streak       int
	Rank         int
	// Counts aggregates, per answer ID, how many players picked it for this
	// question across the whole game.
	Counts map[string]int
}

// SubmitAnswer validates, scores, and persists one answer, then aggregates
// the per-choice tally for the question. Resubmitting a question fails with
// domain.ErrAlreadyAnswered and mutates nothing.
func (s *ScoreService) SubmitAnswer(ctx context.Context, gameID, playerID string, sub domain.AnswerSubmission) (SubmitResult, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return SubmitResult{}, err
	}
	question, err := s.games.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if question.CorrectAnswerID == "" {
		return SubmitResult{}, domain.ErrCorrectAnswerNotFound
	}
	settings, err := s.games.GetPlaySettings(ctx, game.QuizID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load play settings: %w", err)
	}

	data, err := s.ensurePlayerData(ctx, gameID, playerID)
	if err != nil {
		return SubmitResult{}, err
	}

	if data.Report.HasAnswered(sub.QuestionID) {
		return SubmitResult{}, domain.ErrAlreadyAnswered
	}

	now := s.clock.Now()
	if s.windows != nil {
		if activeID, endsAt, ok := s.windows.ActiveQuestion(gameID); ok && activeID == sub.QuestionID {
			if now.After(endsAt.Add(s.grace)) {
				return SubmitResult{}, domain.ErrQuestionEnded
			}
		}
	}

	timeTaken := math.Max(0, sub.TimeTaken)
	isCorrect := sub.AnswerID != nil && *sub.AnswerID == question.CorrectAnswerID
	answeredInTime := timeTaken <= question.TimeAllowed
	if timeTaken > question.TimeAllowed*lateTolerance {
		log.Warn().
			Str("game_id", gameID).
			Str("player_id", playerID).
			Str("question_id", sub.QuestionID).
			Float64("time_taken", timeTaken).
			Float64("time_allowed", question.TimeAllowed).
			Msg("answer time exceeds tolerance, accepting without time credit")
	}

	streak := 0
	if isCorrect && answeredInTime {
		streak = data.Report.RunningStreak() + 1
	}
	points := computePoints(question, settings, timeTaken, streak, isCorrect && answeredInTime)

	applyAnswer(&data.Report, domain.AnswerRecord{
		QuestionID:   sub.QuestionID,
		AnswerID:     sub.AnswerID,
		IsCorrect:    isCorrect,
		TimeTaken:    timeTaken,
		PointsEarned: points,
		AnsweredAt:   now,
	}, streak)

	data.Score += points
	rank, err := s.rankAmongPeers(ctx, gameID, playerID, data.Score)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("compute rank: %w", err)
	}
	if data.Report.CurrentRank != 0 {
		data.Report.PreviousRank = data.Report.CurrentRank
	}
	data.Report.CurrentRank = rank
	data.Report.RankHistory = append(data.Report.RankHistory, domain.RankEvent{
		QuestionNumber: sub.QuestionNumber,
		Rank:           rank,
		Score:          data.Score,
		PointsEarned:   points,
		RecordedAt:     now,
	})

	if err := s.players.Update(ctx, data); err != nil {
		return SubmitResult{}, fmt.Errorf("persist player data: %w", err)
	}

	counts, err := s.answerCounts(ctx, gameID, sub.QuestionID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("aggregate answer counts: %w", err)
	}

	return SubmitResult{
		PlayerData:   data,
		IsCorrect:    isCorrect,
		PointsEarned: points,
		Streak:       streak,
		Rank:         rank,
		Counts:       counts,
	}, nil
}

// ensurePlayerData loads the player-game row, creating a zeroed one on the
// player's first answer. The player identity must resolve first.
func (s *ScoreService) ensurePlayerData(ctx context.Context, gameID, playerID string) (domain.GamePlayerData, error) {
	data, ok, err := s.players.Get(ctx, gameID, playerID)
	if err != nil {
		return domain.GamePlayerData{}, fmt.Errorf("load player data: %w", err)
	}
	if ok {
		return data, nil
	}
	if _, err := s.games.GetPlayer(ctx, playerID); err != nil {
		return domain.GamePlayerData{}, err
	}
	data = domain.GamePlayerData{PlayerID: playerID, GameID: gameID}
	if err := s.players.Create(ctx, data); err != nil {
		return domain.GamePlayerData{}, fmt.Errorf("create player data: %w", err)
	}
	return data, nil
}

// rankAmongPeers computes 1 + the number of other non-host players whose
// persisted score strictly exceeds the given one.
func (s *ScoreService) rankAmongPeers(ctx context.Context, gameID, playerID string, score int) (int, error) {
	peers, err := s.players.ListByGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	rank := 1
	for _, peer := range peers {
		if peer.Player.ID == playerID || peer.Player.Role == domain.RoleHost {
			continue
		}
		if peer.Data.Score > score {
			rank++
		}
	}
	return rank, nil
}

// answerCounts scans every player's report and tallies picks per answer ID
// for one question.
func (s *ScoreService) answerCounts(ctx context.Context, gameID, questionID string) (map[string]int, error) {
	peers, err := s.players.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, peer := range peers {
		for i := range peer.Data.Report.Answers {
			rec := &peer.Data.Report.Answers[i]
			if rec.QuestionID == questionID && rec.AnswerID != nil {
				counts[*rec.AnswerID]++
			}
		}
	}
	return counts, nil
}

// computePoints applies the time decay and streak multiplier. Only answers
// that are both correct and within the window score at all.
func computePoints(q domain.Question, settings domain.PlaySettings, timeTaken float64, streak int, scorable bool) int {
	if !scorable {
		return 0
	}
	adjusted := float64(q.BasePoints)
	if settings.TimeBonus && q.TimeAllowed > 0 {
		adjusted = math.Max(0, float64(q.BasePoints)-timeTaken*float64(q.BasePoints)/q.TimeAllowed)
	}
	multiplier := 1.0
	if settings.StreakBonus {
		multiplier = 1 + math.Min(streakBonusCap, float64(streak)*streakBonusStep)
	}
	return int(math.Round(math.Max(0, adjusted*multiplier)))
}

// applyAnswer appends the record and recomputes counters, streaks, and the
// timing summary over all recorded answers.
func applyAnswer(report *domain.AnswerReport, rec domain.AnswerRecord, streak int) {
	report.Answers = append(report.Answers, rec)
	report.TotalAnswers++
	if rec.IsCorrect {
		report.CorrectAnswers++
	} else {
		report.IncorrectAnswers++
	}

	report.Streak.Current = streak
	if streak > report.Streak.Max {
		report.Streak.Max = streak
	}

	var sum, fastest, slowest float64
	for i := range report.Answers {
		t := report.Answers[i].TimeTaken
		sum += t
		if i == 0 || t < fastest {
			fastest = t
		}
		if t > slowest {
			slowest = t
		}
	}
	report.Timing = domain.TimingSummary{
		Average: sum / float64(len(report.Answers)),
		Fastest: fastest,
		Slowest: slowest,
	}
}
