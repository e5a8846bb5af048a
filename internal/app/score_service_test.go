package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/app"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/infra/memory"
)

func newTestStore() *memory.Store {
	store := memory.NewStore()
	store.AddGame(domain.Game{ID: "game-1", QuizID: "quiz-1", HostID: "host-1", Status: "active"})
	store.AddPlayer(domain.Player{ID: "host-1", DeviceID: "dev-host", Nickname: "Host", Role: domain.RoleHost})
	store.AddPlayer(domain.Player{ID: "p1", DeviceID: "dev-1", Nickname: "Alice", Role: domain.RolePlayer})
	store.AddPlayer(domain.Player{ID: "p2", DeviceID: "dev-2", Nickname: "Bob", Role: domain.RolePlayer})
	store.AddQuestion(domain.Question{ID: "q1", QuizID: "quiz-1", BasePoints: 100, TimeAllowed: 20, CorrectAnswerID: "a2"})
	store.AddQuestion(domain.Question{ID: "q2", QuizID: "quiz-1", BasePoints: 100, TimeAllowed: 20, CorrectAnswerID: "a1"})
	store.AddQuestion(domain.Question{ID: "q3", QuizID: "quiz-1", BasePoints: 100, TimeAllowed: 20, CorrectAnswerID: "a2"})
	return store
}

func strPtr(s string) *string { return &s }

func TestTimeAndStreakBonusScoring(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.SetPlaySettings("quiz-1", domain.PlaySettings{TimeBonus: true, StreakBonus: true})
	clock := clockwork.NewFakeClock()
	service := app.NewScoreService(store, store, nil, clock, time.Second)

	// Build a streak of two before the answer under test.
	for i, sub := range []domain.AnswerSubmission{
		{QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 0},
		{QuestionID: "q2", QuestionNumber: 2, AnswerID: strPtr("a1"), TimeTaken: 0},
	} {
		if _, err := service.SubmitAnswer(ctx, "game-1", "p1", sub); err != nil {
			t.Fatalf("warm-up submit %d: %v", i+1, err)
		}
	}

	result, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID:     "q3",
		QuestionNumber: 3,
		AnswerID:       strPtr("a2"),
		TimeTaken:      10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// adjusted = 100 - 10*(100/20) = 50; multiplier = 1 + min(0.5, 3*0.1) = 1.3
	if result.PointsEarned != 65 {
		t.Fatalf("expected 65 points, got %d", result.PointsEarned)
	}
	if result.Streak != 3 {
		t.Fatalf("expected streak 3, got %d", result.Streak)
	}
	if result.PlayerData.Report.Streak.Max != 3 {
		t.Fatalf("expected max streak 3, got %d", result.PlayerData.Report.Streak.Max)
	}
}

func TestBasePointsWithoutBonuses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	result, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 15,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.PointsEarned != 100 {
		t.Fatalf("expected full base points, got %d", result.PointsEarned)
	}

	result, err = service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q2", QuestionNumber: 2, AnswerID: strPtr("a3"), TimeTaken: 5,
	})
	if err != nil {
		t.Fatalf("submit wrong answer: %v", err)
	}
	if result.IsCorrect || result.PointsEarned != 0 {
		t.Fatalf("expected zero points for wrong answer, got %+v", result)
	}
}

func TestCorrectButOverTimeScoresZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.SetPlaySettings("quiz-1", domain.PlaySettings{TimeBonus: true, StreakBonus: true})
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	result, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 25,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("expected the answer to count as correct")
	}
	if result.PointsEarned != 0 || result.Streak != 0 {
		t.Fatalf("expected no points or streak for an over-time answer, got %+v", result)
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	sub := domain.AnswerSubmission{QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 5}
	first, err := service.SubmitAnswer(ctx, "game-1", "p1", sub)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = service.SubmitAnswer(ctx, "game-1", "p1", sub)
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already-answered, got %v", err)
	}
	if domain.Reason(err) != "ALREADY_ANSWERED" {
		t.Fatalf("unexpected reason %q", domain.Reason(err))
	}

	data, ok, err := store.Get(ctx, "game-1", "p1")
	if err != nil || !ok {
		t.Fatalf("load player data: ok=%v err=%v", ok, err)
	}
	if data.Score != first.PlayerData.Score {
		t.Fatalf("score changed on rejected duplicate: %d vs %d", data.Score, first.PlayerData.Score)
	}
}

func TestReportInvariants(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.SetPlaySettings("quiz-1", domain.PlaySettings{TimeBonus: true})
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	subs := []domain.AnswerSubmission{
		{QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 4},
		{QuestionID: "q2", QuestionNumber: 2, AnswerID: strPtr("a9"), TimeTaken: 12},
		{QuestionID: "q3", QuestionNumber: 3, AnswerID: nil, TimeTaken: 20},
	}
	var last app.SubmitResult
	for _, sub := range subs {
		result, err := service.SubmitAnswer(ctx, "game-1", "p2", sub)
		if err != nil {
			t.Fatalf("submit %s: %v", sub.QuestionID, err)
		}
		report := result.PlayerData.Report
		if report.TotalAnswers != report.CorrectAnswers+report.IncorrectAnswers {
			t.Fatalf("counter invariant broken: %+v", report)
		}
		sum := 0
		for _, rec := range report.Answers {
			sum += rec.PointsEarned
		}
		if result.PlayerData.Score != sum {
			t.Fatalf("score %d does not equal recorded points %d", result.PlayerData.Score, sum)
		}
		last = result
	}
	report := last.PlayerData.Report
	if report.TotalAnswers != 3 || report.CorrectAnswers != 1 || report.IncorrectAnswers != 2 {
		t.Fatalf("unexpected counters: %+v", report)
	}
	if report.Timing.Fastest != 4 || report.Timing.Slowest != 20 || report.Timing.Average != 12 {
		t.Fatalf("unexpected timing summary: %+v", report.Timing)
	}
}

type stubWindow struct {
	questionID string
	endsAt     time.Time
	open       bool
}

func (s stubWindow) ActiveQuestion(string) (string, time.Time, bool) {
	return s.questionID, s.endsAt, s.open
}

func TestLateSubmissionLockedAfterGrace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	clock := clockwork.NewFakeClock()

	window := stubWindow{questionID: "q1", endsAt: clock.Now().Add(-1500 * time.Millisecond), open: true}
	service := app.NewScoreService(store, store, window, clock, time.Second)

	_, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 20,
	})
	if !errors.Is(err, domain.ErrQuestionEnded) {
		t.Fatalf("expected question-ended, got %v", err)
	}

	// Within the grace period the submission still lands.
	window.endsAt = clock.Now().Add(-500 * time.Millisecond)
	service = app.NewScoreService(store, store, window, clock, time.Second)
	if _, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 20,
	}); err != nil {
		t.Fatalf("expected in-grace submission to succeed, got %v", err)
	}
}

func TestRankProgression(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	winner, err := service.SubmitAnswer(ctx, "game-1", "p2", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 3,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if winner.Rank != 1 {
		t.Fatalf("expected rank 1, got %d", winner.Rank)
	}
	if winner.PlayerData.Report.PreviousRank != 0 {
		t.Fatalf("first answer must not carry a previous rank, got %d", winner.PlayerData.Report.PreviousRank)
	}

	loser, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a1"), TimeTaken: 3,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if loser.Rank != 2 {
		t.Fatalf("expected rank 2 behind the scorer, got %d", loser.Rank)
	}
	history := loser.PlayerData.Report.RankHistory
	if len(history) != 1 || history[0].Rank != 2 || history[0].QuestionNumber != 1 {
		t.Fatalf("unexpected rank history: %+v", history)
	}
}

func TestAnswerCountsAcrossPlayers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	if _, err := service.SubmitAnswer(ctx, "game-1", "p1", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 2,
	}); err != nil {
		t.Fatalf("submit p1: %v", err)
	}
	result, err := service.SubmitAnswer(ctx, "game-1", "p2", domain.AnswerSubmission{
		QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a1"), TimeTaken: 2,
	})
	if err != nil {
		t.Fatalf("submit p2: %v", err)
	}
	if result.Counts["a2"] != 1 || result.Counts["a1"] != 1 {
		t.Fatalf("unexpected tally: %+v", result.Counts)
	}
}

func TestMissingEntities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	service := app.NewScoreService(store, store, nil, clockwork.NewFakeClock(), time.Second)

	sub := domain.AnswerSubmission{QuestionID: "q1", QuestionNumber: 1, AnswerID: strPtr("a2"), TimeTaken: 2}

	if _, err := service.SubmitAnswer(ctx, "nope", "p1", sub); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game-not-found, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "game-1", "ghost", sub); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player-not-found, got %v", err)
	}
	missing := sub
	missing.QuestionID = "q99"
	if _, err := service.SubmitAnswer(ctx, "game-1", "p1", missing); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question-not-found, got %v", err)
	}

	store.AddQuestion(domain.Question{ID: "broken", QuizID: "quiz-1", BasePoints: 50, TimeAllowed: 10})
	broken := sub
	broken.QuestionID = "broken"
	if _, err := service.SubmitAnswer(ctx, "game-1", "p1", broken); !errors.Is(err, domain.ErrCorrectAnswerNotFound) {
		t.Fatalf("expected correct-answer-not-found, got %v", err)
	}
}
