package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/app"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/infra/memory"
)

func seedScores(t *testing.T, store *memory.Store, gameID string, scores map[string]int, order []string) {
	t.Helper()
	ctx := context.Background()
	for _, playerID := range order {
		data := domain.GamePlayerData{PlayerID: playerID, GameID: gameID, Score: scores[playerID]}
		if err := store.Create(ctx, data); err != nil {
			t.Fatalf("create row for %s: %v", playerID, err)
		}
	}
}

func TestLeaderboardSequentialRanksForTies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	boards := app.NewAggregator(store, clockwork.NewFakeClock())

	seedScores(t, store, "game-1", map[string]int{"p1": 300, "p2": 300, "host-1": 0}, []string{"p1", "p2", "host-1"})
	store.AddPlayer(domain.Player{ID: "p3", DeviceID: "dev-3", Nickname: "Cara", Role: domain.RolePlayer})
	if err := store.Create(ctx, domain.GamePlayerData{PlayerID: "p3", GameID: "game-1", Score: 100}); err != nil {
		t.Fatalf("create p3: %v", err)
	}

	lb, err := boards.Leaderboard(ctx, "game-1", 0, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 3 {
		t.Fatalf("expected host excluded, got %d entries", len(lb.Entries))
	}
	// Tied scores keep query order with distinct sequential ranks.
	for i, want := range []struct {
		id   string
		rank int
	}{{"p1", 1}, {"p2", 2}, {"p3", 3}} {
		if lb.Entries[i].PlayerID != want.id || lb.Entries[i].Rank != want.rank {
			t.Fatalf("entry %d: expected %s at rank %d, got %+v", i, want.id, want.rank, lb.Entries[i])
		}
	}
}

func TestLeaderboardPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	boards := app.NewAggregator(store, clockwork.NewFakeClock())
	seedScores(t, store, "game-1", map[string]int{"p1": 50, "p2": 90}, []string{"p1", "p2"})

	lb, err := boards.Leaderboard(ctx, "game-1", 1, 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].PlayerID != "p1" || lb.Entries[0].Rank != 2 {
		t.Fatalf("expected p1 alone at rank 2, got %+v", lb.Entries)
	}
}

func TestLeaderboardRankAndScoreChange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	boards := app.NewAggregator(store, clockwork.NewFakeClock())

	climber := domain.GamePlayerData{PlayerID: "p1", GameID: "game-1", Score: 120}
	climber.Report.CurrentRank = 1
	climber.Report.PreviousRank = 2
	climber.Report.RankHistory = []domain.RankEvent{{QuestionNumber: 2, Rank: 1, Score: 120, PointsEarned: 70}}
	if err := store.Create(ctx, climber); err != nil {
		t.Fatalf("create climber: %v", err)
	}
	newcomer := domain.GamePlayerData{PlayerID: "p2", GameID: "game-1", Score: 40}
	if err := store.Create(ctx, newcomer); err != nil {
		t.Fatalf("create newcomer: %v", err)
	}

	lb, err := boards.Leaderboard(ctx, "game-1", 0, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Entries[0].RankChange != domain.RankUp || lb.Entries[0].ScoreChange != 70 {
		t.Fatalf("expected climber marked up with +70, got %+v", lb.Entries[0])
	}
	if lb.Entries[1].RankChange != "" {
		t.Fatalf("first appearance must not report a rank change, got %+v", lb.Entries[1])
	}
}

func TestPlayerStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	boards := app.NewAggregator(store, clockwork.NewFakeClock())

	data := domain.GamePlayerData{PlayerID: "p1", GameID: "game-1", Score: 65}
	data.Report.TotalAnswers = 2
	data.Report.CorrectAnswers = 1
	data.Report.IncorrectAnswers = 1
	data.Report.Streak = domain.StreakSummary{Current: 1, Max: 1}
	if err := store.Create(ctx, data); err != nil {
		t.Fatalf("create: %v", err)
	}

	stats, err := boards.PlayerStats(ctx, "game-1", "p1")
	if err != nil {
		t.Fatalf("player stats: %v", err)
	}
	if stats.Score != 65 || stats.TotalAnswers != 2 || stats.Streak.Max != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, err := boards.PlayerStats(ctx, "game-1", "ghost"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player-not-found, got %v", err)
	}
}
