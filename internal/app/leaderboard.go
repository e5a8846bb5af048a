package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

// Aggregator builds ranked leaderboards and per-player stat views from the
// durable player rows. It never mutates; the scoring pipeline owns writes.
type Aggregator struct {
	players PlayerDataStore
	clock   clockwork.Clock
}

func NewAggregator(players PlayerDataStore, clock clockwork.Clock) *Aggregator {
	return &Aggregator{players: players, clock: clock}
}

// Leaderboard ranks all non-host players by score descending and paginates.
// Ties keep query order and receive distinct sequential ranks.
func (a *Aggregator) Leaderboard(ctx context.Context, gameID string, limit, offset int) (domain.Leaderboard, error) {
	peers, err := a.players.ListByGame(ctx, gameID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list game players: %w", err)
	}

	ranked := make([]domain.GamePlayer, 0, len(peers))
	for _, peer := range peers {
		if peer.Player.Role == domain.RoleHost {
			continue
		}
		ranked = append(ranked, peer)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Data.Score > ranked[j].Data.Score
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(ranked) {
		offset = len(ranked)
	}
	end := len(ranked)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	entries := make([]domain.LeaderboardEntry, 0, end-offset)
	for i, peer := range ranked[offset:end] {
		rank := offset + i + 1
		entry := domain.LeaderboardEntry{
			PlayerID: peer.Player.ID,
			Nickname: peer.Player.Nickname,
			Score:    peer.Data.Score,
			Rank:     rank,
		}
		if prev := peer.Data.Report.PreviousRank; prev != 0 {
			switch {
			case rank < prev:
				entry.RankChange = domain.RankUp
			case rank > prev:
				entry.RankChange = domain.RankDown
			default:
				entry.RankChange = domain.RankSame
			}
		}
		if history := peer.Data.Report.RankHistory; len(history) > 0 {
			entry.ScoreChange = history[len(history)-1].PointsEarned
		}
		entries = append(entries, entry)
	}

	return domain.Leaderboard{
		GameID:    gameID,
		Entries:   entries,
		UpdatedAt: a.clock.Now(),
	}, nil
}

// PlayerStats returns the report summary for one player in one game.
func (a *Aggregator) PlayerStats(ctx context.Context, gameID, playerID string) (domain.PlayerStats, error) {
	data, ok, err := a.players.Get(ctx, gameID, playerID)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("load player data: %w", err)
	}
	if !ok {
		return domain.PlayerStats{}, domain.ErrPlayerNotFound
	}
	return domain.PlayerStats{
		PlayerID:         data.PlayerID,
		GameID:           data.GameID,
		Score:            data.Score,
		TotalAnswers:     data.Report.TotalAnswers,
		CorrectAnswers:   data.Report.CorrectAnswers,
		IncorrectAnswers: data.Report.IncorrectAnswers,
		Streak:           data.Report.Streak,
		Timing:           data.Report.Timing,
		CurrentRank:      data.Report.CurrentRank,
		PreviousRank:     data.Report.PreviousRank,
		RankHistory:      data.Report.RankHistory,
	}, nil
}

// AnswerCounts tallies picks per answer ID for one question across the game.
func (a *Aggregator) AnswerCounts(ctx context.Context, gameID, questionID string) (map[string]int, error) {
	peers, err := a.players.ListByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list game players: %w", err)
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
