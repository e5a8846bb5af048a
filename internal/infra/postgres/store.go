package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

// Store is the durable implementation of app.GameStore and
// app.PlayerDataStore. Answer reports live as JSONB next to the score so one
// UPDATE persists both atomically.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	game := domain.Game{ID: gameID}
	err := s.pool.QueryRow(ctx,
		`SELECT quiz_id, host_id, status FROM games WHERE id=$1`, gameID,
	).Scan(&game.QuizID, &game.HostID, &game.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game: %w", err)
	}
	return game, nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	q := domain.Question{ID: questionID}
	err := s.pool.QueryRow(ctx,
		`SELECT quiz_id, base_points, time_allowed, correct_answer_id FROM questions WHERE id=$1`, questionID,
	).Scan(&q.QuizID, &q.BasePoints, &q.TimeAllowed, &q.CorrectAnswerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *Store) GetPlaySettings(ctx context.Context, quizID string) (domain.PlaySettings, error) {
	var settings domain.PlaySettings
	err := s.pool.QueryRow(ctx,
		`SELECT time_bonus, streak_bonus FROM quiz_settings WHERE quiz_id=$1`, quizID,
	).Scan(&settings.TimeBonus, &settings.StreakBonus)
	if errors.Is(err, pgx.ErrNoRows) {
		// No settings row means both bonuses stay off.
		return domain.PlaySettings{}, nil
	}
	if err != nil {
		return domain.PlaySettings{}, fmt.Errorf("load play settings: %w", err)
	}
	return settings, nil
}

func (s *Store) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	p := domain.Player{ID: playerID}
	err := s.pool.QueryRow(ctx,
		`SELECT device_id, nickname, role FROM players WHERE id=$1`, playerID,
	).Scan(&p.DeviceID, &p.Nickname, &p.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, gameID, playerID string) (domain.GamePlayerData, bool, error) {
	data := domain.GamePlayerData{GameID: gameID, PlayerID: playerID}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT score, report FROM game_players WHERE game_id=$1 AND player_id=$2`, gameID, playerID,
	).Scan(&data.Score, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GamePlayerData{}, false, nil
	}
	if err != nil {
		return domain.GamePlayerData{}, false, fmt.Errorf("load player data: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data.Report); err != nil {
			return domain.GamePlayerData{}, false, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	return data, true, nil
}

func (s *Store) Create(ctx context.Context, data domain.GamePlayerData) error {
	raw, err := json.Marshal(data.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_players (game_id, player_id, score, report)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (game_id, player_id) DO NOTHING`,
		data.GameID, data.PlayerID, data.Score, raw,
	)
	if err != nil {
		return fmt.Errorf("insert player data: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, data domain.GamePlayerData) error {
	raw, err := json.Marshal(data.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE game_players SET score=$3, report=$4 WHERE game_id=$1 AND player_id=$2`,
		data.GameID, data.PlayerID, data.Score, raw,
	)
	if err != nil {
		return fmt.Errorf("update player data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) ListByGame(ctx context.Context, gameID string) ([]domain.GamePlayer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT gp.player_id, gp.score, gp.report, p.device_id, p.nickname, p.role
		 FROM game_players gp
		 JOIN players p ON p.id = gp.player_id
		 WHERE gp.game_id = $1
		 ORDER BY gp.created_at, gp.player_id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list game players: %w", err)
	}
	defer rows.Close()

	var out []domain.GamePlayer
	for rows.Next() {
		gp := domain.GamePlayer{Data: domain.GamePlayerData{GameID: gameID}}
		var raw []byte
		if err := rows.Scan(
			&gp.Data.PlayerID, &gp.Data.Score, &raw,
			&gp.Player.DeviceID, &gp.Player.Nickname, &gp.Player.Role,
		); err != nil {
			return nil, fmt.Errorf("scan game player: %w", err)
		}
		gp.Player.ID = gp.Data.PlayerID
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &gp.Data.Report); err != nil {
				return nil, fmt.Errorf("unmarshal report: %w", err)
			}
		}
		out = append(out, gp)
	}
	return out, rows.Err()
}
