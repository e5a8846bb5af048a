package memory

import (
	"context"
	"sync"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

// Store is an in-memory implementation of app.GameStore and
// app.PlayerDataStore, used for tests and redis/postgres-less runs.
type Store struct {
	mu        sync.RWMutex
	games     map[string]domain.Game
	players   map[string]domain.Player
	questions map[string]domain.Question
	settings  map[string]domain.PlaySettings
	data      map[string]map[string]domain.GamePlayerData // game ID -> player ID -> row
	order     map[string][]string                         // game ID -> insertion order
}

func NewStore() *Store {
	return &Store{
		games:     make(map[string]domain.Game),
		players:   make(map[string]domain.Player),
		questions: make(map[string]domain.Question),
		settings:  make(map[string]domain.PlaySettings),
		data:      make(map[string]map[string]domain.GamePlayerData),
		order:     make(map[string][]string),
	}
}

// Seed helpers for demos and tests.

func (s *Store) AddGame(game domain.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *Store) AddPlayer(player domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
}

func (s *Store) AddQuestion(q domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *Store) SetPlaySettings(quizID string, settings domain.PlaySettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[quizID] = settings
}

// app.GameStore

func (s *Store) GetGame(_ context.Context, gameID string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if game, ok := s.games[gameID]; ok {
		return game, nil
	}
	return domain.Game{}, domain.ErrGameNotFound
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (s *Store) GetPlaySettings(_ context.Context, quizID string) (domain.PlaySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Missing settings mean both bonuses stay off.
	return s.settings[quizID], nil
}

func (s *Store) GetPlayer(_ context.Context, playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.players[playerID]; ok {
		return p, nil
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

// app.PlayerDataStore

func (s *Store) Get(_ context.Context, gameID, playerID string) (domain.GamePlayerData, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rows, ok := s.data[gameID]; ok {
		if row, ok := rows[playerID]; ok {
			return row, true, nil
		}
	}
	return domain.GamePlayerData{}, false, nil
}

func (s *Store) Create(_ context.Context, data domain.GamePlayerData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.data[data.GameID]
	if !ok {
		rows = make(map[string]domain.GamePlayerData)
		s.data[data.GameID] = rows
	}
	if _, exists := rows[data.PlayerID]; !exists {
		s.order[data.GameID] = append(s.order[data.GameID], data.PlayerID)
	}
	rows[data.PlayerID] = data
	return nil
}

func (s *Store) Update(_ context.Context, data domain.GamePlayerData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.data[data.GameID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if _, exists := rows[data.PlayerID]; !exists {
		return domain.ErrPlayerNotFound
	}
	rows[data.PlayerID] = data
	return nil
}

func (s *Store) ListByGame(_ context.Context, gameID string) ([]domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.data[gameID]
	out := make([]domain.GamePlayer, 0, len(rows))
	for _, playerID := range s.order[gameID] {
		row, ok := rows[playerID]
		if !ok {
			continue
		}
		out = append(out, domain.GamePlayer{
			Player: s.players[playerID],
			Data:   row,
		})
	}
	return out, nil
}
