package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const createCoreTablesSQL = `
CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	nickname TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'player'
);
CREATE INDEX IF NOT EXISTS idx_players_device ON players (device_id);

CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	quiz_id TEXT NOT NULL,
	host_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'waiting'
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	quiz_id TEXT NOT NULL,
	base_points INTEGER NOT NULL DEFAULT 100,
	time_allowed DOUBLE PRECISION NOT NULL DEFAULT 20,
	correct_answer_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS quiz_settings (
	quiz_id TEXT PRIMARY KEY,
	time_bonus BOOLEAN NOT NULL DEFAULT FALSE,
	streak_bonus BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS game_players (
	game_id TEXT NOT NULL REFERENCES games (id) ON DELETE CASCADE,
	player_id TEXT NOT NULL REFERENCES players (id) ON DELETE CASCADE,
	score INTEGER NOT NULL DEFAULT 0,
	report JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (game_id, player_id)
);
`

const dropCoreTablesSQL = `
DROP TABLE IF EXISTS game_players;
DROP TABLE IF EXISTS quiz_settings;
DROP TABLE IF EXISTS questions;
DROP TABLE IF EXISTS games;
DROP TABLE IF EXISTS players;
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createCoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropCoreTablesSQL)
			return err
		},
	)
}
