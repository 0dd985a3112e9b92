package postgres

import (
	"context"
	"fmt"
)

// InitSchema creates the auction tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS buyers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		base_price BIGINT NOT NULL CHECK (base_price >= 0),
		batting_rating INT NOT NULL DEFAULT 0,
		bowling_rating INT NOT NULL DEFAULT 0,
		team_id UUID REFERENCES buyers(id),
		sold BOOLEAN NOT NULL DEFAULT FALSE,
		bidding_open BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS buyer_players (
		buyer_id UUID NOT NULL REFERENCES buyers(id) ON DELETE CASCADE,
		player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		acquired_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (buyer_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_players_team_id ON players(team_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
