package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkalra/gavel/go/internal/models"
	"github.com/mkalra/gavel/go/internal/sqlutil"
	"github.com/mkalra/gavel/go/internal/storage"
)

const playerColumns = `id, name, image_url, base_price, batting_rating, bowling_rating, team_id, sold, bidding_open, created_at`

func (s *Store) CreatePlayer(ctx context.Context, player models.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, name, image_url, base_price, batting_rating, bowling_rating, team_id, sold, bidding_open)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		player.ID, player.Name, player.ImageURL, player.BasePrice,
		player.BattingRating, player.BowlingRating,
		sqlutil.ToNullUUID(player.TeamID), player.Sold, player.BiddingOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

func (s *Store) ListPlayersByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE team_id = $1 ORDER BY created_at, name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players by team: %w", err)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

func (s *Store) SetBiddingOpen(ctx context.Context, id uuid.UUID, open bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET bidding_open = $2 WHERE id = $1`, id, open)
	if err != nil {
		return fmt.Errorf("failed to set bidding flag: %w", err)
	}
	return requireOneRow(res, storage.ErrPlayerNotFound)
}

func (s *Store) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET image_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("failed to set image url: %w", err)
	}
	return requireOneRow(res, storage.ErrPlayerNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	var teamID uuid.NullUUID
	if err := row.Scan(
		&p.ID, &p.Name, &p.ImageURL, &p.BasePrice,
		&p.BattingRating, &p.BowlingRating,
		&teamID, &p.Sold, &p.BiddingOpen, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.TeamID = sqlutil.FromNullUUID(teamID)
	return &p, nil
}

func collectPlayers(rows *sql.Rows) ([]models.Player, error) {
	var out []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
