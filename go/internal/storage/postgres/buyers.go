package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkalra/gavel/go/internal/models"
	"github.com/mkalra/gavel/go/internal/storage"
)

// UpsertBuyer registers a buyer or, when the id already exists, renames
// it and adds the given balance as a deposit. The player list is owned
// by settlement and never touched here.
func (s *Store) UpsertBuyer(ctx context.Context, buyer models.Buyer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buyers (id, name, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    balance = buyers.balance + EXCLUDED.balance`,
		buyer.ID, buyer.Name, buyer.Balance,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert buyer: %w", err)
	}
	return nil
}

func (s *Store) GetBuyer(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	var b models.Buyer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, balance, created_at FROM buyers WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Balance, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrBuyerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get buyer: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id FROM buyer_players
		WHERE buyer_id = $1
		ORDER BY acquired_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyer players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var playerID uuid.UUID
		if err := rows.Scan(&playerID); err != nil {
			return nil, fmt.Errorf("failed to scan buyer player: %w", err)
		}
		b.TeamList = append(b.TeamList, playerID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}
