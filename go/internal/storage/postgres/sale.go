package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkalra/gavel/go/internal/auction/settlement"
	"github.com/mkalra/gavel/go/internal/sqlutil"
	"github.com/mkalra/gavel/go/internal/storage"
)

// ApplySale transfers one player to one buyer as a single transaction:
// debit the balance, record team membership and mark the player sold.
// Applying the same sale twice is a no-op; selling an already-owned
// player to a different buyer is an error. The balance check uses the
// row locked inside this transaction, not whatever the caller last saw.
func (s *Store) ApplySale(ctx context.Context, sale settlement.Sale) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		var sold bool
		var teamID uuid.NullUUID
		err := tx.QueryRowContext(ctx,
			`SELECT sold, team_id FROM players WHERE id = $1 FOR UPDATE`, sale.PlayerID).
			Scan(&sold, &teamID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrPlayerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock player: %w", err)
		}
		if sold {
			if teamID.Valid && teamID.UUID == sale.BuyerID {
				return nil // already applied
			}
			return fmt.Errorf("player %s already sold to another buyer", sale.PlayerID)
		}

		var balance int64
		err = tx.QueryRowContext(ctx,
			`SELECT balance FROM buyers WHERE id = $1 FOR UPDATE`, sale.BuyerID).
			Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrBuyerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock buyer: %w", err)
		}
		if balance < sale.Amount {
			return settlement.ErrInsufficientBalance
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE buyers SET balance = balance - $2 WHERE id = $1`,
			sale.BuyerID, sale.Amount); err != nil {
			return fmt.Errorf("failed to debit buyer: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO buyer_players (buyer_id, player_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			sale.BuyerID, sale.PlayerID); err != nil {
			return fmt.Errorf("failed to record team membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE players
			SET sold = TRUE, bidding_open = FALSE, team_id = $2
			WHERE id = $1`,
			sale.PlayerID, sale.BuyerID); err != nil {
			return fmt.Errorf("failed to mark player sold: %w", err)
		}
		return nil
	})
}
