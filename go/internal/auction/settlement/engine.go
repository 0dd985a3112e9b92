package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/models"
)

// ErrInsufficientBalance is the definitive settlement rejection: the winning
// buyer can no longer cover the amount. It is never retried.
var ErrInsufficientBalance = errors.New("buyer balance below winning amount at settlement")

// Sale is the set of mutations applied when a winning bid settles.
type Sale struct {
	PlayerID uuid.UUID
	BuyerID  uuid.UUID
	Amount   int64
}

// Store applies a Sale as one atomic unit: the balance re-check, the
// balance decrement, the team membership append and the sold/bidding flags
// all land together or not at all. ApplySale returns ErrInsufficientBalance
// when the re-check fails; any other error is treated as transient.
type Store interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ApplySale(ctx context.Context, sale Sale) error
}

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// Engine applies the consequences of a winning bid. Settle is idempotent
// per player: once sold, repeat calls are no-ops.
type Engine struct {
	store Store
	cfg   Config
	clk   clockwork.Clock
}

func NewEngine(store Store, cfg Config, clk clockwork.Clock) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Engine{store: store, cfg: cfg, clk: clk}
}

// Settle applies the sale for the winning bid, retrying transient store
// failures with linear backoff. A definitive ErrInsufficientBalance is
// surfaced immediately.
func (e *Engine) Settle(ctx context.Context, winning models.Bid) error {
	player, err := e.store.GetPlayer(ctx, winning.PlayerID)
	if err != nil {
		return fmt.Errorf("failed to load player for settlement: %w", err)
	}
	if player.Sold {
		log.Info().
			Str("player_id", winning.PlayerID.String()).
			Msg("player already sold, settlement is a no-op")
		return nil
	}

	sale := Sale{
		PlayerID: winning.PlayerID,
		BuyerID:  winning.BuyerID,
		Amount:   winning.Amount,
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.clk.After(e.cfg.RetryDelay * time.Duration(attempt-1)):
			}
		}

		err := e.store.ApplySale(ctx, sale)
		if err == nil {
			log.Info().
				Str("player_id", sale.PlayerID.String()).
				Str("buyer_id", sale.BuyerID.String()).
				Int64("amount", sale.Amount).
				Msg("sale settled")
			return nil
		}
		if errors.Is(err, ErrInsufficientBalance) {
			return err
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("player_id", sale.PlayerID.String()).
			Int("attempt", attempt).
			Msg("settlement attempt failed, retrying")
	}

	return fmt.Errorf("settlement failed after %d attempts: %w", e.cfg.MaxAttempts, lastErr)
}
