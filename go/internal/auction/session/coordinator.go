package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/auction/clock"
	"github.com/mkalra/gavel/go/internal/auction/events"
	"github.com/mkalra/gavel/go/internal/auction/fanout"
	"github.com/mkalra/gavel/go/internal/auction/ledger"
	"github.com/mkalra/gavel/go/internal/auction/settlement"
	"github.com/mkalra/gavel/go/internal/models"
)

// State of the live session.
type State string

const (
	StateIdle    State = "IDLE"
	StateOpen    State = "OPEN"
	StateClosing State = "CLOSING"
	StateSettled State = "SETTLED"
)

// PlayerStore is what the coordinator needs from player storage.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	SetBiddingOpen(ctx context.Context, id uuid.UUID, open bool) error
}

// BuyerStore is what the coordinator needs from buyer storage. GetBuyer is
// consulted live at every submission; balances are never cached.
type BuyerStore interface {
	GetBuyer(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
}

// Settler applies the consequences of a winning bid.
type Settler interface {
	Settle(ctx context.Context, winning models.Bid) error
}

type Config struct {
	// SettleTimeout bounds the store I/O of one settlement run, retries
	// included.
	SettleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{SettleTimeout: 30 * time.Second}
}

// Coordinator owns the lifecycle of bidding on one player at a time. All
// mutations to the ledger, the deadline and the state are serialized
// through it: bid submissions behave as a critical section, so the
// strictly-greater check and the append are atomic together and races on
// equal amounts resolve by arrival order. At most one player has bidding
// open at any instant.
type Coordinator struct {
	players PlayerStore
	buyers  BuyerStore
	settler Settler
	broker  *fanout.Broker
	clk     clockwork.Clock
	cfg     Config

	mu        sync.Mutex
	state     State
	player    *models.Player
	ledger    *ledger.Ledger
	countdown *clock.Countdown
	window    time.Duration
	settleErr error
}

func New(players PlayerStore, buyers BuyerStore, settler Settler, broker *fanout.Broker, clk clockwork.Clock, cfg Config) *Coordinator {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultConfig().SettleTimeout
	}
	c := &Coordinator{
		players: players,
		buyers:  buyers,
		settler: settler,
		broker:  broker,
		clk:     clk,
		cfg:     cfg,
		state:   StateIdle,
	}
	c.countdown = clock.New(clk, c.handleExpiry)
	return c
}

// Snapshot is the externally visible session state, served to clients on
// page load and websocket reconnect.
type Snapshot struct {
	State         State          `json:"state"`
	Player        *models.Player `json:"player,omitempty"`
	Bids          []models.Bid   `json:"bids,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	SettlementErr string         `json:"settlement_error,omitempty"`
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	if c.player != nil {
		p := *c.player
		snap.Player = &p
	}
	if c.ledger != nil {
		snap.Bids = c.ledger.Bids()
	}
	if d := c.countdown.Deadline(); !d.IsZero() {
		snap.Deadline = &d
	}
	if c.settleErr != nil {
		snap.SettlementErr = c.settleErr.Error()
	}
	return snap
}

// Open starts a bidding session for a player. Fails with ErrSessionBusy
// unless the session is IDLE or SETTLED and with ErrItemUnavailable when
// the player is already sold.
func (c *Coordinator) Open(ctx context.Context, playerID uuid.UUID, window time.Duration) (Snapshot, error) {
	if window <= 0 {
		return Snapshot{}, clock.ErrInvalidDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateSettled {
		return Snapshot{}, ErrSessionBusy
	}

	player, err := c.players.GetPlayer(ctx, playerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load player: %w", err)
	}
	if player.Sold {
		return Snapshot{}, ErrItemUnavailable
	}

	if err := c.players.SetBiddingOpen(ctx, playerID, true); err != nil {
		return Snapshot{}, fmt.Errorf("failed to open bidding: %w", err)
	}
	player.BiddingOpen = true

	c.player = player
	c.ledger = ledger.New(player.ID, player.BasePrice)
	c.window = window
	c.settleErr = nil
	if err := c.countdown.Start(window); err != nil {
		return Snapshot{}, err
	}
	c.state = StateOpen

	now := c.clk.Now()
	c.publish(events.TypeAuctionOpened, player.ID, events.AuctionOpenedPayload{
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		BasePrice:    player.BasePrice,
		OpenedAt:     now,
		ClosesAt:     c.countdown.Deadline(),
		BidWindowSec: int(window / time.Second),
	})

	log.Info().
		Str("player_id", player.ID.String()).
		Str("player_name", player.Name).
		Int64("base_price", player.BasePrice).
		Dur("bid_window", window).
		Msg("auction opened")

	return c.snapshotLocked(), nil
}

// PlaceBid validates and records a bid for the open player. Acceptance
// appends to the ledger, resets the countdown and publishes the new bid.
// The buyer's balance is read from storage at submission time.
func (c *Coordinator) PlaceBid(ctx context.Context, buyerID uuid.UUID, amount int64) (models.Bid, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateOpen:
	case StateClosing, StateSettled:
		return models.Bid{}, ErrAuctionClosed
	default:
		return models.Bid{}, ErrNoActiveAuction
	}

	if err := c.ledger.WouldAccept(amount); err != nil {
		return models.Bid{}, err
	}

	buyer, err := c.buyers.GetBuyer(ctx, buyerID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("failed to load buyer: %w", err)
	}
	if buyer.Balance < amount {
		return models.Bid{}, ErrInsufficientBalance
	}

	// Reset before appending: if the countdown already fired, the close is
	// in flight and this bid arrived too late.
	if err := c.countdown.Reset(c.window); err != nil {
		return models.Bid{}, ErrAuctionClosed
	}

	bid, err := c.ledger.Append(buyerID, amount, c.clk.Now())
	if err != nil {
		return models.Bid{}, err
	}

	closesAt := c.countdown.Deadline()
	c.publish(events.TypeBidAccepted, bid.PlayerID, events.BidAcceptedPayload{
		BuyerID:   buyer.ID,
		BuyerName: buyer.Name,
		Amount:    bid.Amount,
		Seq:       bid.Seq,
		PlacedAt:  bid.PlacedAt,
		ClosesAt:  closesAt,
	})
	c.publish(events.TypeTimerReset, bid.PlayerID, events.TimerResetPayload{
		Seq:          bid.Seq,
		ResetAt:      bid.PlacedAt,
		ClosesAt:     closesAt,
		BidWindowSec: int(c.window / time.Second),
	})

	log.Info().
		Str("player_id", bid.PlayerID.String()).
		Str("buyer_id", buyer.ID.String()).
		Int64("amount", bid.Amount).
		Uint64("seq", bid.Seq).
		Msg("bid accepted")

	return bid, nil
}

// Withdraw cancels the live auction without a sale and returns the session
// to idle. Allowed while OPEN, or while CLOSING after a failed settlement;
// a settlement in flight cannot be withdrawn.
func (c *Coordinator) Withdraw(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateOpen:
		c.countdown.Cancel()
	case StateClosing:
		if c.settleErr == nil {
			return ErrNotWithdrawable
		}
	default:
		return ErrNoActiveAuction
	}

	player := c.player
	if err := c.players.SetBiddingOpen(ctx, player.ID, false); err != nil {
		log.Error().Err(err).Str("player_id", player.ID.String()).Msg("failed to clear bidding flag on withdraw")
	}

	c.state = StateIdle
	c.settleErr = nil
	c.publish(events.TypeAuctionCancelled, player.ID, events.AuctionCancelledPayload{
		PlayerID:    player.ID,
		Reason:      "withdrawn by operator",
		CancelledAt: c.clk.Now(),
	})

	log.Info().Str("player_id", player.ID.String()).Msg("auction withdrawn")
	return nil
}

// RetrySettlement re-runs settlement after a SettlementFailed condition.
// Operator-gated at the transport layer.
func (c *Coordinator) RetrySettlement(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosing || c.settleErr == nil {
		c.mu.Unlock()
		return ErrNothingToSettle
	}
	winning, ok := c.ledger.Highest()
	c.settleErr = nil
	c.mu.Unlock()
	if !ok {
		return ErrNothingToSettle
	}

	log.Info().
		Str("player_id", winning.PlayerID.String()).
		Msg("operator retrying settlement")
	return c.runSettlement(ctx, winning)
}

// handleExpiry runs on the countdown goroutine when the deadline passes.
func (c *Coordinator) handleExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SettleTimeout)
	defer cancel()

	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	player := c.player

	if c.ledger.Len() == 0 {
		c.state = StateIdle
		c.mu.Unlock()

		if err := c.players.SetBiddingOpen(ctx, player.ID, false); err != nil {
			log.Error().Err(err).Str("player_id", player.ID.String()).Msg("failed to clear bidding flag after no-bid expiry")
		}
		c.publish(events.TypeAuctionPassed, player.ID, events.AuctionPassedPayload{
			PlayerID: player.ID,
			ClosedAt: c.clk.Now(),
		})
		log.Info().Str("player_id", player.ID.String()).Msg("auction passed with no bids")
		return
	}

	winning, _ := c.ledger.Highest()
	c.state = StateClosing
	c.mu.Unlock()

	log.Info().
		Str("player_id", player.ID.String()).
		Int64("amount", winning.Amount).
		Uint64("seq", winning.Seq).
		Msg("countdown expired, settling")
	c.runSettlement(ctx, winning)
}

// runSettlement applies the winning bid and drives the state transitions
// that follow, returning the settlement error if any. Called without the
// session lock held, with state CLOSING; bids are rejected throughout.
func (c *Coordinator) runSettlement(ctx context.Context, winning models.Bid) error {
	err := c.settler.Settle(ctx, winning)

	var buyerName string
	if err == nil {
		if buyer, berr := c.buyers.GetBuyer(ctx, winning.BuyerID); berr == nil {
			buyerName = buyer.Name
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	player := c.player

	switch {
	case err == nil:
		c.state = StateSettled
		c.player.Sold = true
		c.player.BiddingOpen = false
		c.player.TeamID = &winning.BuyerID
		c.publish(events.TypeWinnerDeclared, player.ID, events.WinnerDeclaredPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			BuyerID:    winning.BuyerID,
			BuyerName:  buyerName,
			Amount:     winning.Amount,
			Seq:        winning.Seq,
			DeclaredAt: c.clk.Now(),
		})
		log.Info().
			Str("player_id", player.ID.String()).
			Str("buyer_id", winning.BuyerID.String()).
			Int64("amount", winning.Amount).
			Msg("winner declared")

	case errors.Is(err, settlement.ErrInsufficientBalance):
		// definitive: cancel the sale, the player stays unsold and can be
		// reopened by the operator
		c.state = StateIdle
		c.player.BiddingOpen = false
		if serr := c.players.SetBiddingOpen(ctx, player.ID, false); serr != nil {
			log.Error().Err(serr).Str("player_id", player.ID.String()).Msg("failed to clear bidding flag after cancelled sale")
		}
		c.publish(events.TypeAuctionCancelled, player.ID, events.AuctionCancelledPayload{
			PlayerID:    player.ID,
			Reason:      "insufficient balance at settlement",
			CancelledAt: c.clk.Now(),
		})
		log.Warn().
			Str("player_id", player.ID.String()).
			Str("buyer_id", winning.BuyerID.String()).
			Msg("sale cancelled, winning buyer cannot cover the amount")

	default:
		// transient failures exhausted: hold in CLOSING, unsold and closed
		// to bids, until the operator retries or withdraws
		c.settleErr = err
		c.player.BiddingOpen = false
		if serr := c.players.SetBiddingOpen(ctx, player.ID, false); serr != nil {
			log.Error().Err(serr).Str("player_id", player.ID.String()).Msg("failed to clear bidding flag after settlement failure")
		}
		c.publish(events.TypeSettlementFailed, player.ID, events.SettlementFailedPayload{
			PlayerID: player.ID,
			BuyerID:  winning.BuyerID,
			Amount:   winning.Amount,
			Reason:   err.Error(),
			FailedAt: c.clk.Now(),
		})
		log.Error().
			Err(err).
			Str("player_id", player.ID.String()).
			Msg("settlement failed, operator intervention required")
	}
	return err
}

// publish is fire-and-forget relative to the caller: the broker never
// blocks on slow subscribers.
func (c *Coordinator) publish(typ events.Type, itemID uuid.UUID, payload any) {
	evt, err := events.New(typ, itemID, c.clk.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	c.broker.Publish(evt)
}
