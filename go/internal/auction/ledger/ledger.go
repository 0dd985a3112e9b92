package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mkalra/gavel/go/internal/models"
)

var (
	// ErrNonPositiveAmount rejects zero or negative bid amounts.
	ErrNonPositiveAmount = errors.New("bid amount must be positive")
	// ErrBidTooLow rejects amounts at or below the current floor.
	ErrBidTooLow = errors.New("bid must exceed the current highest bid")
)

// Ledger is the append-only ordered record of accepted bids for one player.
// A bid is accepted iff its amount strictly exceeds every previously
// accepted amount, or the base price when the ledger is empty. Seq is
// assigned at acceptance and increases strictly.
//
// The ledger is not safe for concurrent use: the session coordinator is its
// single writer and serializes submissions.
type Ledger struct {
	playerID  uuid.UUID
	basePrice int64
	bids      []models.Bid
	seq       uint64
}

func New(playerID uuid.UUID, basePrice int64) *Ledger {
	return &Ledger{playerID: playerID, basePrice: basePrice}
}

// WouldAccept reports whether an amount would currently be accepted,
// without mutating the ledger. Lets the coordinator fail fast before any
// collaborator lookups.
func (l *Ledger) WouldAccept(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount <= l.floor() {
		return ErrBidTooLow
	}
	return nil
}

// Append validates and records a bid, returning it with its assigned Seq.
func (l *Ledger) Append(buyerID uuid.UUID, amount int64, at time.Time) (models.Bid, error) {
	if err := l.WouldAccept(amount); err != nil {
		return models.Bid{}, err
	}
	l.seq++
	bid := models.Bid{
		BuyerID:  buyerID,
		PlayerID: l.playerID,
		Amount:   amount,
		Seq:      l.seq,
		PlacedAt: at,
	}
	l.bids = append(l.bids, bid)
	return bid, nil
}

// Highest returns the winning candidate: the bid with the highest Seq,
// which by construction also carries the highest amount.
func (l *Ledger) Highest() (models.Bid, bool) {
	if len(l.bids) == 0 {
		return models.Bid{}, false
	}
	return l.bids[len(l.bids)-1], true
}

func (l *Ledger) Len() int {
	return len(l.bids)
}

// Bids returns a copy of the accepted bids in acceptance order.
func (l *Ledger) Bids() []models.Bid {
	out := make([]models.Bid, len(l.bids))
	copy(out, l.bids)
	return out
}

func (l *Ledger) floor() int64 {
	if len(l.bids) == 0 {
		return l.basePrice
	}
	return l.bids[len(l.bids)-1].Amount
}
