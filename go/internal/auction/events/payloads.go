package events

import (
	"time"

	"github.com/google/uuid"
)

// Payload types shared between the session coordinator, gateway and relay.

// AuctionOpenedPayload is emitted when the operator opens bidding.
type AuctionOpenedPayload struct {
	PlayerID     uuid.UUID `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	BasePrice    int64     `json:"base_price"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosesAt     time.Time `json:"closes_at"`
	BidWindowSec int       `json:"bid_window_sec"`
}

// BidAcceptedPayload is emitted for each bid the ledger accepts.
type BidAcceptedPayload struct {
	BuyerID   uuid.UUID `json:"buyer_id"`
	BuyerName string    `json:"buyer_name"`
	Amount    int64     `json:"amount"`
	Seq       uint64    `json:"seq"`
	PlacedAt  time.Time `json:"placed_at"`
	ClosesAt  time.Time `json:"closes_at"`
}

// TimerResetPayload is emitted alongside each accepted bid; clients restart
// their visible countdown from bid_window_sec. The server deadline stays
// authoritative.
type TimerResetPayload struct {
	Seq          uint64    `json:"seq"`
	ResetAt      time.Time `json:"reset_at"`
	ClosesAt     time.Time `json:"closes_at"`
	BidWindowSec int       `json:"bid_window_sec"`
}

// AuctionPassedPayload is emitted when the countdown expires with no bids.
type AuctionPassedPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	ClosedAt time.Time `json:"closed_at"`
}

// WinnerDeclaredPayload is emitted once settlement succeeds.
type WinnerDeclaredPayload struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	BuyerName  string    `json:"buyer_name"`
	Amount     int64     `json:"amount"`
	Seq        uint64    `json:"seq"`
	DeclaredAt time.Time `json:"declared_at"`
}

// AuctionCancelledPayload is emitted when an auction ends without a sale:
// operator withdrawal or a definitive settlement rejection.
type AuctionCancelledPayload struct {
	PlayerID    uuid.UUID `json:"player_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// SettlementFailedPayload is emitted when settlement retries are exhausted
// and the session is held for operator intervention.
type SettlementFailedPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
