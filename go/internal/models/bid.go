package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an accepted bid for a player. Seq is assigned by the ledger at
// acceptance time and is the ordering authority; wall-clock timestamps
// across clients are not reliable for ordering.
type Bid struct {
	BuyerID  uuid.UUID `json:"buyer_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Amount   int64     `json:"amount"`
	Seq      uint64    `json:"seq"`
	PlacedAt time.Time `json:"placed_at"`
}
