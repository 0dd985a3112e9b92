package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a player that can be put up for auction.
// Sold is monotonic: once true it never flips back. BiddingOpen is owned by
// the session coordinator while an auction is live; storage is a write
// target for it, not the source of truth.
type Player struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	ImageURL      string     `json:"image_url,omitempty"`
	BasePrice     int64      `json:"base_price"`
	BattingRating int        `json:"batting_rating"`
	BowlingRating int        `json:"bowling_rating"`
	TeamID        *uuid.UUID `json:"team_id,omitempty"` // winning buyer, nil until sold
	Sold          bool       `json:"sold"`
	BiddingOpen   bool       `json:"bidding_open"`
	CreatedAt     time.Time  `json:"created_at"`
}
