package models

import (
	"time"

	"github.com/google/uuid"
)

// Buyer is a participant with a currency balance competing for players.
// Balance is mutated only by settlement. TeamList is append-only with
// unique membership.
type Buyer struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Balance   int64       `json:"balance"`
	TeamList  []uuid.UUID `json:"team_list"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasPlayer reports whether the player is already part of the buyer's team.
func (b *Buyer) HasPlayer(playerID uuid.UUID) bool {
	for _, id := range b.TeamList {
		if id == playerID {
			return true
		}
	}
	return false
}
