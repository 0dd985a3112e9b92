package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies an auction event.
type Type string

const (
	TypeAuctionOpened    Type = "AuctionOpened"
	TypeBidAccepted      Type = "BidAccepted"
	TypeTimerReset       Type = "TimerReset"
	TypeAuctionPassed    Type = "AuctionPassed"
	TypeWinnerDeclared   Type = "WinnerDeclared"
	TypeAuctionCancelled Type = "AuctionCancelled"
	TypeSettlementFailed Type = "SettlementFailed"
)

// Event is the wire envelope for every auction event. Data holds the
// type-specific payload.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    uuid.UUID       `json:"item_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New wraps a payload into an envelope for the given item.
func New(typ Type, itemID uuid.UUID, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.New(),
		ItemID:    itemID,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}, nil
}
