package session

import "errors"

var (
	// ErrSessionBusy rejects opening an item while another session is live.
	ErrSessionBusy = errors.New("another auction session is already in progress")
	// ErrItemUnavailable rejects opening a player that is already sold.
	ErrItemUnavailable = errors.New("player has already been sold")
	// ErrNoActiveAuction rejects bids while the session is idle.
	ErrNoActiveAuction = errors.New("no auction is currently open")
	// ErrAuctionClosed rejects bids once the session left OPEN.
	ErrAuctionClosed = errors.New("auction is closed for bidding")
	// ErrInsufficientBalance rejects bids above the buyer's live balance.
	ErrInsufficientBalance = errors.New("buyer balance below bid amount")
	// ErrNotWithdrawable rejects withdrawing while settlement is running.
	ErrNotWithdrawable = errors.New("session cannot be withdrawn right now")
	// ErrNothingToSettle rejects a settlement retry when none is pending.
	ErrNothingToSettle = errors.New("no failed settlement pending retry")
)
