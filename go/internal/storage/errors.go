// Package storage holds the sentinel errors shared by every storage
// backend so callers can match them without knowing which backend is
// behind the interface.
package storage

import "errors"

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrBuyerNotFound  = errors.New("buyer not found")
)
