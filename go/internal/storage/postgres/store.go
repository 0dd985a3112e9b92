// Package postgres backs the auction stores with Postgres. All writes
// that must be atomic run inside a transaction via sqlutil.Run; row
// locks (SELECT ... FOR UPDATE) guard the balance and ownership checks.
package postgres

import (
	"database/sql"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
