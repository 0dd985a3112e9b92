package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkalra/gavel/go/internal/dbconfig"
)

// Player mirrors the roster JSON layout
type Player struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ImageURL      string    `json:"image_url"`
	BasePrice     int64     `json:"base_price"`
	BattingRating int       `json:"batting_rating"`
	BowlingRating int       `json:"bowling_rating"`
}

type Buyer struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Balance int64     `json:"balance"`
}

type Roster struct {
	Players []Player `json:"players"`
	Buyers  []Buyer  `json:"buyers"`
}

func main() {
	ctx := context.Background()

	// 1) Load the roster snapshot
	path := "go/internal/assets/roster.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read roster JSON: %v\n", err)
		os.Exit(1)
	}
	var roster Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal roster: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var inserted, skipped, errs int

	for _, b := range roster.Buyers {
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO buyers (id, name, balance)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO NOTHING
        `, b.ID, b.Name, b.Balance)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting buyer %s: %v\n", b.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	for _, p := range roster.Players {
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO players (id, name, image_url, base_price, batting_rating, bowling_rating)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (id) DO NOTHING
        `, p.ID, p.Name, p.ImageURL, p.BasePrice, p.BattingRating, p.BowlingRating)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting player %s: %v\n", p.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Roster seed complete: %d players, %d buyers, %d inserted, %d skipped, %d errors\n",
		len(roster.Players), len(roster.Buyers), inserted, skipped, errs,
	)
}
