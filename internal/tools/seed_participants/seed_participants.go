package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rallyhq/scoreboard/internal/dbconfig"
)

// Participant mirrors the seed JSON structure
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func main() {
	path := "internal/assets/participants.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var participants []Participant
	if err := json.Unmarshal(data, &participants); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert and count
	var (
		total    = len(participants)
		inserted int
		skipped  int
		errs     int
	)

	for _, p := range participants {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}

		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO participants (id, name, total_points, created_at)
            VALUES ($1, $2, 0, now())
            ON CONFLICT (id) DO NOTHING
        `, id, p.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting participant %s: %v\n", p.Name, err)
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
		"Participants seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
