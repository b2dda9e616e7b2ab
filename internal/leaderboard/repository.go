package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rallyhq/scoreboard/internal/models"
	"github.com/rallyhq/scoreboard/internal/sqlutil"
)

// Repository implements ledger data access on Postgres. Participants and
// scoring events live in two tables with no foreign key between them:
// a ledger entry must survive its participant, so dangling references are
// expected and resolved at read time.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// CreateParticipant inserts a participant with a zero score
func (r *Repository) CreateParticipant(ctx context.Context, name string, at time.Time) (*models.Participant, error) {
	participant := &models.Participant{
		ID:          uuid.New(),
		Name:        name,
		TotalPoints: 0,
		CreatedAt:   at,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (id, name, total_points, created_at)
		 VALUES ($1, $2, $3, $4)`,
		participant.ID, participant.Name, participant.TotalPoints, participant.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	return participant, nil
}

// ListRankedParticipants returns all participants ordered by the canonical
// ranking rule. A single statement gives one coherent MVCC read: no
// participant is missing or doubled because of an in-flight award.
func (r *Repository) ListRankedParticipants(ctx context.Context) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, total_points, created_at
		 FROM participants
		 ORDER BY total_points DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.TotalPoints, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}

	return participants, nil
}

// AwardPoints atomically increments the participant's total and appends the
// matching ledger entry. The UPDATE takes the participant's row lock, so
// concurrent awards for one participant serialize without blocking awards
// for anyone else. Returns ErrNotFound without side effects when the
// participant does not exist.
func (r *Repository) AwardPoints(ctx context.Context, participantID uuid.UUID, amount int, at time.Time) (*models.ScoringEvent, int64, error) {
	event := &models.ScoringEvent{
		ID:            uuid.New(),
		ParticipantID: participantID,
		Amount:        amount,
		AwardedAt:     at,
	}
	var newTotal int64

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE participants
			 SET total_points = total_points + $2
			 WHERE id = $1
			 RETURNING total_points`,
			participantID, amount,
		).Scan(&newTotal)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update total: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO scoring_events (id, participant_id, amount, awarded_at)
			 VALUES ($1, $2, $3, $4)`,
			event.ID, event.ParticipantID, event.Amount, event.AwardedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append scoring event: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to award points: %w", err)
	}

	return event, newTotal, nil
}

// ListHistory returns all ledger entries newest-first, each joined with the
// participant's current name. The LEFT JOIN keeps entries whose participant
// is gone; their name comes back nil.
func (r *Repository) ListHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.participant_id, p.name, e.amount, e.awarded_at
		 FROM scoring_events e
		 LEFT JOIN participants p ON p.id = e.participant_id
		 ORDER BY e.awarded_at DESC, e.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var name sql.NullString
		if err := rows.Scan(&entry.EventID, &entry.ParticipantID, &name, &entry.Amount, &entry.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if name.Valid {
			entry.ParticipantName = &name.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return entries, nil
}
