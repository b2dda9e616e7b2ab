// Package liveview merges a point-in-time ranking snapshot with a live
// event stream into one consistently ordered view, the way each connected
// observer sees the leaderboard.
package liveview

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rallyhq/scoreboard/internal/broker"
	"github.com/rallyhq/scoreboard/internal/models"
)

// Entry is one row of the reconciled ranking view.
// Placeholder marks an entry created from a ScoreChanged event that arrived
// before its ParticipantCreated; the name stays empty until the next
// snapshot refresh fills it in.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	TotalPoints int64     `json:"total_points"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// Reconciler maintains one observer's ranked view. Applying an event is
// idempotent: creations for a known participant are no-ops and score
// changes carry absolute totals, so duplicates between the snapshot and
// the buffered stream are harmless.
type Reconciler struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{
		entries: make(map[uuid.UUID]*Entry),
	}
}

// ApplySnapshot replaces the view with a full consistent snapshot.
// Buffered events applied afterwards bring it up to date with the stream.
func (r *Reconciler) ApplySnapshot(participants []models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[uuid.UUID]*Entry, len(participants))
	for _, p := range participants {
		r.entries[p.ID] = &Entry{
			ID:          p.ID,
			Name:        p.Name,
			TotalPoints: p.TotalPoints,
		}
	}
}

// Apply folds one live event into the view
func (r *Reconciler) Apply(event broker.Event) error {
	payload, err := broker.ParseEventPayload(event)
	if err != nil {
		return fmt.Errorf("parse %s payload: %w", event.Type, err)
	}

	switch p := payload.(type) {
	case broker.ParticipantCreatedPayload:
		id, err := uuid.Parse(p.ParticipantID)
		if err != nil {
			return fmt.Errorf("parse participant id: %w", err)
		}
		return r.applyParticipantCreated(id, p)

	case broker.ScoreChangedPayload:
		id, err := uuid.Parse(p.ParticipantID)
		if err != nil {
			return fmt.Errorf("parse participant id: %w", err)
		}
		r.applyScoreChanged(id, p)
		return nil

	default:
		// Unknown event types are skipped so old clients survive new servers.
		return nil
	}
}

func (r *Reconciler) applyParticipantCreated(id uuid.UUID, p broker.ParticipantCreatedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		// Duplicate creation; at most resolve a placeholder's name.
		if entry.Placeholder {
			entry.Name = p.Name
			entry.Placeholder = false
		}
		return nil
	}

	r.entries[id] = &Entry{
		ID:          id,
		Name:        p.Name,
		TotalPoints: p.TotalPoints,
	}
	return nil
}

func (r *Reconciler) applyScoreChanged(id uuid.UUID, p broker.ScoreChangedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.TotalPoints = p.TotalPoints
		return
	}

	// The score change raced ahead of the creation event; keep the score
	// and resolve the name on the next refresh.
	r.entries[id] = &Entry{
		ID:          id,
		TotalPoints: p.TotalPoints,
		Placeholder: true,
	}
}

// View returns the current ranking, best first, using the same canonical
// ordering the snapshot provider uses.
func (r *Reconciler) View() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		view = append(view, *entry)
	}
	sort.Slice(view, func(i, j int) bool {
		return models.CompareByScore(
			view[i].TotalPoints, view[i].ID,
			view[j].TotalPoints, view[j].ID,
		) < 0
	})
	return view
}
