package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoringEvent is an immutable ledger entry recording a single award
type ScoringEvent struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int       `json:"amount"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// HistoryEntry is a ledger entry joined with the participant name for display.
// ParticipantName is nil when the referenced participant no longer exists.
type HistoryEntry struct {
	EventID         uuid.UUID `json:"event_id"`
	ParticipantID   uuid.UUID `json:"participant_id"`
	ParticipantName *string   `json:"participant_name,omitempty"`
	Amount          int       `json:"amount"`
	AwardedAt       time.Time `json:"awarded_at"`
}
