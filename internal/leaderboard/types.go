package leaderboard

import "github.com/google/uuid"

// RegisterParticipantRequest represents the data needed to register a participant
type RegisterParticipantRequest struct {
	Name string `json:"name"`
}

// AwardResult is what a successful award operation returns to the caller
type AwardResult struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int       `json:"amount"`
	TotalPoints   int64     `json:"total_points"`
	EventID       uuid.UUID `json:"event_id"`
}
