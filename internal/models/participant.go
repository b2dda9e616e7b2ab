package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant represents a participant on the leaderboard
type Participant struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	TotalPoints int64     `json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
}
