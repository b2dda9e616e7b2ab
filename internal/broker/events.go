package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rallyhq/scoreboard/internal/models"
)

// Event is the envelope for all state-change events pushed to observers
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of leaderboard event
type EventType string

const (
	EventTypeParticipantCreated EventType = "ParticipantCreated"
	EventTypeScoreChanged       EventType = "ScoreChanged"
)

// ParticipantCreatedPayload announces a newly registered participant
type ParticipantCreatedPayload struct {
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	TotalPoints   int64     `json:"total_points"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScoreChangedPayload carries the absolute new total, not a delta, so that
// re-applying it after a snapshot refresh cannot double-count an award.
type ScoreChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	TotalPoints   int64  `json:"total_points"`
	Amount        int    `json:"amount"`
	EventID       string `json:"event_id"` // ledger entry id
}

// NewParticipantCreated builds a ParticipantCreated event for a participant
func NewParticipantCreated(p *models.Participant, at time.Time) (Event, error) {
	return newEvent(EventTypeParticipantCreated, at, ParticipantCreatedPayload{
		ParticipantID: p.ID.String(),
		Name:          p.Name,
		TotalPoints:   p.TotalPoints,
		CreatedAt:     p.CreatedAt,
	})
}

// NewScoreChanged builds a ScoreChanged event for a committed award
func NewScoreChanged(participantID uuid.UUID, newTotal int64, amount int, eventID uuid.UUID, at time.Time) (Event, error) {
	return newEvent(EventTypeScoreChanged, at, ScoreChangedPayload{
		ParticipantID: participantID.String(),
		TotalPoints:   newTotal,
		Amount:        amount,
		EventID:       eventID.String(),
	})
}

func newEvent(eventType EventType, at time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event Event) (interface{}, error) {
	switch event.Type {
	case EventTypeParticipantCreated:
		var payload ParticipantCreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeScoreChanged:
		var payload ScoreChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
