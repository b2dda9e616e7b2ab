package leaderboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/broker"
	"github.com/rallyhq/scoreboard/internal/models"
	"github.com/rallyhq/scoreboard/internal/random"
)

// Award amounts are drawn uniformly from this inclusive range
const (
	MinAwardAmount = 1
	MaxAwardAmount = 10
)

// LedgerRepository defines what the app layer needs from the repository
type LedgerRepository interface {
	CreateParticipant(ctx context.Context, name string, at time.Time) (*models.Participant, error)
	ListRankedParticipants(ctx context.Context) ([]models.Participant, error)
	AwardPoints(ctx context.Context, participantID uuid.UUID, amount int, at time.Time) (*models.ScoringEvent, int64, error)
	ListHistory(ctx context.Context) ([]models.HistoryEntry, error)
}

// EventPublisher defines what the app layer needs from the broadcaster
type EventPublisher interface {
	Publish(event broker.Event)
}

// App handles leaderboard business logic: registration, the scoring
// transaction, the ranking snapshot, and the history read.
type App struct {
	repo   LedgerRepository
	events EventPublisher
	clock  clockwork.Clock
	rng    *random.Source

	awardMu    sync.Mutex
	awardLocks map[uuid.UUID]*sync.Mutex
}

// NewApp creates a new leaderboard App
func NewApp(repo LedgerRepository, events EventPublisher, clock clockwork.Clock, rng *random.Source) *App {
	return &App{
		repo:       repo,
		events:     events,
		clock:      clock,
		rng:        rng,
		awardLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// awardLock returns the mutex serializing awards for one participant.
// Locks are kept for the lifetime of the App; the map is bounded by the
// number of participants awarded through this process.
func (a *App) awardLock(participantID uuid.UUID) *sync.Mutex {
	a.awardMu.Lock()
	defer a.awardMu.Unlock()
	lock, ok := a.awardLocks[participantID]
	if !ok {
		lock = &sync.Mutex{}
		a.awardLocks[participantID] = lock
	}
	return lock
}

// RegisterParticipant validates and creates a participant, then broadcasts
// a ParticipantCreated event to live observers.
func (a *App) RegisterParticipant(ctx context.Context, req RegisterParticipantRequest) (*models.Participant, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}

	now := a.clock.Now()
	participant, err := a.repo.CreateParticipant(ctx, req.Name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	a.publishParticipantCreated(participant, now)

	log.Info().
		Str("participant_id", participant.ID.String()).
		Str("name", participant.Name).
		Msg("participant registered")

	return participant, nil
}

// Award draws a random amount in [MinAwardAmount, MaxAwardAmount],
// atomically credits the participant and appends the ledger entry, then
// broadcasts the resulting ScoreChanged event. The event goes out only
// after the transaction commits; a failed transaction emits nothing.
// ScoreChanged events for one participant are published in commit order.
func (a *App) Award(ctx context.Context, participantID uuid.UUID) (*AwardResult, error) {
	amount := a.rng.IntBetween(MinAwardAmount, MaxAwardAmount)
	now := a.clock.Now()

	// The database row lock ends at commit and cannot order the publishes
	// that follow; this lock spans both, so a stale total can never be
	// broadcast after a newer one for the same participant.
	lock := a.awardLock(participantID)
	lock.Lock()
	defer lock.Unlock()

	event, newTotal, err := a.repo.AwardPoints(ctx, participantID, amount, now)
	if err != nil {
		return nil, err
	}

	a.publishScoreChanged(participantID, newTotal, amount, event.ID, now)

	log.Info().
		Str("participant_id", participantID.String()).
		Int("amount", amount).
		Int64("total_points", newTotal).
		Str("event_id", event.ID.String()).
		Msg("points awarded")

	return &AwardResult{
		ParticipantID: participantID,
		Amount:        amount,
		TotalPoints:   newTotal,
		EventID:       event.ID,
	}, nil
}

// GetRanking returns the full current ranking, best first
func (a *App) GetRanking(ctx context.Context) ([]models.Participant, error) {
	participants, err := a.repo.ListRankedParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}
	return participants, nil
}

// GetHistory returns all ledger entries newest-first
func (a *App) GetHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	entries, err := a.repo.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return entries, nil
}

func (a *App) publishParticipantCreated(p *models.Participant, at time.Time) {
	event, err := broker.NewParticipantCreated(p, at)
	if err != nil {
		log.Error().Err(err).Str("participant_id", p.ID.String()).Msg("failed to build ParticipantCreated event")
		return
	}
	a.events.Publish(event)
}

func (a *App) publishScoreChanged(participantID uuid.UUID, newTotal int64, amount int, eventID uuid.UUID, at time.Time) {
	event, err := broker.NewScoreChanged(participantID, newTotal, amount, eventID, at)
	if err != nil {
		log.Error().Err(err).Str("participant_id", participantID.String()).Msg("failed to build ScoreChanged event")
		return
	}
	a.events.Publish(event)
}
