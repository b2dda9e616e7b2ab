package liveview

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rallyhq/scoreboard/internal/broker"
	"github.com/rallyhq/scoreboard/internal/models"
)

func created(t *testing.T, id uuid.UUID, name string) broker.Event {
	t.Helper()
	event, err := broker.NewParticipantCreated(&models.Participant{ID: id, Name: name}, time.Now())
	if err != nil {
		t.Fatalf("NewParticipantCreated returned error: %v", err)
	}
	return event
}

func changed(t *testing.T, id uuid.UUID, total int64) broker.Event {
	t.Helper()
	event, err := broker.NewScoreChanged(id, total, 1, uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("NewScoreChanged returned error: %v", err)
	}
	return event
}

func apply(t *testing.T, r *Reconciler, events ...broker.Event) {
	t.Helper()
	for _, event := range events {
		if err := r.Apply(event); err != nil {
			t.Fatalf("Apply returned error: %v", err)
		}
	}
}

func TestApplyScoreChangedIsIdempotent(t *testing.T) {
	r := NewReconciler()
	id := uuid.New()
	apply(t, r, created(t, id, "Ava"))

	event := changed(t, id, 11)
	apply(t, r, event)
	once := r.View()

	apply(t, r, event)
	twice := r.View()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("double apply changed the view: %+v vs %+v", once, twice)
	}
	if twice[0].TotalPoints != 11 {
		t.Fatalf("total = %d, want 11", twice[0].TotalPoints)
	}
}

func TestEventsForSameParticipantApplyInOrder(t *testing.T) {
	r := NewReconciler()
	ava := uuid.New()
	ben := uuid.New()
	apply(t, r, created(t, ava, "Ava"), created(t, ben, "Ben"))

	// Ava's events interleaved with Ben's; only order per participant matters.
	apply(t, r,
		changed(t, ava, 4),
		changed(t, ben, 7),
		changed(t, ava, 9),
		changed(t, ben, 2),
	)

	view := r.View()
	totals := make(map[uuid.UUID]int64, len(view))
	for _, entry := range view {
		totals[entry.ID] = entry.TotalPoints
	}
	if totals[ava] != 9 {
		t.Fatalf("Ava total = %d, want 9 (last published value)", totals[ava])
	}
	if totals[ben] != 2 {
		t.Fatalf("Ben total = %d, want 2 (last published value)", totals[ben])
	}
}

func TestDuplicateCreationIsNoOp(t *testing.T) {
	r := NewReconciler()
	id := uuid.New()
	apply(t, r, created(t, id, "Ava"), changed(t, id, 6), created(t, id, "Ava"))

	view := r.View()
	if len(view) != 1 {
		t.Fatalf("view has %d entries, want 1", len(view))
	}
	if view[0].TotalPoints != 6 {
		t.Fatalf("duplicate creation reset total to %d", view[0].TotalPoints)
	}
}

func TestScoreChangedBeforeCreationInsertsPlaceholder(t *testing.T) {
	r := NewReconciler()
	id := uuid.New()

	apply(t, r, changed(t, id, 8))

	view := r.View()
	if len(view) != 1 {
		t.Fatalf("view has %d entries, want 1", len(view))
	}
	if !view[0].Placeholder || view[0].TotalPoints != 8 {
		t.Fatalf("expected placeholder with total 8, got %+v", view[0])
	}

	// The late creation event resolves the name.
	apply(t, r, created(t, id, "Ava"))
	view = r.View()
	if view[0].Placeholder || view[0].Name != "Ava" {
		t.Fatalf("placeholder not resolved: %+v", view[0])
	}
	if view[0].TotalPoints != 8 {
		t.Fatalf("resolving placeholder changed total to %d", view[0].TotalPoints)
	}
}

func TestViewUsesCanonicalOrdering(t *testing.T) {
	r := NewReconciler()
	ava := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	ben := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	apply(t, r,
		created(t, ava, "Ava"),
		created(t, ben, "Ben"),
		changed(t, ava, 5),
		changed(t, ben, 9),
	)

	view := r.View()
	if view[0].Name != "Ben" || view[1].Name != "Ava" {
		t.Fatalf("order = [%s, %s], want Ben first", view[0].Name, view[1].Name)
	}

	// Tie: lower ID wins, deterministically.
	apply(t, r, changed(t, ava, 9))
	view = r.View()
	if view[0].ID != ben || view[1].ID != ava {
		t.Fatalf("tie-break order = [%s, %s], want lower id first", view[0].ID, view[1].ID)
	}
}

func TestAwardReordersLiveView(t *testing.T) {
	r := NewReconciler()
	ava := uuid.New()
	ben := uuid.New()
	r.ApplySnapshot([]models.Participant{
		{ID: ben, Name: "Ben", TotalPoints: 9},
		{ID: ava, Name: "Ava", TotalPoints: 5},
	})

	view := r.View()
	if view[0].Name != "Ben" {
		t.Fatalf("initial leader = %s, want Ben", view[0].Name)
	}

	apply(t, r, changed(t, ava, 11))
	view = r.View()
	if view[0].Name != "Ava" || view[0].TotalPoints != 11 {
		t.Fatalf("after award leader = %+v, want Ava at 11", view[0])
	}
}

// TestSnapshotStreamRaceConverges drives the subscribe-first protocol by
// hand: events buffer while the snapshot is in flight, the snapshot
// already reflects some of them, and the full buffer replays afterwards.
// The result must match a reconciler that saw no race at all.
func TestSnapshotStreamRaceConverges(t *testing.T) {
	ava := uuid.New()
	ben := uuid.New()

	buffered := []broker.Event{
		changed(t, ava, 3),
		changed(t, ben, 5),
		changed(t, ava, 7),
		changed(t, ben, 10),
	}

	// Snapshot taken mid-stream: ava's first award and ben's first award
	// are already reflected.
	snapshot := []models.Participant{
		{ID: ava, Name: "Ava", TotalPoints: 3},
		{ID: ben, Name: "Ben", TotalPoints: 5},
	}

	raced := NewReconciler()
	raced.ApplySnapshot(snapshot)
	apply(t, raced, buffered...)

	clean := NewReconciler()
	clean.ApplySnapshot([]models.Participant{
		{ID: ava, Name: "Ava"},
		{ID: ben, Name: "Ben"},
	})
	apply(t, clean, buffered...)

	if !reflect.DeepEqual(raced.View(), clean.View()) {
		t.Fatalf("raced view %+v differs from clean view %+v", raced.View(), clean.View())
	}
}

func TestApplyMalformedPayloadReturnsError(t *testing.T) {
	r := NewReconciler()
	event := broker.Event{
		ID:   uuid.New().String(),
		Type: broker.EventTypeScoreChanged,
		Data: []byte(`{"participant_id": 42`),
	}
	if err := r.Apply(event); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if len(r.View()) != 0 {
		t.Fatalf("malformed event still modified the view")
	}
}
