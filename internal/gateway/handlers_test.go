package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rallyhq/scoreboard/internal/leaderboard"
	"github.com/rallyhq/scoreboard/internal/models"
)

// fakeApp implements LeaderboardApp with pluggable behavior per test
type fakeApp struct {
	registerFn func(ctx context.Context, req leaderboard.RegisterParticipantRequest) (*models.Participant, error)
	awardFn    func(ctx context.Context, participantID uuid.UUID) (*leaderboard.AwardResult, error)
	rankingFn  func(ctx context.Context) ([]models.Participant, error)
	historyFn  func(ctx context.Context) ([]models.HistoryEntry, error)
}

func (f *fakeApp) RegisterParticipant(ctx context.Context, req leaderboard.RegisterParticipantRequest) (*models.Participant, error) {
	return f.registerFn(ctx, req)
}

func (f *fakeApp) Award(ctx context.Context, participantID uuid.UUID) (*leaderboard.AwardResult, error) {
	return f.awardFn(ctx, participantID)
}

func (f *fakeApp) GetRanking(ctx context.Context) ([]models.Participant, error) {
	return f.rankingFn(ctx)
}

func (f *fakeApp) GetHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	return f.historyFn(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHandleRegisterCreated(t *testing.T) {
	app := &fakeApp{
		registerFn: func(ctx context.Context, req leaderboard.RegisterParticipantRequest) (*models.Participant, error) {
			return &models.Participant{ID: uuid.New(), Name: req.Name}, nil
		},
	}
	handler := NewAPIHandler(app)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/participants", strings.NewReader(`{"name":"Ava"}`))
	handler.handleParticipants(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	participant := body["participant"].(map[string]interface{})
	if participant["name"] != "Ava" {
		t.Fatalf("participant name = %v, want Ava", participant["name"])
	}
}

func TestHandleRegisterBlankNameRejected(t *testing.T) {
	app := &fakeApp{
		registerFn: func(ctx context.Context, req leaderboard.RegisterParticipantRequest) (*models.Participant, error) {
			return nil, leaderboard.ErrEmptyName
		},
	}
	handler := NewAPIHandler(app)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/participants", strings.NewReader(`{"name":""}`))
	handler.handleParticipants(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decodeBody(t, rec); body["success"] != false {
		t.Fatalf("success = %v, want false", body["success"])
	}
}

func TestHandleAwardSuccess(t *testing.T) {
	id := uuid.New()
	app := &fakeApp{
		awardFn: func(ctx context.Context, participantID uuid.UUID) (*leaderboard.AwardResult, error) {
			if participantID != id {
				t.Fatalf("award called with %s, want %s", participantID, id)
			}
			return &leaderboard.AwardResult{
				ParticipantID: participantID,
				Amount:        6,
				TotalPoints:   11,
				EventID:       uuid.New(),
			}, nil
		},
	}
	handler := NewAPIHandler(app)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/participants/award", strings.NewReader(`{"participant_id":"`+id.String()+`"}`))
	handler.handleAward(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	body := decodeBody(t, rec)
	award := body["award"].(map[string]interface{})
	if award["amount"].(float64) != 6 || award["total_points"].(float64) != 11 {
		t.Fatalf("unexpected award body: %v", award)
	}
}

func TestHandleAwardValidation(t *testing.T) {
	app := &fakeApp{
		awardFn: func(ctx context.Context, participantID uuid.UUID) (*leaderboard.AwardResult, error) {
			return nil, leaderboard.ErrNotFound
		},
	}
	handler := NewAPIHandler(app)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"unknown participant", `{"participant_id":"` + uuid.New().String() + `"}`, http.StatusNotFound},
		{"missing participant_id", `{}`, http.StatusBadRequest},
		{"malformed id", `{"participant_id":"not-a-uuid"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/participants/award", strings.NewReader(tc.body))
			handler.handleAward(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestHandleRankingReturnsOrderedParticipants(t *testing.T) {
	app := &fakeApp{
		rankingFn: func(ctx context.Context) ([]models.Participant, error) {
			return []models.Participant{
				{ID: uuid.New(), Name: "Ben", TotalPoints: 9},
				{ID: uuid.New(), Name: "Ava", TotalPoints: 5},
			}, nil
		},
	}
	handler := NewAPIHandler(app)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/participants", nil)
	handler.handleParticipants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	participants := body["participants"].([]interface{})
	if len(participants) != 2 {
		t.Fatalf("got %d participants, want 2", len(participants))
	}
	first := participants[0].(map[string]interface{})
	if first["name"] != "Ben" {
		t.Fatalf("first participant = %v, want Ben", first["name"])
	}
}

func TestHandleHistoryMarksDanglingParticipant(t *testing.T) {
	name := "Ava"
	app := &fakeApp{
		historyFn: func(ctx context.Context) ([]models.HistoryEntry, error) {
			return []models.HistoryEntry{
				{EventID: uuid.New(), ParticipantID: uuid.New(), ParticipantName: &name, Amount: 4},
				{EventID: uuid.New(), ParticipantID: uuid.New(), Amount: 7}, // dangling
			}, nil
		},
	}
	handler := NewAPIHandler(app)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	handler.handleHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	history := body["history"].([]interface{})
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2", len(history))
	}
	known := history[0].(map[string]interface{})
	if known["participant_name"] != "Ava" {
		t.Fatalf("known entry name = %v, want Ava", known["participant_name"])
	}
	dangling := history[1].(map[string]interface{})
	if _, present := dangling["participant_name"]; present {
		t.Fatalf("dangling entry should omit participant_name, got %v", dangling["participant_name"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewAPIHandler(&fakeApp{})

	tests := []struct {
		method string
		path   string
		fn     http.HandlerFunc
	}{
		{http.MethodDelete, "/participants", handler.handleParticipants},
		{http.MethodGet, "/participants/award", handler.handleAward},
		{http.MethodPost, "/history", handler.handleHistory},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		tc.fn(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s status = %d, want %d", tc.method, tc.path, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}
