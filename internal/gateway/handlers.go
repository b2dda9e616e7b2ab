package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/leaderboard"
	"github.com/rallyhq/scoreboard/internal/models"
)

// LeaderboardApp defines what the HTTP layer needs from the leaderboard application
type LeaderboardApp interface {
	RegisterParticipant(ctx context.Context, req leaderboard.RegisterParticipantRequest) (*models.Participant, error)
	Award(ctx context.Context, participantID uuid.UUID) (*leaderboard.AwardResult, error)
	GetRanking(ctx context.Context) ([]models.Participant, error)
	GetHistory(ctx context.Context) ([]models.HistoryEntry, error)
}

// APIHandler exposes the registration, award, ranking and history boundaries
type APIHandler struct {
	app LeaderboardApp
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(app LeaderboardApp) *APIHandler {
	return &APIHandler{
		app: app,
	}
}

// RegisterRoutes registers the REST routes with an HTTP mux
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/participants", h.handleParticipants)
	mux.HandleFunc("/participants/award", h.handleAward)
	mux.HandleFunc("/history", h.handleHistory)
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *APIHandler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleRegister(w, r)
	case http.MethodGet:
		h.handleRanking(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req leaderboard.RegisterParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participant, err := h.app.RegisterParticipant(r.Context(), req)
	if err != nil {
		if errors.Is(err, leaderboard.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, "name is a required field")
			return
		}
		log.Error().Err(err).Msg("failed to register participant")
		writeError(w, http.StatusInternalServerError, "failed to register participant")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"message":     "participant registered",
		"participant": participant,
	})
}

func (h *APIHandler) handleRanking(w http.ResponseWriter, r *http.Request) {
	participants, err := h.app.GetRanking(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get ranking")
		writeError(w, http.StatusInternalServerError, "failed to get ranking")
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "ranking fetched",
		"participants": participants,
	})
}

type awardRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (h *APIHandler) handleAward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participant_id is a required field")
		return
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant_id format")
		return
	}

	result, err := h.app.Award(r.Context(), participantID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		log.Error().Err(err).Str("participant_id", participantID.String()).Msg("failed to award points")
		writeError(w, http.StatusInternalServerError, "failed to award points")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "points awarded",
		"award":   result,
	})
}

func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.app.GetHistory(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get history")
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "history fetched",
		"history": entries,
	})
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
