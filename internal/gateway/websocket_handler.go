package gateway

import (
	"fmt"
	"net/http"
)

// StreamHandler handles WebSocket upgrade requests for the live-update stream
type StreamHandler struct {
	connectionManager *ConnectionManager
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(cm *ConnectionManager) *StreamHandler {
	return &StreamHandler{
		connectionManager: cm,
	}
}

// HandleStream upgrades the request and hands the socket to the connection manager
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// Upgrade already wrote the handshake failure to the client.
		return
	}
}

// HandleStats returns statistics about active connections
func (h *StreamHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"total_connections":%d}`, h.connectionManager.ConnectionCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleStream)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
