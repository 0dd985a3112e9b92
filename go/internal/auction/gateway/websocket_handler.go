package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/identity"
)

// WebSocketHandler handles WebSocket upgrade requests for auction
// connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleItemConnection upgrades a request to a WebSocket watching one
// player's auction. Anonymous viewers are allowed; authenticated users
// are tagged so targeted messages can reach them.
func (h *WebSocketHandler) HandleItemConnection(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	userID := "anonymous"
	if user := identity.FromContext(r.Context()); user != nil {
		userID = user.ID.String()
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, itemID); err != nil {
		log.Error().
			Err(err).
			Str("item_id", itemID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes mounts the WebSocket routes on a chi router.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/items/{itemID}", h.HandleItemConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
