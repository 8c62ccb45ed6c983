package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mystari/mystari-api/internal/api/response"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/services/players"
)

// PlayerHandler handles player record endpoints
type PlayerHandler struct {
	playerService *players.Service
	logger        *slog.Logger
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(playerService *players.Service, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{
		playerService: playerService,
		logger:        logger,
	}
}

// List handles GET /api/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.playerService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, list)
}

// Update handles PUT /api/players/{id}
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	rawID := mux.Vars(r)["id"]

	// Reject a bad identifier before looking at the body
	if _, err := model.ParseID(rawID); err != nil {
		WriteError(w, err)
		return
	}

	var update model.PlayerUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.playerService.Update(r.Context(), rawID, update)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}
