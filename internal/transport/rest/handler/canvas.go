package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"drawsync/internal/model"
	"drawsync/internal/service"
)

// GameQuerier asks the external game service for state, resolving to a
// fallback value when it does not answer in time.
type GameQuerier interface {
	Ask(ctx context.Context, action string, payload interface{}) json.RawMessage
}

// CanvasHandler handles the room canvas endpoints
type CanvasHandler struct {
	drawingSvc *service.DrawingService
	game       GameQuerier
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(drawingSvc *service.DrawingService, game GameQuerier) *CanvasHandler {
	return &CanvasHandler{
		drawingSvc: drawingSvc,
		game:       game,
	}
}

// GetCanvas handles GET /drawing/room/{roomCode}/canvas
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	drawings, err := h.drawingSvc.Canvas(r.Context(), roomCode)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to read canvas")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if drawings == nil {
		drawings = []model.DrawEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomCode":      roomCode,
		"drawings":      drawings,
		"totalDrawings": len(drawings),
	})
}

// ClearCanvasRequest is the request body for clearing a canvas
type ClearCanvasRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ClearCanvas handles DELETE /drawing/room/{roomCode}/canvas
func (h *CanvasHandler) ClearCanvas(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	var req ClearCanvasRequest
	if r.Body != nil {
		// Body is optional metadata; a missing or invalid one still clears.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	timestamp, err := h.drawingSvc.ClearByRequest(r.Context(), roomCode, req.UserID, req.Username)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to clear canvas")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Canvas cleared successfully",
		"roomCode":  roomCode,
		"clearedBy": req.Username,
		"timestamp": timestamp,
	})
}

// GetUsers handles GET /drawing/room/{roomCode}/users
func (h *CanvasHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	users, err := h.drawingSvc.Users(r.Context(), roomCode)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to list room users")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if users == nil {
		users = []model.RoomUser{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomCode":   roomCode,
		"users":      users,
		"totalUsers": len(users),
	})
}

// GetStats handles GET /drawing/room/{roomCode}/stats
func (h *CanvasHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	stats, err := h.drawingSvc.Stats(r.Context(), roomCode)
	if err != nil {
		log.WithFields(log.Fields{"roomCode": roomCode, "error": err}).
			Error("failed to compute canvas stats")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomCode": roomCode,
		"stats":    stats,
	})
}

// GetGameState handles GET /drawing/room/{roomCode}/game-state
func (h *CanvasHandler) GetGameState(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	state := h.game.Ask(r.Context(), "get-game-state", map[string]string{
		"roomCode": roomCode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomCode":  roomCode,
		"gameState": state,
	})
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
