package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"drawsync/internal/service"
	"drawsync/internal/transport/rest/handler"
	"drawsync/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	DrawingService *service.DrawingService
	GameQuerier    handler.GameQuerier
	WSHub          *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	canvasHandler := handler.NewCanvasHandler(c.DrawingService, c.GameQuerier)
	wsHandler := ws.NewHandler(c.WSHub, c.DrawingService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	drawing := r.PathPrefix("/drawing").Subrouter()

	drawing.HandleFunc("/room/{roomCode}/canvas", canvasHandler.GetCanvas).Methods("GET", "OPTIONS")
	drawing.HandleFunc("/room/{roomCode}/canvas", canvasHandler.ClearCanvas).Methods("DELETE", "OPTIONS")
	drawing.HandleFunc("/room/{roomCode}/users", canvasHandler.GetUsers).Methods("GET", "OPTIONS")
	drawing.HandleFunc("/room/{roomCode}/stats", canvasHandler.GetStats).Methods("GET", "OPTIONS")
	drawing.HandleFunc("/room/{roomCode}/game-state", canvasHandler.GetGameState).Methods("GET", "OPTIONS")

	// WebSocket endpoint
	drawing.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
