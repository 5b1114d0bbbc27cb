package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goban-live/goban-backend/internal/entity"
)

type roomLister interface {
	ActiveRooms(ctx context.Context) ([]*entity.Room, error)
}

// ActiveGameInfo is one row of the active games listing.
type ActiveGameInfo struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Server struct {
	logger *slog.Logger
	rooms  roomLister
}

func New(logger *slog.Logger, rooms roomLister) *Server {
	return &Server{
		logger: logger,
		rooms:  rooms,
	}
}

// Start - starts the HTTP server and blocks until it stops.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", that.pingHandler)
	mux.HandleFunc("/api/games/active", that.activeGamesHandler)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// activeGamesHandler lists joinable rooms, newest first.
func (that *Server) activeGamesHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "activeGamesHandler")

	rooms, err := that.rooms.ActiveRooms(r.Context())
	if err != nil {
		log.Error("failed to list active rooms", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	games := make([]ActiveGameInfo, 0, len(rooms))
	for _, room := range rooms {
		games = append(games, ActiveGameInfo{
			ID:          room.ID,
			Status:      room.Status,
			PlayerCount: len(room.Players),
			CreatedAt:   room.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(games); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
