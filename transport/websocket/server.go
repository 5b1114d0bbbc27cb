package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goban-live/goban-backend/internal/apperror"
	"github.com/goban-live/goban-backend/internal/monitor"
)

type roomService interface {
	Join(ctx context.Context, roomID, connID string) error
	MakeMove(ctx context.Context, roomID, connID string, x, y int) error
	PassTurn(ctx context.Context, roomID, connID string) error
	ResetGame(ctx context.Context, roomID, connID string) error
	SendChat(ctx context.Context, roomID, connID, text string) error
	Disconnect(ctx context.Context, connID string) error
}

type Server struct {
	logger  *slog.Logger
	rooms   roomService
	hub     *Hub
	metrics *monitor.Monitor

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, connID string, payload json.RawMessage) error
}

func New(logger *slog.Logger, rooms roomService, hub *Hub, metrics *monitor.Monitor) *Server {
	server := &Server{
		logger:  logger,
		rooms:   rooms,
		hub:     hub,
		metrics: metrics,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin clients are expected; the game has no
			// credentialed state beyond the connection itself.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, string, json.RawMessage) error),
	}

	server.handlers[ActionJoinGame] = server.handleJoinGame
	server.handlers[ActionMakeMove] = server.handleMakeMove
	server.handlers[ActionPassTurn] = server.handlePassTurn
	server.handlers[ActionReset] = server.handleResetGame
	server.handlers[ActionSendChat] = server.handleSendChat

	return server
}

// Start - starts the WebSocket server and blocks until it stops.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
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

// serveConnection upgrades the request and runs the connection's read
// loop until it disconnects.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	keepalive(conn, pongWait)

	client := that.hub.Register(conn)
	that.metrics.OpenConnections.Inc()

	log = log.With("connID", client.ID)
	log.Info("connection established")

	defer func() {
		// The disconnect must settle before the connection is gone for
		// good: seats are released through the same per-room
		// serialization as every other action.
		if err := that.rooms.Disconnect(ctx, client.ID); err != nil {
			log.Error("failed to handle disconnect", "error", err)
		}

		that.hub.Unregister(client.ID)
		that.metrics.OpenConnections.Dec()
		log.Info("connection closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("connection read failed", "error", err)
			}
			return
		}

		that.metrics.MessagesReceived.Inc()

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			continue
		}

		start := time.Now()
		if err = handler(ctx, client.ID, message.Payload); err != nil {
			if isRejection(err) {
				that.metrics.RejectedActions.Inc()
				log.Debug("action rejected", "action", message.Action, "error", err)
			} else {
				log.Error("action failed", "action", message.Action, "error", err)
			}
		}
		that.metrics.ObserveAction(start)
	}
}

func (that *Server) handleJoinGame(ctx context.Context, connID string, payload json.RawMessage) error {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	that.hub.Join(connID, req.RoomID)

	return that.rooms.Join(ctx, req.RoomID, connID)
}

func (that *Server) handleMakeMove(ctx context.Context, connID string, payload json.RawMessage) error {
	var req MovePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := that.rooms.MakeMove(ctx, req.RoomID, connID, req.X, req.Y); err != nil {
		return err
	}

	that.metrics.MovesPlayed.Inc()

	return nil
}

func (that *Server) handlePassTurn(ctx context.Context, connID string, payload json.RawMessage) error {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.rooms.PassTurn(ctx, req.RoomID, connID)
}

func (that *Server) handleResetGame(ctx context.Context, connID string, payload json.RawMessage) error {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.rooms.ResetGame(ctx, req.RoomID, connID)
}

func (that *Server) handleSendChat(ctx context.Context, connID string, payload json.RawMessage) error {
	var req ChatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.rooms.SendChat(ctx, req.RoomID, connID, req.Text)
}

// keepalive arms the read deadline and extends it on every pong, so a
// peer that stops answering the writer's pings is dropped instead of
// holding its seat until TCP gives up.
func keepalive(conn *websocket.Conn, wait time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
}

// isRejection mirrors the service's split between player mistakes and
// server faults; only the latter are logged as errors.
func isRejection(err error) bool {
	for _, sentinel := range []error{
		apperror.ErrOutOfBounds,
		apperror.ErrOccupied,
		apperror.ErrKoViolation,
		apperror.ErrSuicide,
		apperror.ErrNotYourTurn,
		apperror.ErrNotASeat,
		apperror.ErrGameNotInProgress,
		apperror.ErrGameAlreadyOver,
		apperror.ErrEmptyChatMessage,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
