package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goban-live/goban-backend/internal/apperror"
	"github.com/goban-live/goban-backend/internal/entity"
	"github.com/goban-live/goban-backend/internal/goban"
)

// Outbound events. gameStateUpdate carries the client view of a room;
// everything else is a small payload struct.
const (
	EventGameState   = "gameStateUpdate"
	EventInvalidMove = "invalidMove"
	EventNewChat     = "newChatMessage"
	EventChatHistory = "chatHistory"
	EventPlayerLeft  = "playerLeft"
	EventError       = "error"
)

// chatHistoryLimit caps the replay sent to a joining connection.
const chatHistoryLimit = 50

type ErrorPayload struct {
	Message string `json:"message"`
}

type PlayerLeftPayload struct {
	ConnectionID string `json:"connection_id"`
	Seat         int    `json:"seat"`
	Message      string `json:"message"`
}

// Broadcaster is the room membership fabric: at-least-once delivery to
// a room's subscribers, plus private delivery for failures. Publishing
// is fire-and-forget and never blocks room mutation.
type Broadcaster interface {
	EmitToRoom(roomID, event string, payload any)
	EmitToConnection(connID, event string, payload any)
}

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	ActiveRooms(ctx context.Context) ([]*entity.Room, error)
}

type chatRepo interface {
	Append(ctx context.Context, message *entity.ChatMessage) error
	History(ctx context.Context, roomID string, limit int) ([]*entity.ChatMessage, error)
}

// RoomService is the authoritative session state machine. Every action
// on a room runs load -> validate -> mutate -> persist under that
// room's lock; the resulting state is published after the lock is
// released. The store is the single source of truth: nothing is cached
// between actions, so a failed persist simply means the next action
// reloads the last committed state.
type RoomService struct {
	logger *slog.Logger
	rooms  roomRepo
	chat   chatRepo
	fabric Broadcaster

	mu sync.Mutex
	// locks serializes read-modify-write sequences per room id.
	locks map[string]*sync.Mutex
	// memberships remembers the room a connection last joined, for
	// disconnect handling.
	memberships map[string]string
}

func NewRoomService(logger *slog.Logger, rooms roomRepo, chat chatRepo, fabric Broadcaster) *RoomService {
	return &RoomService{
		logger:      logger,
		rooms:       rooms,
		chat:        chat,
		fabric:      fabric,
		locks:       make(map[string]*sync.Mutex),
		memberships: make(map[string]string),
	}
}

// Join seats the connection if a seat is free, lazily creating the
// room, and broadcasts the resulting state to every room member.
// Connections beyond the second become spectators and receive the same
// state read-only.
func (that *RoomService) Join(ctx context.Context, roomID, connID string) error {
	log := that.logger.With("method", "Join", "roomID", roomID, "connID", connID)

	that.mu.Lock()
	that.memberships[connID] = roomID
	that.mu.Unlock()

	unlock := that.lockRoom(roomID)

	created := false
	room, err := that.rooms.GetByID(ctx, roomID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		room = entity.NewRoom(roomID)
		created = true
		err = nil
	}
	if err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to load room: %w", err)
	}

	_, seated := room.AddSeat(connID)
	if seated {
		if len(room.Players) == 2 {
			room.Status = entity.StatusInProgress
			room.Message = entity.MsgGameOn
		} else {
			room.Status = entity.StatusWaiting
			room.Message = entity.MsgWaitingForOpponent
		}
	}

	if created || seated {
		if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
			unlock()
			that.reportFailure(connID, err)
			return fmt.Errorf("failed to persist room: %w", err)
		}
	}

	view := room.ClientView()
	unlock()

	that.fabric.EmitToRoom(roomID, EventGameState, view)

	if history, err := that.chat.History(ctx, roomID, chatHistoryLimit); err != nil {
		log.Error("failed to load chat history", "error", err)
	} else if len(history) > 0 {
		that.fabric.EmitToConnection(connID, EventChatHistory, history)
	}

	log.Info("connection joined room", "players", len(room.Players), "status", room.Status)

	return nil
}

// MakeMove validates and applies a stone placement for the seated
// player whose turn it is. Failures are reported only to the acting
// connection; room state is untouched.
func (that *RoomService) MakeMove(ctx context.Context, roomID, connID string, x, y int) error {
	unlock := that.lockRoom(roomID)

	room, err := that.loadForAction(ctx, roomID, connID)
	if err != nil {
		unlock()
		that.reportFailure(connID, err)
		return err
	}

	result, err := goban.ApplyMove(room.Board, x, y, room.CurrentPlayer, room.KoPoint, room.BoardBeforeOpponentMove)
	if err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("move rejected: %w", err)
	}

	mover := room.CurrentPlayer
	room.BoardBeforeOpponentMove = room.Board
	room.Board = result.NewBoard
	room.CurrentPlayer = goban.Opponent(mover)
	room.KoPoint = result.NextKoPoint
	room.ConsecutivePasses = 0

	message := fmt.Sprintf("Player %s's turn.", entity.PlayerName(room.CurrentPlayer))
	if result.CapturedCount > 0 {
		if mover == goban.PlayerBlack {
			room.CapturedByBlack += result.CapturedCount
		} else {
			room.CapturedByWhite += result.CapturedCount
		}
		message = fmt.Sprintf("%d stone(s) captured! %s", result.CapturedCount, message)
	}
	room.Message = message

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to persist room: %w", err)
	}

	view := room.ClientView()
	unlock()

	that.fabric.EmitToRoom(roomID, EventGameState, view)

	return nil
}

// PassTurn passes for the seated player whose turn it is. Two
// consecutive passes end the game.
func (that *RoomService) PassTurn(ctx context.Context, roomID, connID string) error {
	unlock := that.lockRoom(roomID)

	room, err := that.loadForAction(ctx, roomID, connID)
	if err != nil {
		unlock()
		that.reportFailure(connID, err)
		return err
	}

	passing := room.CurrentPlayer
	room.CurrentPlayer = goban.Opponent(passing)
	room.ConsecutivePasses++
	room.KoPoint = nil
	room.BoardBeforeOpponentMove = nil
	room.Message = fmt.Sprintf("Player %s passed. Player %s's turn.",
		entity.PlayerName(passing), entity.PlayerName(room.CurrentPlayer))

	if room.ConsecutivePasses >= 2 {
		room.IsGameOver = true
		room.Status = entity.StatusFinished
		room.Message = entity.MsgGameOver
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to persist room: %w", err)
	}

	view := room.ClientView()
	unlock()

	that.fabric.EmitToRoom(roomID, EventGameState, view)

	return nil
}

// ResetGame clears the board and counters, keeping the seats. The
// status is recomputed from the seat count alone, so a reset is
// idempotent.
func (that *RoomService) ResetGame(ctx context.Context, roomID, connID string) error {
	unlock := that.lockRoom(roomID)

	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to load room: %w", err)
	}

	room.Reset()

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		unlock()
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to persist room: %w", err)
	}

	view := room.ClientView()
	unlock()

	that.fabric.EmitToRoom(roomID, EventGameState, view)

	return nil
}

// SendChat appends to the room's chat log and relays the message to
// the room. Only the chat event is broadcast, never full room state.
func (that *RoomService) SendChat(ctx context.Context, roomID, connID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		that.reportFailure(connID, apperror.ErrEmptyChatMessage)
		return apperror.ErrEmptyChatMessage
	}

	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to load room: %w", err)
	}

	senderName := fmt.Sprintf("Spectator (%s)", shortID(connID))
	if seat := room.SeatOf(connID); seat != nil {
		senderName = entity.SeatName(seat)
	}

	message := &entity.ChatMessage{
		RoomID:     roomID,
		SenderID:   connID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}

	if err = that.chat.Append(ctx, message); err != nil {
		that.reportFailure(connID, err)
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	that.fabric.EmitToRoom(roomID, EventNewChat, message)

	return nil
}

// Disconnect removes the connection's seat from the room it last
// joined. An in-progress game falls back to waiting with turn, pass
// and ko state reset (the position itself is kept); an emptied room is
// marked aborted.
func (that *RoomService) Disconnect(ctx context.Context, connID string) error {
	log := that.logger.With("method", "Disconnect", "connID", connID)

	that.mu.Lock()
	roomID, known := that.memberships[connID]
	delete(that.memberships, connID)
	that.mu.Unlock()

	if !known {
		return nil
	}

	unlock := that.lockRoom(roomID)

	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		unlock()
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load room: %w", err)
	}

	seat, removed := room.RemoveSeat(connID)
	if !removed {
		// Spectators leave without a trace.
		unlock()
		return nil
	}

	message := fmt.Sprintf("Player %d has left the game.", seat.Seat)

	if room.IsInProgress() && len(room.Players) < 2 {
		room.Status = entity.StatusWaiting
		message += " Waiting for a new player."
		room.CurrentPlayer = goban.PlayerBlack
		room.ConsecutivePasses = 0
		room.KoPoint = nil
		room.BoardBeforeOpponentMove = nil
	} else if len(room.Players) == 0 && (room.IsWaiting() || room.IsInProgress()) {
		message = "All players have left. The game is empty."
		room.Status = entity.StatusAborted
	}
	room.Message = message

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		unlock()
		return fmt.Errorf("failed to persist room: %w", err)
	}

	view := room.ClientView()
	unlock()

	that.fabric.EmitToRoom(roomID, EventPlayerLeft, PlayerLeftPayload{
		ConnectionID: connID,
		Seat:         seat.Seat,
		Message:      message,
	})
	that.fabric.EmitToRoom(roomID, EventGameState, view)

	log.Info("seat released", "roomID", roomID, "seat", seat.Seat, "status", room.Status)

	return nil
}

// ActiveRooms lists joinable rooms, newest first.
func (that *RoomService) ActiveRooms(ctx context.Context) ([]*entity.Room, error) {
	rooms, err := that.rooms.ActiveRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	return rooms, nil
}

// loadForAction loads the room and checks the common move/pass
// preconditions for the acting connection.
func (that *RoomService) loadForAction(ctx context.Context, roomID, connID string) (*entity.Room, error) {
	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	seat := room.SeatOf(connID)
	if seat == nil {
		return nil, apperror.ErrNotASeat
	}

	if room.IsGameOver {
		return nil, apperror.ErrGameAlreadyOver
	}

	if !room.IsInProgress() {
		return nil, apperror.ErrGameNotInProgress
	}

	if seat.Seat != room.CurrentPlayer {
		return nil, apperror.ErrNotYourTurn
	}

	return room, nil
}

// lockRoom acquires the per-room mutex, creating it on first use, and
// returns the release func. At most one read-modify-write sequence per
// room runs at a time; different rooms proceed in parallel.
func (that *RoomService) lockRoom(roomID string) func() {
	that.mu.Lock()
	lock, ok := that.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[roomID] = lock
	}
	that.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// reportFailure notifies only the acting connection. Rule and
// precondition failures surface with their own message; anything else
// is a generic server error.
func (that *RoomService) reportFailure(connID string, err error) {
	switch {
	case isRejection(err):
		that.fabric.EmitToConnection(connID, EventInvalidMove, ErrorPayload{Message: err.Error()})
	case errors.Is(err, apperror.ErrRoomNotFound):
		that.logger.Error("action on unknown room", "connID", connID, "error", err)
		that.fabric.EmitToConnection(connID, EventError, ErrorPayload{Message: apperror.ErrRoomNotFound.Error()})
	case errors.Is(err, apperror.ErrEmptyChatMessage):
		that.fabric.EmitToConnection(connID, EventError, ErrorPayload{Message: err.Error()})
	default:
		that.logger.Error("action failed", "connID", connID, "error", err)
		that.fabric.EmitToConnection(connID, EventError, ErrorPayload{Message: "a server error occurred"})
	}
}

// isRejection reports whether the error is a recoverable rejection of
// the attempted action rather than a server-side problem.
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
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func shortID(connID string) string {
	if len(connID) > 5 {
		return connID[:5]
	}
	return connID
}
