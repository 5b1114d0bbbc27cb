package entity

import (
	"fmt"
	"time"

	"github.com/goban-live/goban-backend/internal/goban"
)

const (
	StatusWaiting    = "waiting_for_players"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
	StatusAborted    = "aborted"
)

const (
	MsgWaitingForOpponent = "Waiting for an opponent..."
	MsgGameOn             = "Game on! Player Black begins."
	MsgGameOver           = "Game over (two consecutive passes)!"
)

// Seat is one of the two authoritative player slots in a room. Seat
// numbers are assigned first-come-first-served and survive until the
// occupant disconnects.
type Seat struct {
	ID   string `json:"id"`
	Seat int    `json:"seat"`
}

// Room is the authoritative persisted unit of play. It is mutated only
// by the room service and round-trips through storage as JSON.
type Room struct {
	ID                string            `json:"id"`
	Board             goban.Board       `json:"board"`
	Players           []*Seat           `json:"players"`
	CurrentPlayer     int               `json:"current_player"`
	Status            string            `json:"status"`
	Message           string            `json:"message"`
	KoPoint           *goban.Coordinate `json:"ko_point,omitempty"`
	CapturedByBlack   int               `json:"captured_by_black"`
	CapturedByWhite   int               `json:"captured_by_white"`
	ConsecutivePasses int               `json:"consecutive_passes"`
	IsGameOver        bool              `json:"is_game_over"`
	CreatedAt         time.Time         `json:"created_at"`

	// BoardBeforeOpponentMove is the position as it stood before the
	// opponent's most recent move, kept for the repetition check. It is
	// stored but never sent to clients.
	BoardBeforeOpponentMove goban.Board `json:"board_before_opponent_move,omitempty"`
}

// ChatMessage is one entry of a room's append-only chat log.
type ChatMessage struct {
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRoom(id string) *Room {
	return &Room{
		ID:            id,
		Board:         goban.NewBoard(),
		Players:       []*Seat{},
		CurrentPlayer: goban.PlayerBlack,
		Status:        StatusWaiting,
		Message:       MsgWaitingForOpponent,
		CreatedAt:     time.Now().UTC(),
	}
}

// SeatOf returns the seat held by the given connection, or nil.
func (that *Room) SeatOf(connID string) *Seat {
	for _, seat := range that.Players {
		if seat.ID == connID {
			return seat
		}
	}
	return nil
}

// AddSeat assigns the next free seat number to the connection. It
// returns false when both seats are taken or the connection is already
// seated. Numbers derive from the current seat count, not from gaps: a
// replacement joining after seat 1 left is also numbered 2, so both
// occupants can briefly share a number until the room empties.
func (that *Room) AddSeat(connID string) (*Seat, bool) {
	if len(that.Players) >= 2 || that.SeatOf(connID) != nil {
		return nil, false
	}

	seat := &Seat{ID: connID, Seat: len(that.Players) + 1}
	that.Players = append(that.Players, seat)

	return seat, true
}

// RemoveSeat frees the seat held by the connection, if any.
func (that *Room) RemoveSeat(connID string) (*Seat, bool) {
	for i, seat := range that.Players {
		if seat.ID == connID {
			that.Players = append(that.Players[:i], that.Players[i+1:]...)
			return seat, true
		}
	}
	return nil, false
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Room) IsAborted() bool {
	return that.Status == StatusAborted
}

// Reset clears the board and all counters but keeps the seats. Status
// is recomputed purely from the seat count.
func (that *Room) Reset() {
	that.Board = goban.NewBoard()
	that.CurrentPlayer = goban.PlayerBlack
	that.KoPoint = nil
	that.BoardBeforeOpponentMove = nil
	that.CapturedByBlack = 0
	that.CapturedByWhite = 0
	that.ConsecutivePasses = 0
	that.IsGameOver = false

	if len(that.Players) == 2 {
		that.Status = StatusInProgress
		that.Message = "Game reset! Player Black begins."
	} else {
		that.Status = StatusWaiting
		that.Message = "Game reset. Waiting for players..."
	}
}

// ClientView is the room as sent to clients: the retained snapshot is
// internal-only and stripped.
func (that *Room) ClientView() *Room {
	view := *that
	view.BoardBeforeOpponentMove = nil
	return &view
}

// PlayerName is the display name of a stone color.
func PlayerName(player int) string {
	if player == goban.PlayerBlack {
		return "Black"
	}
	return "White"
}

// SeatName is the display name of a seated connection, used in chat.
func SeatName(seat *Seat) string {
	return fmt.Sprintf("Player %d", seat.Seat)
}
