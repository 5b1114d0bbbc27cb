package apperror

import "errors"

// Rules failures. All of them are recoverable: the move is rejected and
// the board stays as it was.
var (
	ErrOutOfBounds = errors.New("point is outside the board")
	ErrOccupied    = errors.New("point is already occupied")
	ErrKoViolation = errors.New("ko: cannot immediately recapture")
	ErrSuicide     = errors.New("suicide is not allowed")
)

// Session precondition failures.
var (
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrNotASeat          = errors.New("connection does not hold a seat in this game")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrGameAlreadyOver   = errors.New("game is already over")
	ErrRoomNotFound      = errors.New("room not found")
	ErrEmptyChatMessage  = errors.New("chat message is empty")
)
