package goban

// BoardSize is fixed: the server only hosts 13x13 games.
const BoardSize = 13

// Cell contents.
const (
	Empty       = 0
	PlayerBlack = 1
	PlayerWhite = 2
)

// Board is a square grid of cells, indexed board[y][x]. Callers treat
// boards as immutable values: every mutation goes through Clone.
type Board [][]int

// Coordinate is a 0-indexed point on the board.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewBoard returns an empty BoardSize x BoardSize board.
func NewBoard() Board {
	board := make(Board, BoardSize)
	for y := range board {
		board[y] = make([]int, BoardSize)
	}
	return board
}

// Clone returns a deep copy of the board.
func (that Board) Clone() Board {
	if that == nil {
		return nil
	}

	clone := make(Board, len(that))
	for y, row := range that {
		clone[y] = make([]int, len(row))
		copy(clone[y], row)
	}
	return clone
}

// Equal reports whether two boards hold exactly the same position.
func (that Board) Equal(other Board) bool {
	if that == nil || other == nil {
		return false
	}

	if len(that) != len(other) {
		return false
	}

	for y := range that {
		if len(that[y]) != len(other[y]) {
			return false
		}

		for x := range that[y] {
			if that[y][x] != other[y][x] {
				return false
			}
		}
	}

	return true
}

// Opponent returns the other player's color.
func Opponent(player int) int {
	if player == PlayerBlack {
		return PlayerWhite
	}
	return PlayerBlack
}

func onBoard(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}
