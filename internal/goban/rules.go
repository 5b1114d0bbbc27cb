package goban

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goban-live/goban-backend/internal/apperror"
)

// Group is a maximal connected cluster of same-colored stones together
// with its liberties. Groups are derived on demand and never cached:
// captures invalidate liberty sets, so recomputing is the only safe
// default.
type Group struct {
	Stones    []Coordinate
	Liberties map[Coordinate]struct{}
	Player    int
}

// MoveResult is the outcome of a legal move.
type MoveResult struct {
	NewBoard      Board
	CapturedCount int
	NextKoPoint   *Coordinate
}

// GroupAt finds the group containing the stone at (x, y) via
// breadth-first search over orthogonal neighbors. It returns nil when
// the seed is empty or off the board. Every cell is visited at most
// once per call.
func GroupAt(board Board, x, y int) *Group {
	if !onBoard(x, y) || board[y][x] == Empty {
		return nil
	}

	player := board[y][x]
	group := &Group{
		Liberties: make(map[Coordinate]struct{}),
		Player:    player,
	}

	queue := []Coordinate{{X: x, Y: y}}
	visited := map[Coordinate]struct{}{{X: x, Y: y}: {}}

	for len(queue) > 0 {
		stone := queue[0]
		queue = queue[1:]

		group.Stones = append(group.Stones, stone)

		for _, neighbor := range neighborsOf(stone) {
			if !onBoard(neighbor.X, neighbor.Y) {
				continue
			}

			switch board[neighbor.Y][neighbor.X] {
			case Empty:
				group.Liberties[neighbor] = struct{}{}
			case player:
				if _, seen := visited[neighbor]; !seen {
					visited[neighbor] = struct{}{}
					queue = append(queue, neighbor)
				}
			}
		}
	}

	return group
}

// ApplyMove validates a stone placement and computes the resulting
// position. It is pure: the input board is never modified, and the
// caller is responsible for rotating the active player and persisting.
//
// boardBeforeOpponentMove, when non-nil, is the position as it stood
// before the opponent's last move; recreating it exactly after a
// single-stone capture is rejected as a repetition. This deliberately
// checks only the one retained snapshot, not full game history.
func ApplyMove(board Board, x, y, player int, koPoint *Coordinate, boardBeforeOpponentMove Board) (*MoveResult, error) {
	if !onBoard(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d)", apperror.ErrOutOfBounds, x, y)
	}

	if board[y][x] != Empty {
		return nil, fmt.Errorf("%w: (%d,%d)", apperror.ErrOccupied, x, y)
	}

	if koPoint != nil && koPoint.X == x && koPoint.Y == y {
		return nil, apperror.ErrKoViolation
	}

	next := board.Clone()
	next[y][x] = player

	opponent := Opponent(player)
	capturedCount := 0

	// Coordinate of the captured stone when exactly one was taken;
	// feeds both the ko point and the repetition check.
	var singleCapture *Coordinate

	checkedGroups := make(map[string]struct{})

	for _, neighbor := range neighborsOf(Coordinate{X: x, Y: y}) {
		if !onBoard(neighbor.X, neighbor.Y) || next[neighbor.Y][neighbor.X] != opponent {
			continue
		}

		group := GroupAt(next, neighbor.X, neighbor.Y)
		if group == nil || len(group.Stones) == 0 {
			continue
		}

		identity := groupIdentity(group)
		if _, checked := checkedGroups[identity]; checked {
			continue
		}
		checkedGroups[identity] = struct{}{}

		if len(group.Liberties) != 0 {
			continue
		}

		if len(group.Stones) == 1 {
			stone := group.Stones[0]
			singleCapture = &Coordinate{X: stone.X, Y: stone.Y}
		}

		for _, stone := range group.Stones {
			next[stone.Y][stone.X] = Empty
			capturedCount++
		}
	}

	if capturedCount == 1 && singleCapture != nil && boardBeforeOpponentMove != nil {
		if next.Equal(boardBeforeOpponentMove) {
			return nil, fmt.Errorf("%w: move recreates the previous position", apperror.ErrKoViolation)
		}
	}

	var nextKoPoint *Coordinate
	if capturedCount == 1 && singleCapture != nil {
		nextKoPoint = singleCapture
	}

	ownGroup := GroupAt(next, x, y)
	if ownGroup != nil && len(ownGroup.Liberties) == 0 && capturedCount == 0 {
		return nil, apperror.ErrSuicide
	}

	return &MoveResult{
		NewBoard:      next,
		CapturedCount: capturedCount,
		NextKoPoint:   nextKoPoint,
	}, nil
}

// neighborsOf lists the four orthogonal neighbors: up, down, left,
// right. Bounds are checked by the caller.
func neighborsOf(c Coordinate) [4]Coordinate {
	return [4]Coordinate{
		{X: c.X, Y: c.Y - 1},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
	}
}

// groupIdentity is a canonical key for a group, derived from its sorted
// stone list. Two scans that reach the same group produce the same key.
func groupIdentity(group *Group) string {
	keys := make([]string, 0, len(group.Stones))
	for _, stone := range group.Stones {
		keys = append(keys, fmt.Sprintf("%d,%d", stone.Y, stone.X))
	}
	sort.Strings(keys)

	return strings.Join(keys, ";")
}
