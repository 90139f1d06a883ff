package tafl

import (
	"errors"
	"fmt"
	"time"
)

// Win conditions reported by EvaluateWinCondition and recorded on completed
// games.
const (
	WinKingCaptured = "king_captured"
	WinKingEscape   = "king_escape"
	WinResignation  = "resignation"
)

// Outcome is the result of evaluating a board. The zero value means the game
// continues.
type Outcome struct {
	Winner    Role   `json:"winner"`
	Condition string `json:"condition"`
}

func (o Outcome) Decided() bool {
	return o.Winner != ""
}

var orthogonal = [4]Position{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// IsLegalMove checks a single move against the movement rules: a piece must
// exist at the origin, the destination must be a different, empty, in-bounds
// square, the move must be strictly horizontal or vertical, and every square
// between origin and destination must be empty. Pieces slide; they do not
// jump. There is no restriction on which squares a piece may occupy.
func IsLegalMove(b Board, from, to Position) error {
	if !b.InBounds(from) || !b.InBounds(to) {
		return errors.New("position out of bounds")
	}
	if b.At(from) == Empty {
		return errors.New("no piece at origin")
	}
	if from == to {
		return errors.New("piece must move")
	}
	if b.At(to) != Empty {
		return errors.New("destination is occupied")
	}
	if from.Row != to.Row && from.Col != to.Col {
		return errors.New("pieces move only horizontally or vertically")
	}

	step := Position{sign(to.Row - from.Row), sign(to.Col - from.Col)}
	for p := (Position{from.Row + step.Row, from.Col + step.Col}); p != to; p = (Position{p.Row + step.Row, p.Col + step.Col}) {
		if b.At(p) != Empty {
			return errors.New("path is blocked")
		}
	}
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// ResolveCaptures applies the custodian rule from the square a piece just
// landed on: for each orthogonal direction, an adjacent hostile piece is
// captured when the square beyond it holds a friendly piece, the throne, or
// a corner. All four directions resolve simultaneously from the single
// landing square; captures never chain.
func ResolveCaptures(b Board, landed Position) []Position {
	mover := b.At(landed)
	if mover == Empty {
		return nil
	}

	var captured []Position
	for _, d := range orthogonal {
		adj := Position{landed.Row + d.Row, landed.Col + d.Col}
		if !b.InBounds(adj) {
			continue
		}
		victim := b.At(adj)
		if victim == Empty || victim.Side() == mover.Side() {
			continue
		}
		beyond := Position{adj.Row + d.Row, adj.Col + d.Col}
		if !b.InBounds(beyond) {
			continue
		}
		if b.IsThrone(beyond) || b.IsCorner(beyond) || b.At(beyond).Side() == mover.Side() {
			captured = append(captured, adj)
		}
	}
	return captured
}

// EvaluateWinCondition inspects a board for a decided game. The capture
// threshold around the King depends on where it stands: on the throne or in
// the open every orthogonal neighbor must be an Attacker; next to the throne
// the throne square itself counts against the King; against a wall the wall
// substitutes for the fourth side.
func EvaluateWinCondition(b Board) Outcome {
	king, ok := b.FindKing()
	if !ok {
		return Outcome{Winner: RoleAttacker, Condition: WinKingCaptured}
	}
	if b.IsCorner(king) {
		return Outcome{Winner: RoleDefender, Condition: WinKingEscape}
	}
	if kingSurrounded(b, king) {
		return Outcome{Winner: RoleAttacker, Condition: WinKingCaptured}
	}
	return Outcome{}
}

func kingSurrounded(b Board, king Position) bool {
	throne := b.Throne()
	adjacentToThrone := false
	for _, d := range orthogonal {
		if (Position{king.Row + d.Row, king.Col + d.Col}) == throne {
			adjacentToThrone = true
			break
		}
	}

	switch {
	case king == throne:
		return countAttackerNeighbors(b, king) == 4
	case adjacentToThrone:
		for _, d := range orthogonal {
			n := Position{king.Row + d.Row, king.Col + d.Col}
			if !b.InBounds(n) {
				continue
			}
			if n == throne || b.At(n) == Attacker {
				continue
			}
			return false
		}
		return true
	case b.IsEdge(king):
		return countAttackerNeighbors(b, king) >= 3
	default:
		return countAttackerNeighbors(b, king) == 4
	}
}

func countAttackerNeighbors(b Board, p Position) int {
	count := 0
	for _, d := range orthogonal {
		n := Position{p.Row + d.Row, p.Col + d.Col}
		if b.InBounds(n) && b.At(n) == Attacker {
			count++
		}
	}
	return count
}

// ApplyMove validates and executes a move on a copy of the board, resolving
// captures. The input board is never mutated. The returned Move records the
// derived captures.
func ApplyMove(b Board, from, to Position) (Board, Move, error) {
	if err := IsLegalMove(b, from, to); err != nil {
		return Board{}, Move{}, err
	}

	next := b.Clone()
	piece := next.At(from)
	next.Cells[from.Row][from.Col] = Empty
	next.Cells[to.Row][to.Col] = piece

	captured := ResolveCaptures(next, to)
	for _, p := range captured {
		next.Cells[p.Row][p.Col] = Empty
	}

	move := Move{
		From:      from,
		To:        to,
		Piece:     piece,
		Captured:  captured,
		Timestamp: time.Now().UTC(),
	}
	return next, move, nil
}

// Replay reapplies a recorded move history to a starting board and returns
// the final position. A history that was produced by ApplyMove always
// replays cleanly; anything else fails on the first illegal step.
func Replay(initial Board, history []Move) (Board, error) {
	b := initial
	for i, m := range history {
		next, _, err := ApplyMove(b, m.From, m.To)
		if err != nil {
			return Board{}, fmt.Errorf("move %d (%d,%d)->(%d,%d): %w",
				i, m.From.Row, m.From.Col, m.To.Row, m.To.Col, err)
		}
		b = next
	}
	return b, nil
}

// LegalMoves enumerates every legal move for one side. Used by the baseline
// AI proposer; not on the hot path for move validation.
func LegalMoves(b Board, role Role) []Move {
	var moves []Move
	for r := range b.Cells {
		for c, piece := range b.Cells[r] {
			if piece == Empty || piece.Side() != role {
				continue
			}
			from := Position{r, c}
			for _, d := range orthogonal {
				for p := (Position{r + d.Row, c + d.Col}); b.InBounds(p) && b.At(p) == Empty; p = (Position{p.Row + d.Row, p.Col + d.Col}) {
					moves = append(moves, Move{From: from, To: p, Piece: piece})
				}
			}
		}
	}
	return moves
}
