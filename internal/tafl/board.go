package tafl

import "time"

// BoardSize is the standard board dimension. The rules themselves work for
// any square board of size >= 3; only the initial layout is fixed at 11.
const BoardSize = 11

type Piece string

const (
	Empty    Piece = ""
	King     Piece = "king"
	Defender Piece = "defender"
	Attacker Piece = "attacker"
)

type Role string

const (
	RoleAttacker Role = "attacker"
	RoleDefender Role = "defender"
)

// Side returns the role a piece belongs to. The King fights for the defender
// side. Empty squares have no side.
func (p Piece) Side() Role {
	switch p {
	case Attacker:
		return RoleAttacker
	case Defender, King:
		return RoleDefender
	}
	return ""
}

// Opponent returns the other role.
func (r Role) Opponent() Role {
	if r == RoleAttacker {
		return RoleDefender
	}
	return RoleAttacker
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Move struct {
	From      Position   `json:"from"`
	To        Position   `json:"to"`
	Piece     Piece      `json:"piece"`
	Captured  []Position `json:"captured"`
	Timestamp time.Time  `json:"timestamp"`
}

type Board struct {
	Size  int       `json:"size"`
	Cells [][]Piece `json:"cells"`
}

func NewBoard(size int) Board {
	cells := make([][]Piece, size)
	for i := range cells {
		cells[i] = make([]Piece, size)
	}
	return Board{Size: size, Cells: cells}
}

// NewInitialBoard returns the standard 11x11 starting position: the King on
// the throne, twelve Defenders in a diamond around it, and twenty-four
// Attackers in four groups against the walls.
func NewInitialBoard() Board {
	b := NewBoard(BoardSize)
	mid := BoardSize / 2

	// Attacker camps on each wall.
	for c := mid - 2; c <= mid+2; c++ {
		b.Cells[0][c] = Attacker
		b.Cells[BoardSize-1][c] = Attacker
		b.Cells[c][0] = Attacker
		b.Cells[c][BoardSize-1] = Attacker
	}
	b.Cells[1][mid] = Attacker
	b.Cells[BoardSize-2][mid] = Attacker
	b.Cells[mid][1] = Attacker
	b.Cells[mid][BoardSize-2] = Attacker

	// Defender diamond.
	defenders := []Position{
		{mid - 2, mid},
		{mid - 1, mid - 1}, {mid - 1, mid}, {mid - 1, mid + 1},
		{mid, mid - 2}, {mid, mid - 1}, {mid, mid + 1}, {mid, mid + 2},
		{mid + 1, mid - 1}, {mid + 1, mid}, {mid + 1, mid + 1},
		{mid + 2, mid},
	}
	for _, p := range defenders {
		b.Cells[p.Row][p.Col] = Defender
	}

	b.Cells[mid][mid] = King
	return b
}

func (b Board) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < b.Size && p.Col >= 0 && p.Col < b.Size
}

func (b Board) At(p Position) Piece {
	return b.Cells[p.Row][p.Col]
}

func (b Board) Throne() Position {
	return Position{b.Size / 2, b.Size / 2}
}

func (b Board) IsThrone(p Position) bool {
	return p == b.Throne()
}

func (b Board) IsCorner(p Position) bool {
	last := b.Size - 1
	return (p.Row == 0 || p.Row == last) && (p.Col == 0 || p.Col == last)
}

func (b Board) IsEdge(p Position) bool {
	last := b.Size - 1
	return p.Row == 0 || p.Row == last || p.Col == 0 || p.Col == last
}

func (b Board) Clone() Board {
	c := NewBoard(b.Size)
	for i := range b.Cells {
		copy(c.Cells[i], b.Cells[i])
	}
	return c
}

// FindKing returns the King's position, or ok=false if it has been captured.
func (b Board) FindKing() (Position, bool) {
	for r := range b.Cells {
		for c, piece := range b.Cells[r] {
			if piece == King {
				return Position{r, c}, true
			}
		}
	}
	return Position{}, false
}
