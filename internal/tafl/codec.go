package tafl

import (
	"fmt"
	"strings"
)

// The persisted board representation is one string per row, one rune per
// square: 'K' King, 'D' Defender, 'A' Attacker, '.' empty. Compact enough
// for a text column and trivially diffable in psql.

const (
	runeKing     = 'K'
	runeDefender = 'D'
	runeAttacker = 'A'
	runeEmpty    = '.'
)

// EncodeBoard serializes a board into its row-string form.
func EncodeBoard(b Board) []string {
	rows := make([]string, b.Size)
	for r := range b.Cells {
		var sb strings.Builder
		sb.Grow(b.Size)
		for _, piece := range b.Cells[r] {
			switch piece {
			case King:
				sb.WriteRune(runeKing)
			case Defender:
				sb.WriteRune(runeDefender)
			case Attacker:
				sb.WriteRune(runeAttacker)
			default:
				sb.WriteRune(runeEmpty)
			}
		}
		rows[r] = sb.String()
	}
	return rows
}

// DecodeBoard parses the row-string form back into a board. The input must
// be square and contain only the four known runes.
func DecodeBoard(rows []string) (Board, error) {
	size := len(rows)
	if size == 0 {
		return Board{}, fmt.Errorf("empty board")
	}

	b := NewBoard(size)
	for r, row := range rows {
		if len(row) != size {
			return Board{}, fmt.Errorf("row %d: got %d squares, want %d", r, len(row), size)
		}
		for c, ch := range row {
			switch ch {
			case runeKing:
				b.Cells[r][c] = King
			case runeDefender:
				b.Cells[r][c] = Defender
			case runeAttacker:
				b.Cells[r][c] = Attacker
			case runeEmpty:
				// Already Empty.
			default:
				return Board{}, fmt.Errorf("row %d col %d: unknown piece %q", r, c, ch)
			}
		}
	}
	return b, nil
}
