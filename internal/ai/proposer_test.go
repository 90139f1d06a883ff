package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tafl-server/internal/tafl"
)

func TestGreedy_ProposesLegalMove(t *testing.T) {
	assert := assert.New(t)

	g := NewGreedy(1)
	board := tafl.NewInitialBoard()

	for _, role := range []tafl.Role{tafl.RoleAttacker, tafl.RoleDefender} {
		mv := g.ProposeMove(board, role, time.Second)
		require.NotNil(t, mv)
		assert.NoError(tafl.IsLegalMove(board, mv.From, mv.To))
		assert.Equal(role, mv.Piece.Side())
	}
}

func TestGreedy_PrefersWinningMove(t *testing.T) {
	assert := assert.New(t)

	// King one clear slide from the corner.
	board := tafl.NewBoard(11)
	board.Cells[0][5] = tafl.King
	board.Cells[9][9] = tafl.Attacker

	mv := NewGreedy(7).ProposeMove(board, tafl.RoleDefender, time.Second)
	require.NotNil(t, mv)
	assert.Equal(tafl.King, mv.Piece)

	next, _, err := tafl.ApplyMove(board, mv.From, mv.To)
	require.NoError(t, err)
	assert.Equal(tafl.RoleDefender, tafl.EvaluateWinCondition(next).Winner)
}

func TestGreedy_PrefersCapture(t *testing.T) {
	assert := assert.New(t)

	// Only one attacker move captures: sliding to (3,3) flanks the defender
	// at (3,4) against the attacker at (3,5). Box the attacker in so its
	// alternatives are few and capture-free, and keep the king far away so
	// no winning move exists.
	board := tafl.NewBoard(11)
	board.Cells[0][3] = tafl.Attacker
	board.Cells[3][4] = tafl.Defender
	board.Cells[3][5] = tafl.Attacker
	board.Cells[9][0] = tafl.King

	mv := NewGreedy(3).ProposeMove(board, tafl.RoleAttacker, time.Second)
	require.NotNil(t, mv)

	_, applied, err := tafl.ApplyMove(board, mv.From, mv.To)
	require.NoError(t, err)
	assert.NotEmpty(applied.Captured)
}

func TestGreedy_NoMoves(t *testing.T) {
	// A lone boxed-in defender side has nothing to play.
	board := tafl.NewBoard(3)
	board.Cells[0][0] = tafl.King
	board.Cells[0][1] = tafl.Attacker
	board.Cells[1][0] = tafl.Attacker

	mv := NewGreedy(5).ProposeMove(board, tafl.RoleDefender, time.Second)
	assert.Nil(t, mv)
}
