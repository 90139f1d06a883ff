package tafl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyWithKing returns an 11x11 board holding only a King, parked where it
// does not interfere with the squares under test.
func emptyWithKing(at Position) Board {
	b := NewBoard(11)
	b.Cells[at.Row][at.Col] = King
	return b
}

func TestIsLegalMove_Rejections(t *testing.T) {
	for _, size := range []int{3, 5, 7, 11} {
		b := NewBoard(size)
		b.Cells[0][0] = Attacker
		b.Cells[0][2] = Defender
		b.Cells[0][1] = Empty

		assert.Error(t, IsLegalMove(b, Position{0, 0}, Position{1, 1}), "size %d: diagonal", size)
		assert.Error(t, IsLegalMove(b, Position{0, 0}, Position{0, 2}), "size %d: onto occupied", size)
		assert.Error(t, IsLegalMove(b, Position{0, 0}, Position{0, 0}), "size %d: null move", size)
		assert.Error(t, IsLegalMove(b, Position{0, 0}, Position{0, size}), "size %d: out of bounds", size)
		assert.Error(t, IsLegalMove(b, Position{1, 1}, Position{1, 2}), "size %d: empty origin", size)

		// Slide through an occupied intermediate square.
		b.Cells[0][1] = Defender
		b.Cells[0][2] = Empty
		assert.Error(t, IsLegalMove(b, Position{0, 0}, Position{0, 2}), "size %d: blocked path", size)
	}
}

func TestIsLegalMove_AllowsOrthogonalSlides(t *testing.T) {
	assert := assert.New(t)

	b := NewBoard(11)
	b.Cells[5][0] = Attacker

	assert.NoError(IsLegalMove(b, Position{5, 0}, Position{5, 9}))
	assert.NoError(IsLegalMove(b, Position{5, 0}, Position{0, 0}))
	assert.NoError(IsLegalMove(b, Position{5, 0}, Position{5, 1}))
}

func TestIsLegalMove_NoThroneRestriction(t *testing.T) {
	// The reference behavior lets any piece land on or cross the vacated
	// throne, and that is deliberate.
	assert := assert.New(t)

	b := NewBoard(11)
	b.Cells[5][0] = Attacker
	assert.NoError(IsLegalMove(b, Position{5, 0}, Position{5, 5}))
	assert.NoError(IsLegalMove(b, Position{5, 0}, Position{5, 10}))
}

func TestResolveCaptures_FriendlyAnchor(t *testing.T) {
	assert := assert.New(t)

	// Attacker at (3,3) flanks the defender at (3,4) against the attacker
	// at (3,5).
	b := emptyWithKing(Position{9, 9})
	b.Cells[3][3] = Attacker
	b.Cells[3][4] = Defender
	b.Cells[3][5] = Attacker

	captured := ResolveCaptures(b, Position{3, 3})
	assert.Equal([]Position{{3, 4}}, captured)
}

func TestResolveCaptures_NoCaptureWithoutFlank(t *testing.T) {
	assert := assert.New(t)

	// Hostile piece two squares away with an empty square between: no flank,
	// no capture.
	b := emptyWithKing(Position{9, 9})
	b.Cells[3][3] = Attacker
	b.Cells[3][5] = Defender
	assert.Empty(ResolveCaptures(b, Position{3, 3}))

	// Adjacent hostile piece but nothing beyond it.
	b2 := emptyWithKing(Position{9, 9})
	b2.Cells[3][3] = Attacker
	b2.Cells[3][4] = Defender
	assert.Empty(ResolveCaptures(b2, Position{3, 3}))
}

func TestResolveCaptures_ThroneAnchor(t *testing.T) {
	assert := assert.New(t)

	// Empty throne at (5,5) anchors a capture: attacker lands at (5,3),
	// defender at (5,4) is pinned against the throne.
	b := emptyWithKing(Position{9, 9})
	b.Cells[5][3] = Attacker
	b.Cells[5][4] = Defender

	assert.Equal([]Position{{5, 4}}, ResolveCaptures(b, Position{5, 3}))
}

func TestResolveCaptures_CornerAnchor(t *testing.T) {
	assert := assert.New(t)

	b := emptyWithKing(Position{9, 9})
	b.Cells[0][2] = Attacker
	b.Cells[0][1] = Defender

	assert.Equal([]Position{{0, 1}}, ResolveCaptures(b, Position{0, 2}))
}

func TestResolveCaptures_BoardEdgeIsNotAnAnchor(t *testing.T) {
	assert := assert.New(t)

	// Defender against the wall, attacker adjacent on the inside. The wall
	// itself never captures.
	b := emptyWithKing(Position{9, 9})
	b.Cells[1][5] = Attacker
	b.Cells[0][5] = Defender

	assert.Empty(ResolveCaptures(b, Position{1, 5}))
}

func TestResolveCaptures_KingAnchorsDefenderCapture(t *testing.T) {
	assert := assert.New(t)

	// The King counts as a friendly piece for the defender side.
	b := NewBoard(11)
	b.Cells[4][4] = King
	b.Cells[4][5] = Attacker
	b.Cells[4][6] = Defender

	assert.Equal([]Position{{4, 5}}, ResolveCaptures(b, Position{4, 6}))
}

func TestResolveCaptures_KingIsFlankable(t *testing.T) {
	assert := assert.New(t)

	b := NewBoard(11)
	b.Cells[2][2] = Attacker
	b.Cells[2][3] = King
	b.Cells[2][4] = Attacker

	assert.Equal([]Position{{2, 3}}, ResolveCaptures(b, Position{2, 4}))
}

func TestResolveCaptures_SimultaneousDirections(t *testing.T) {
	assert := assert.New(t)

	// One landing square captures in two directions at once.
	b := emptyWithKing(Position{9, 9})
	b.Cells[5][5] = Empty // keep throne clear of the setup
	b.Cells[3][3] = Attacker
	b.Cells[3][4] = Defender
	b.Cells[3][5] = Attacker
	b.Cells[2][3] = Defender
	b.Cells[1][3] = Attacker

	captured := ResolveCaptures(b, Position{3, 3})
	assert.Len(captured, 2)
	assert.Contains(captured, Position{3, 4})
	assert.Contains(captured, Position{2, 3})
}

func TestResolveCaptures_NotRecursive(t *testing.T) {
	assert := assert.New(t)

	// Removing (3,4) would expose (3,6) to a new flank, but captures only
	// resolve from the landing square, in one pass.
	b := emptyWithKing(Position{9, 9})
	b.Cells[3][3] = Attacker
	b.Cells[3][4] = Defender
	b.Cells[3][5] = Attacker
	b.Cells[3][6] = Defender
	b.Cells[3][7] = Attacker

	captured := ResolveCaptures(b, Position{3, 3})
	assert.Equal([]Position{{3, 4}}, captured)
}

func TestEvaluateWinCondition_KingAbsent(t *testing.T) {
	assert := assert.New(t)

	b := NewBoard(11)
	b.Cells[0][5] = Attacker

	outcome := EvaluateWinCondition(b)
	assert.Equal(RoleAttacker, outcome.Winner)
	assert.Equal(WinKingCaptured, outcome.Condition)
}

func TestEvaluateWinCondition_KingEscape(t *testing.T) {
	for _, corner := range []Position{{0, 0}, {0, 10}, {10, 0}, {10, 10}} {
		b := NewBoard(11)
		b.Cells[corner.Row][corner.Col] = King

		outcome := EvaluateWinCondition(b)
		assert.Equal(t, RoleDefender, outcome.Winner, "corner %v", corner)
		assert.Equal(t, WinKingEscape, outcome.Condition, "corner %v", corner)
	}
}

func TestEvaluateWinCondition_KingOnThrone(t *testing.T) {
	assert := assert.New(t)

	// King at (5,5) with Attackers at the four orthogonal neighbors.
	b := NewBoard(11)
	b.Cells[5][5] = King
	b.Cells[4][5] = Attacker
	b.Cells[6][5] = Attacker
	b.Cells[5][4] = Attacker
	b.Cells[5][6] = Attacker

	outcome := EvaluateWinCondition(b)
	assert.Equal(RoleAttacker, outcome.Winner)
	assert.Equal(WinKingCaptured, outcome.Condition)

	// Three attackers and one defender: the King stands.
	b.Cells[5][6] = Defender
	assert.False(EvaluateWinCondition(b).Decided())

	// Three attackers and one empty square: still standing.
	b.Cells[5][6] = Empty
	assert.False(EvaluateWinCondition(b).Decided())
}

func TestEvaluateWinCondition_KingAdjacentToThrone(t *testing.T) {
	assert := assert.New(t)

	// King at (4,5); the throne at (5,5) substitutes for the fourth
	// attacker.
	b := NewBoard(11)
	b.Cells[4][5] = King
	b.Cells[3][5] = Attacker
	b.Cells[4][4] = Attacker
	b.Cells[4][6] = Attacker

	outcome := EvaluateWinCondition(b)
	assert.Equal(RoleAttacker, outcome.Winner)
	assert.Equal(WinKingCaptured, outcome.Condition)

	// One open neighbor and the King lives.
	b.Cells[4][4] = Empty
	assert.False(EvaluateWinCondition(b).Decided())
}

func TestEvaluateWinCondition_KingOnWall(t *testing.T) {
	assert := assert.New(t)

	// King against the top wall; three attackers finish it.
	b := NewBoard(11)
	b.Cells[0][5] = King
	b.Cells[0][4] = Attacker
	b.Cells[0][6] = Attacker
	b.Cells[1][5] = Attacker

	outcome := EvaluateWinCondition(b)
	assert.Equal(RoleAttacker, outcome.Winner)
	assert.Equal(WinKingCaptured, outcome.Condition)

	b.Cells[1][5] = Empty
	assert.False(EvaluateWinCondition(b).Decided())
}

func TestEvaluateWinCondition_KingInOpen(t *testing.T) {
	assert := assert.New(t)

	b := NewBoard(11)
	b.Cells[2][2] = King
	b.Cells[1][2] = Attacker
	b.Cells[3][2] = Attacker
	b.Cells[2][1] = Attacker
	b.Cells[2][3] = Attacker

	outcome := EvaluateWinCondition(b)
	assert.Equal(RoleAttacker, outcome.Winner)
	assert.Equal(WinKingCaptured, outcome.Condition)

	// Three of four is not enough in the open.
	b.Cells[2][3] = Empty
	assert.False(EvaluateWinCondition(b).Decided())
}

func TestEvaluateWinCondition_GameContinues(t *testing.T) {
	assert := assert.New(t)
	assert.False(EvaluateWinCondition(NewInitialBoard()).Decided())
}

func TestApplyMove_SlideWithCapture(t *testing.T) {
	assert := assert.New(t)

	// Attacker slides from (0,5) to (4,5); the Defender on the throne at
	// (5,5) is flanked against the Attacker at (6,5).
	b := emptyWithKing(Position{9, 9})
	b.Cells[0][5] = Attacker
	b.Cells[5][5] = Defender
	b.Cells[6][5] = Attacker

	next, move, err := ApplyMove(b, Position{0, 5}, Position{4, 5})
	assert.NoError(err)
	assert.Equal(Attacker, move.Piece)
	assert.Equal([]Position{{5, 5}}, move.Captured)
	assert.Equal(Empty, next.At(Position{5, 5}))
	assert.Equal(Attacker, next.At(Position{4, 5}))
	assert.Equal(Empty, next.At(Position{0, 5}))

	// The input board is untouched.
	assert.Equal(Attacker, b.At(Position{0, 5}))
	assert.Equal(Defender, b.At(Position{5, 5}))
}

func TestApplyMove_RejectsIllegal(t *testing.T) {
	assert := assert.New(t)

	b := NewInitialBoard()
	_, _, err := ApplyMove(b, Position{0, 3}, Position{1, 4})
	assert.Error(err)
}

func TestReplay_RoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	initial := NewInitialBoard()
	board := initial
	var history []Move

	// A short scripted opening, alternating sides.
	script := []struct{ from, to Position }{
		{Position{0, 3}, Position{2, 3}},   // attacker
		{Position{3, 5}, Position{3, 2}},   // defender
		{Position{2, 3}, Position{2, 2}},   // attacker
		{Position{5, 3}, Position{2, 3}},   // defender
		{Position{1, 5}, Position{1, 3}},   // attacker
		{Position{4, 4}, Position{1, 4}},   // defender
		{Position{10, 3}, Position{8, 3}},  // attacker
		{Position{5, 4}, Position{5, 3}},   // defender
	}
	for _, step := range script {
		next, move, err := ApplyMove(board, step.from, step.to)
		require.NoError(err, "scripted move %v -> %v", step.from, step.to)
		board = next
		history = append(history, move)
	}

	replayed, err := Replay(initial, history)
	require.NoError(err)
	assert.Equal(EncodeBoard(board), EncodeBoard(replayed))
}

func TestReplay_FailsOnCorruptHistory(t *testing.T) {
	assert := assert.New(t)

	initial := NewInitialBoard()
	bad := []Move{{From: Position{0, 3}, To: Position{5, 9}}} // diagonal
	_, err := Replay(initial, bad)
	assert.Error(err)
}

func TestLegalMoves(t *testing.T) {
	assert := assert.New(t)

	b := NewBoard(5)
	b.Cells[2][2] = King
	b.Cells[0][0] = Attacker

	kingMoves := LegalMoves(b, RoleDefender)
	// From the center of an empty 5x5 board the King reaches 8 squares.
	assert.Len(kingMoves, 8)
	for _, m := range kingMoves {
		assert.Equal(King, m.Piece)
		assert.NoError(IsLegalMove(b, m.From, m.To))
	}

	attackerMoves := LegalMoves(b, RoleAttacker)
	assert.Len(attackerMoves, 8)
}
