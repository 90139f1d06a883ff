// Package ai holds the move-proposal collaborator for AI-controlled seats.
// The coordinator treats a proposal exactly like a player's make_move
// payload; a stronger engine only needs to implement Proposer.
package ai

import (
	"math/rand"
	"time"

	"tafl-server/internal/tafl"
)

// Proposer suggests a move for one side of a board, within a time budget.
// A nil move means the side has nothing to play.
type Proposer interface {
	ProposeMove(board tafl.Board, role tafl.Role, timeLimit time.Duration) *tafl.Move
}

// Greedy is the baseline proposer: it prefers an immediately winning move,
// then the move capturing the most pieces, then a uniformly random legal
// move. No search beyond one ply.
type Greedy struct {
	rng *rand.Rand
}

func NewGreedy(seed int64) *Greedy {
	return &Greedy{rng: rand.New(rand.NewSource(seed))}
}

func (g *Greedy) ProposeMove(board tafl.Board, role tafl.Role, timeLimit time.Duration) *tafl.Move {
	deadline := time.Now().Add(timeLimit)

	moves := tafl.LegalMoves(board, role)
	if len(moves) == 0 {
		return nil
	}
	g.rng.Shuffle(len(moves), func(i, j int) {
		moves[i], moves[j] = moves[j], moves[i]
	})

	best := moves[0]
	bestCaptures := -1
	for _, m := range moves {
		next, applied, err := tafl.ApplyMove(board, m.From, m.To)
		if err != nil {
			continue
		}
		if outcome := tafl.EvaluateWinCondition(next); outcome.Winner == role {
			return &applied
		}
		if len(applied.Captured) > bestCaptures {
			best = m
			bestCaptures = len(applied.Captured)
		}
		if time.Now().After(deadline) {
			break
		}
	}
	return &tafl.Move{From: best.From, To: best.To, Piece: best.Piece}
}
