// Package game tracks one analysis game on the user's side of the pipe:
// the starting position, the moves played, and board snapshots for undo.
package game

import (
	"fmt"

	"xiangqi/internal/board"
	"xiangqi/internal/core"
	"xiangqi/internal/ucci"
)

// Snapshot is the position after one move.
type Snapshot struct {
	FEN          string     // board state at this point
	PreviousMove string     // move that created this position (empty for initial)
	NextTurn     core.Color // whose turn it is at this position
}

// MoveResult carries what the engine reported with its move.
type MoveResult struct {
	Move   string
	Player core.Color
	Score  int
	Mate   int
	IsMate bool
	Depth  int
}

type Game struct {
	initialFEN string
	snapshots  []Snapshot
	playerSide core.Color // the human's color
	lastResult *MoveResult
}

// New starts a game from a FEN (empty means the standard layout); the
// human plays side.
func New(initialFEN string, side core.Color) (*Game, error) {
	if initialFEN == "" {
		initialFEN = board.StartingFEN
	}
	b, err := board.ParseFEN(initialFEN)
	if err != nil {
		return nil, err
	}
	return &Game{
		initialFEN: initialFEN,
		playerSide: side,
		snapshots: []Snapshot{{
			FEN:      b.FEN(),
			NextTurn: b.Turn(),
		}},
	}, nil
}

// Apply plays one coordinate move on top of the current position.
func (g *Game) Apply(move string) error {
	b, err := board.ParseFEN(g.CurrentFEN())
	if err != nil {
		return err
	}
	if err := b.ApplyMove(move); err != nil {
		return err
	}
	g.snapshots = append(g.snapshots, Snapshot{
		FEN:          b.FEN(),
		PreviousMove: move,
		NextTurn:     b.Turn(),
	})
	return nil
}

// Undo removes the last count moves.
func (g *Game) Undo(count int) error {
	if count < 1 {
		return fmt.Errorf("invalid undo count: %d", count)
	}
	available := len(g.snapshots) - 1
	if available < count {
		return fmt.Errorf("cannot undo %d moves: only %d played", count, available)
	}
	g.snapshots = g.snapshots[:len(g.snapshots)-count]
	g.lastResult = nil
	return nil
}

// Position returns the engine-facing position value: the initial FEN plus
// the moves applied since.
func (g *Game) Position() ucci.Position {
	return ucci.Position{FEN: g.initialFEN, Moves: g.Moves()}
}

// Moves lists the moves played so far.
func (g *Game) Moves() []string {
	moves := make([]string, 0, len(g.snapshots)-1)
	for _, s := range g.snapshots[1:] {
		if s.PreviousMove != "" {
			moves = append(moves, s.PreviousMove)
		}
	}
	return moves
}

func (g *Game) CurrentFEN() string {
	return g.snapshots[len(g.snapshots)-1].FEN
}

func (g *Game) InitialFEN() string {
	return g.initialFEN
}

func (g *Game) NextTurn() core.Color {
	return g.snapshots[len(g.snapshots)-1].NextTurn
}

// PlayerSide is the human's color.
func (g *Game) PlayerSide() core.Color {
	return g.playerSide
}

// EngineTurn reports whether the engine is to move.
func (g *Game) EngineTurn() bool {
	return g.NextTurn() != g.playerSide
}

func (g *Game) SetLastResult(r *MoveResult) {
	g.lastResult = r
}

func (g *Game) LastResult() *MoveResult {
	return g.lastResult
}
