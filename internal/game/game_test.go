package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xiangqi/internal/board"
	"xiangqi/internal/core"
)

func TestNewDefaultsToStartingPosition(t *testing.T) {
	g, err := New("", core.ColorRed)
	require.NoError(t, err)

	assert.Equal(t, board.StartingFEN, g.InitialFEN())
	assert.Equal(t, board.StartingFEN, g.CurrentFEN())
	assert.Equal(t, core.ColorRed, g.NextTurn())
	assert.Equal(t, core.ColorRed, g.PlayerSide())
	assert.False(t, g.EngineTurn())
	assert.Empty(t, g.Moves())
}

func TestNewRejectsBadFEN(t *testing.T) {
	_, err := New("garbage", core.ColorRed)
	assert.Error(t, err)
}

func TestApplyBuildsPositionForEngine(t *testing.T) {
	g, err := New("", core.ColorBlack)
	require.NoError(t, err)
	assert.True(t, g.EngineTurn(), "red moves first, human plays black")

	require.NoError(t, g.Apply("h2e2"))
	require.NoError(t, g.Apply("h9g7"))

	pos := g.Position()
	assert.Equal(t, board.StartingFEN, pos.FEN)
	assert.Equal(t, []string{"h2e2", "h9g7"}, pos.Moves)
	assert.Equal(t, core.ColorRed, g.NextTurn())
	assert.True(t, g.EngineTurn())
}

func TestApplyRejectsImpossibleMove(t *testing.T) {
	g, err := New("", core.ColorRed)
	require.NoError(t, err)

	require.Error(t, g.Apply("e5e6"), "no piece on e5")
	assert.Empty(t, g.Moves(), "failed move leaves no trace")
}

func TestUndo(t *testing.T) {
	g, err := New("", core.ColorRed)
	require.NoError(t, err)

	require.NoError(t, g.Apply("h2e2"))
	require.NoError(t, g.Apply("h9g7"))
	g.SetLastResult(&MoveResult{Move: "h9g7", Player: core.ColorBlack})

	require.NoError(t, g.Undo(2))
	assert.Empty(t, g.Moves())
	assert.Equal(t, board.StartingFEN, g.CurrentFEN())
	assert.Nil(t, g.LastResult(), "undo invalidates the last engine result")

	assert.Error(t, g.Undo(1), "nothing left to undo")
	assert.Error(t, g.Undo(0))
}
