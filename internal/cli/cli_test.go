package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xiangqi/internal/board"
	"xiangqi/internal/ucci"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		wantType CommandType
		wantArgs []string
	}{
		{"new eleeye black", CmdNew, []string{"eleeye", "black"}},
		{"move h2e2", CmdMove, []string{"h2e2"}},
		{"h2e2", CmdMove, []string{"h2e2"}}, // bare move shorthand
		{"go depth 12", CmdGo, []string{"depth", "12"}},
		{"stop", CmdStop, nil},
		{"board", CmdBoard, nil},
		{"undo 2", CmdUndo, []string{"2"}},
		{"engines", CmdEngines, nil},
		{"options", CmdOptions, nil},
		{"set hashsize 128", CmdSet, []string{"hashsize", "128"}},
		{"history", CmdHistory, nil},
		{"color wood", CmdColor, []string{"wood"}},
		{"verbose", CmdVerbose, nil},
		{"help", CmdHelp, nil},
		{"?", CmdHelp, nil},
		{"QUIT", CmdQuit, nil},
		{"exit", CmdQuit, nil},
		{"", CmdNone, nil},
		{"frobnicate", CmdNone, nil},
	}
	for _, tt := range tests {
		cmd := Parse(tt.input)
		assert.Equal(t, tt.wantType, cmd.Type, "input %q", tt.input)
		if len(tt.wantArgs) > 0 {
			assert.Equal(t, tt.wantArgs, cmd.Args, "input %q", tt.input)
		}
	}
}

func TestParseGoArgs(t *testing.T) {
	params, err := ParseGoArgs(nil, 3000)
	require.NoError(t, err)
	assert.Equal(t, ucci.SearchParams{MoveTimeMs: 3000}, params)

	params, err = ParseGoArgs([]string{"depth", "10"}, 3000)
	require.NoError(t, err)
	assert.Equal(t, ucci.SearchParams{Depth: 10}, params)

	params, err = ParseGoArgs([]string{"infinite"}, 3000)
	require.NoError(t, err)
	assert.True(t, params.Infinite)

	_, err = ParseGoArgs([]string{"depth", "soon"}, 3000)
	assert.Error(t, err)

	_, err = ParseGoArgs([]string{"sideways"}, 3000)
	assert.Error(t, err, "arguments that select nothing are a usage error")
}

func TestSetTheme(t *testing.T) {
	c := New(&bytes.Buffer{})
	require.NoError(t, c.SetTheme(ThemeWood))
	assert.Error(t, c.SetTheme("plaid"))
}

func TestDisplayBoardPlain(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.DisplayBoard(board.New())
	out := buf.String()

	assert.Contains(t, out, "a b c d e f g h i")
	assert.Contains(t, out, "~ ~ ~ ~ ~ ~ ~ ~ ~", "river between the halves")
	assert.Contains(t, out, "r n b a k a b n r", "black back rank")
	assert.Contains(t, out, "R N B A K A B N R", "red back rank")
	assert.NotContains(t, out, "\033[", "no ANSI codes with the theme off")
}

func TestDisplayBoardThemed(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	require.NoError(t, c.SetTheme(ThemeWood))

	c.DisplayBoard(board.New())
	assert.Contains(t, buf.String(), "\033[")
}

func TestShowSearchInfoRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	info := ucci.SearchInfo{Depth: 9, Score: 42, PV: []string{"h2e2", "h9g7"}}
	c.ShowSearchInfo(info)
	assert.Empty(t, buf.String(), "quiet by default")

	c.ToggleVerbose()
	c.ShowSearchInfo(info)
	out := buf.String()
	assert.Contains(t, out, "depth 9")
	assert.Contains(t, out, "+42")
	assert.Contains(t, out, "pv h2e2 h9g7")

	buf.Reset()
	c.ShowSearchInfo(ucci.SearchInfo{Depth: 20, Mate: 3, HasMate: true})
	assert.Contains(t, buf.String(), "mate 3")
}

func TestShowBestMove(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.ShowBestMove(ucci.BestMove{Move: "h2e2"}, nil)
	assert.Contains(t, buf.String(), "Engine plays h2e2")

	buf.Reset()
	c.ShowBestMove(ucci.BestMove{None: true}, nil)
	assert.Contains(t, buf.String(), "no move")

	buf.Reset()
	c.ShowBestMove(ucci.BestMove{Move: "h2e2", Resign: true}, nil)
	assert.Contains(t, buf.String(), "resigns")

	buf.Reset()
	c.ShowBestMove(ucci.BestMove{Move: "h2e2", Draw: true}, nil)
	assert.Contains(t, buf.String(), "draw")
}

func TestShowOptions(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.ShowOptions(nil)
	assert.Contains(t, buf.String(), "no options")

	buf.Reset()
	c.ShowOptions([]ucci.EngineOption{
		{Name: "hashsize", Type: ucci.OptionSpin, Min: 16, Max: 1024, Default: "64"},
		{Name: "style", Type: ucci.OptionCombo, Vars: []string{"solid", "risky"}, Default: "solid"},
	})
	out := buf.String()
	assert.Contains(t, out, "hashsize")
	assert.Contains(t, out, "[16..1024]")
	assert.Contains(t, out, "{solid, risky}")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
