package ucci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineSentinels(t *testing.T) {
	msg, err := ParseLine("ucciok")
	require.NoError(t, err)
	assert.IsType(t, UCCIOk{}, msg)

	msg, err = ParseLine("readyok")
	require.NoError(t, err)
	assert.IsType(t, ReadyOk{}, msg)

	msg, err = ParseLine("bye")
	require.NoError(t, err)
	assert.IsType(t, Bye{}, msg)
}

func TestParseLineID(t *testing.T) {
	msg, err := ParseLine("id name ElephantEye 3.31")
	require.NoError(t, err)
	id, ok := msg.(ID)
	require.True(t, ok)
	assert.Equal(t, "name", id.Field)
	assert.Equal(t, "ElephantEye 3.31", id.Value)

	_, err = ParseLine("id name")
	assert.Error(t, err)
}

func TestParseLineOption(t *testing.T) {
	tests := []struct {
		name string
		line string
		want EngineOption
	}{
		{
			name: "spin with range",
			line: "option hashsize type spin min 16 max 1024 default 64",
			want: EngineOption{Name: "hashsize", Type: OptionSpin, Min: 16, Max: 1024, Default: "64"},
		},
		{
			name: "check",
			line: "option usebook type check default true",
			want: EngineOption{Name: "usebook", Type: OptionCheck, Default: "true"},
		},
		{
			name: "combo with vars",
			line: "option style type combo var solid var normal var risky default normal",
			want: EngineOption{Name: "style", Type: OptionCombo, Vars: []string{"solid", "normal", "risky"}, Default: "normal"},
		},
		{
			name: "multi word name before type keyword",
			line: "option batch size type spin min 1 max 8 default 1",
			want: EngineOption{Name: "batch size", Type: OptionSpin, Min: 1, Max: 8, Default: "1"},
		},
		{
			name: "button",
			line: "option newgame type button",
			want: EngineOption{Name: "newgame", Type: OptionButton},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseLine(tt.line)
			require.NoError(t, err)
			opt, ok := msg.(Option)
			require.True(t, ok)
			assert.Equal(t, tt.want, opt.Opt)
		})
	}
}

func TestParseLineOptionMalformed(t *testing.T) {
	_, err := ParseLine("option type spin min 1")
	assert.Error(t, err, "name before type is required")

	_, err = ParseLine("option hashsize type gauge")
	assert.Error(t, err, "unknown option type")

	_, err = ParseLine("option hashsize type spin min lots")
	assert.Error(t, err, "non-numeric min")
}

func TestParseLineInfo(t *testing.T) {
	msg, err := ParseLine("info depth 12 score cp 45 time 812 nodes 1234567 nps 152000 pv h2e2 h9g7 c2c6")
	require.NoError(t, err)
	info, ok := msg.(Info)
	require.True(t, ok)

	l := info.Line
	require.NotNil(t, l.Depth)
	assert.Equal(t, 12, *l.Depth)
	require.NotNil(t, l.Score)
	assert.Equal(t, 45, *l.Score)
	assert.Nil(t, l.Mate)
	require.NotNil(t, l.Nodes)
	assert.Equal(t, int64(1234567), *l.Nodes)
	require.NotNil(t, l.NPS)
	assert.Equal(t, int64(152000), *l.NPS)
	require.NotNil(t, l.TimeMs)
	assert.Equal(t, int64(812), *l.TimeMs)
	assert.Equal(t, []string{"h2e2", "h9g7", "c2c6"}, l.PV)
}

func TestParseLineInfoScoreForms(t *testing.T) {
	// Bare score, no cp keyword.
	msg, err := ParseLine("info depth 3 score -120")
	require.NoError(t, err)
	l := msg.(Info).Line
	require.NotNil(t, l.Score)
	assert.Equal(t, -120, *l.Score)

	// Mate score.
	msg, err = ParseLine("info score mate -4")
	require.NoError(t, err)
	l = msg.(Info).Line
	assert.Nil(t, l.Score)
	require.NotNil(t, l.Mate)
	assert.Equal(t, -4, *l.Mate)

	_, err = ParseLine("info score cp deep")
	assert.Error(t, err)
}

func TestParseLineInfoMultiPV(t *testing.T) {
	msg, err := ParseLine("info multipv 2 depth 9 score cp -3 pv b2e2")
	require.NoError(t, err)
	l := msg.(Info).Line
	assert.Equal(t, 2, l.Slot())

	// Absent multipv defaults to slot 1.
	msg, err = ParseLine("info depth 9")
	require.NoError(t, err)
	assert.Equal(t, 1, msg.(Info).Line.Slot())
}

func TestParseLineBestMove(t *testing.T) {
	msg, err := ParseLine("bestmove h2e2 ponder h9g7")
	require.NoError(t, err)
	best := msg.(Best).Move
	assert.Equal(t, "h2e2", best.Move)
	assert.Equal(t, "h9g7", best.Ponder)
	assert.False(t, best.None)

	msg, err = ParseLine("bestmove a0a1 resign")
	require.NoError(t, err)
	assert.True(t, msg.(Best).Move.Resign)

	msg, err = ParseLine("bestmove a0a1 draw")
	require.NoError(t, err)
	assert.True(t, msg.(Best).Move.Draw)

	msg, err = ParseLine("nobestmove")
	require.NoError(t, err)
	assert.True(t, msg.(Best).Move.None)

	_, err = ParseLine("bestmove")
	assert.Error(t, err)
}

func TestParseLineUnknown(t *testing.T) {
	msg, err := ParseLine("Elephant Eye initialized, book loaded")
	require.NoError(t, err)
	u, ok := msg.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "Elephant Eye initialized, book loaded", u.Raw)

	msg, err = ParseLine("   ")
	require.NoError(t, err)
	assert.IsType(t, Unknown{}, msg)
}

func TestMarshalPosition(t *testing.T) {
	line, err := MarshalPosition(Position{})
	require.NoError(t, err)
	assert.Equal(t, "position startpos", line)

	line, err = MarshalPosition(Position{Moves: []string{"h2e2", "h9g7"}})
	require.NoError(t, err)
	assert.Equal(t, "position startpos moves h2e2 h9g7", line)

	fen := "rnbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR w"
	line, err = MarshalPosition(Position{FEN: fen, Moves: []string{"b2e2"}})
	require.NoError(t, err)
	assert.Equal(t, "position fen "+fen+" moves b2e2", line)
}

func TestMarshalPositionRejectsUnsafeInput(t *testing.T) {
	_, err := MarshalPosition(Position{FEN: "bad\nquit"})
	assert.Error(t, err, "embedded newline must not split the command")

	_, err = MarshalPosition(Position{Moves: []string{"h2e2 go"}})
	assert.Error(t, err, "whitespace inside a move token")

	_, err = MarshalPosition(Position{Moves: []string{""}})
	assert.Error(t, err)
}

func TestMarshalGo(t *testing.T) {
	tests := []struct {
		params SearchParams
		want   string
	}{
		{SearchParams{Depth: 12}, "go depth 12"},
		{SearchParams{MoveTimeMs: 3000}, "go time 3000"},
		{SearchParams{Nodes: 500000}, "go nodes 500000"},
		{SearchParams{Infinite: true}, "go infinite"},
	}
	for _, tt := range tests {
		line, err := MarshalGo(tt.params)
		require.NoError(t, err)
		assert.Equal(t, tt.want, line)

		// The reference decoder must invert the encoder.
		back, err := ParseGo(line)
		require.NoError(t, err)
		assert.Equal(t, tt.params, back)
	}
}

func TestMarshalGoTimeControlSelection(t *testing.T) {
	_, err := MarshalGo(SearchParams{})
	assert.Error(t, err, "no time control selected")

	_, err = MarshalGo(SearchParams{Depth: 8, Infinite: true})
	assert.Error(t, err, "two time controls selected")
}

func TestMarshalSetOption(t *testing.T) {
	line, err := MarshalSetOption("hashsize", "128")
	require.NoError(t, err)
	assert.Equal(t, "setoption hashsize 128", line)

	// Button options carry no value.
	line, err = MarshalSetOption("newgame", "")
	require.NoError(t, err)
	assert.Equal(t, "setoption newgame", line)

	_, err = MarshalSetOption("", "1")
	assert.Error(t, err)

	_, err = MarshalSetOption("hash\nsize", "1")
	assert.Error(t, err)
}

func TestSearchInfoMerge(t *testing.T) {
	depth, score := 8, 30
	var snap SearchInfo
	snap.Merge(InfoLine{Depth: &depth, Score: &score, PV: []string{"h2e2"}})
	assert.Equal(t, 8, snap.Depth)
	assert.Equal(t, 30, snap.Score)
	assert.False(t, snap.HasMate)

	// A later partial line updates only what it carries.
	mate := 3
	snap.Merge(InfoLine{Mate: &mate})
	assert.Equal(t, 8, snap.Depth)
	assert.True(t, snap.HasMate)
	assert.Equal(t, 3, snap.Mate)
	assert.Equal(t, []string{"h2e2"}, snap.PV)

	// A cp score clears the mate flag.
	score2 := -5
	snap.Merge(InfoLine{Score: &score2})
	assert.False(t, snap.HasMate)
	assert.Equal(t, -5, snap.Score)
}
