// Package cli parses user commands and renders boards and analysis to the
// terminal. It is purely a presentation layer over the session registry.
package cli

import (
	"fmt"
	"io"
	"strings"

	"xiangqi/internal/board"
	"xiangqi/internal/game"
	"xiangqi/internal/ucci"
)

type CommandType int

const (
	CmdNone CommandType = iota
	CmdNew
	CmdResume
	CmdMove
	CmdGo
	CmdStop
	CmdBoard
	CmdUndo
	CmdEngines
	CmdOptions
	CmdSet
	CmdHistory
	CmdColor
	CmdVerbose
	CmdHelp
	CmdQuit
)

type Command struct {
	Type CommandType
	Args []string
	Raw  string
}

type ColorTheme string

const (
	ThemeOff   ColorTheme = "off"
	ThemeWood  ColorTheme = "wood"
	ThemeGreen ColorTheme = "green"
	ThemeGray  ColorTheme = "gray"
)

type themeColors struct {
	boardBg string
	red     string
	black   string
	river   string
	reset   string
}

var themes = map[ColorTheme]themeColors{
	ThemeOff: {},
	ThemeWood: {
		boardBg: "\033[48;5;180m", // Tan
		red:     "\033[91m",
		black:   "\033[30m",
		river:   "\033[34m",
		reset:   "\033[0m",
	},
	ThemeGreen: {
		boardBg: "\033[48;5;151m", // Light green
		red:     "\033[91m",
		black:   "\033[30m",
		river:   "\033[34m",
		reset:   "\033[0m",
	},
	ThemeGray: {
		boardBg: "\033[48;5;250m", // Light gray
		red:     "\033[91m",
		black:   "\033[30m",
		river:   "\033[34m",
		reset:   "\033[0m",
	},
}

type CLI struct {
	output  io.Writer
	theme   ColorTheme
	verbose bool
}

func New(output io.Writer) *CLI {
	return &CLI{
		output: output,
		theme:  ThemeOff,
	}
}

// Parse maps one input line to a command. A bare 4-character token is
// taken as a move.
func Parse(input string) *Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return &Command{Type: CmdNone}
	}

	cmd := parts[0]
	args := parts[1:]

	switch strings.ToLower(cmd) {
	case "new":
		return &Command{Type: CmdNew, Args: args}
	case "resume", "fen":
		return &Command{Type: CmdResume, Args: args, Raw: input}
	case "move":
		return &Command{Type: CmdMove, Args: args}
	case "go":
		return &Command{Type: CmdGo, Args: args}
	case "stop":
		return &Command{Type: CmdStop}
	case "board":
		return &Command{Type: CmdBoard}
	case "undo":
		return &Command{Type: CmdUndo, Args: args}
	case "engines":
		return &Command{Type: CmdEngines}
	case "options":
		return &Command{Type: CmdOptions}
	case "set":
		return &Command{Type: CmdSet, Args: args}
	case "history":
		return &Command{Type: CmdHistory}
	case "color":
		return &Command{Type: CmdColor, Args: args}
	case "verbose":
		return &Command{Type: CmdVerbose}
	case "help", "?":
		return &Command{Type: CmdHelp}
	case "quit", "exit":
		return &Command{Type: CmdQuit}
	default:
		if len(cmd) == 4 && len(args) == 0 {
			return &Command{Type: CmdMove, Args: []string{cmd}}
		}
		return &Command{Type: CmdNone, Raw: input}
	}
}

// ParseGoArgs turns "go" arguments into search parameters. With no
// arguments the default thinking time applies.
func ParseGoArgs(args []string, defaultMoveTimeMs int) (ucci.SearchParams, error) {
	if len(args) == 0 {
		return ucci.SearchParams{MoveTimeMs: defaultMoveTimeMs}, nil
	}
	line := "go " + strings.Join(args, " ")
	params, err := ucci.ParseGo(line)
	if err != nil {
		return params, err
	}
	if params == (ucci.SearchParams{}) {
		return params, fmt.Errorf("usage: go [depth <n> | time <ms> | nodes <n> | infinite]")
	}
	return params, nil
}

func (c *CLI) SetTheme(theme ColorTheme) error {
	if _, ok := themes[theme]; !ok {
		return fmt.Errorf("invalid theme: %s (use: off, wood, green, gray)", theme)
	}
	c.theme = theme
	return nil
}

func (c *CLI) ToggleVerbose() bool {
	c.verbose = !c.verbose
	return c.verbose
}

func (c *CLI) IsVerbose() bool {
	return c.verbose
}

func (c *CLI) ShowMessage(msg string) {
	fmt.Fprintln(c.output, msg)
}

func (c *CLI) ShowError(err error) {
	c.ShowMessage(fmt.Sprintf("Error: %v", err))
}

// DisplayBoard renders the 10x9 xiangqi board, red at the bottom.
func (c *CLI) DisplayBoard(b *board.Board) {
	theme := themes[c.theme]
	var sb strings.Builder

	sb.WriteString("\n   a b c d e f g h i\n")

	for r := 9; r >= 0; r-- {
		sb.WriteString(fmt.Sprintf("%d  ", r))
		for f := 0; f < 9; f++ {
			square := fmt.Sprintf("%c%c", 'a'+f, '0'+r)
			piece := b.PieceAt(square)

			if c.theme == ThemeOff {
				if piece == 0 {
					sb.WriteString(". ")
				} else {
					sb.WriteString(fmt.Sprintf("%c ", piece))
				}
				continue
			}

			if piece == 0 {
				sb.WriteString(fmt.Sprintf("%s. %s", theme.boardBg, theme.reset))
			} else {
				color := theme.black
				if board.IsRed(piece) {
					color = theme.red
				}
				sb.WriteString(fmt.Sprintf("%s%s%c %s", theme.boardBg, color, piece, theme.reset))
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", r))

		// The river runs between ranks 4 and 5.
		if r == 5 {
			if c.theme == ThemeOff {
				sb.WriteString("   ~ ~ ~ ~ ~ ~ ~ ~ ~\n")
			} else {
				sb.WriteString(fmt.Sprintf("   %s~ ~ ~ ~ ~ ~ ~ ~ ~%s\n", theme.river, theme.reset))
			}
		}
	}
	sb.WriteString("   a b c d e f g h i\n")

	c.ShowMessage(sb.String())
}

// ShowSearchInfo prints one analysis update. Quiet unless verbose; the
// engine streams these lines continuously during a search.
func (c *CLI) ShowSearchInfo(info ucci.SearchInfo) {
	if !c.verbose {
		return
	}
	score := fmt.Sprintf("%+d", info.Score)
	if info.HasMate {
		score = fmt.Sprintf("mate %d", info.Mate)
	}
	line := fmt.Sprintf("  depth %d  score %s", info.Depth, score)
	if info.MultiPV > 1 {
		line = fmt.Sprintf("  [%d]%s", info.MultiPV, line)
	}
	if info.Nodes > 0 {
		line += fmt.Sprintf("  nodes %d", info.Nodes)
	}
	if info.NPS > 0 {
		line += fmt.Sprintf("  nps %d", info.NPS)
	}
	if len(info.PV) > 0 {
		line += "  pv " + strings.Join(info.PV, " ")
	}
	c.ShowMessage(line)
}

// ShowBestMove prints a concluded search result.
func (c *CLI) ShowBestMove(best ucci.BestMove, result *game.MoveResult) {
	switch {
	case best.None:
		c.ShowMessage("Engine has no move (nobestmove).")
	case best.Resign:
		c.ShowMessage(fmt.Sprintf("Engine resigns (best was %s).", best.Move))
	case best.Draw:
		c.ShowMessage(fmt.Sprintf("Engine plays %s and offers a draw.", best.Move))
	default:
		if c.verbose && result != nil {
			score := fmt.Sprintf("score=%+d", result.Score)
			if result.IsMate {
				score = fmt.Sprintf("mate=%d", result.Mate)
			}
			c.ShowMessage(fmt.Sprintf("Engine plays %s (depth=%d, %s)", best.Move, result.Depth, score))
		} else {
			c.ShowMessage(fmt.Sprintf("Engine plays %s", best.Move))
		}
	}
	if best.Ponder != "" && c.verbose {
		c.ShowMessage(fmt.Sprintf("  expecting %s in reply", best.Ponder))
	}
}

// ShowOptions lists the options an engine advertised.
func (c *CLI) ShowOptions(opts []ucci.EngineOption) {
	if len(opts) == 0 {
		c.ShowMessage("Engine advertised no options.")
		return
	}
	for _, o := range opts {
		line := fmt.Sprintf("  %-24s %s", o.Name, o.Type)
		if o.Type == ucci.OptionSpin {
			line += fmt.Sprintf(" [%d..%d]", o.Min, o.Max)
		}
		if len(o.Vars) > 0 {
			line += " {" + strings.Join(o.Vars, ", ") + "}"
		}
		if o.Default != "" {
			line += " = " + o.Default
		}
		c.ShowMessage(line)
	}
}

// ShowGameHistory prints the move list and positions.
func (c *CLI) ShowGameHistory(g *game.Game) {
	c.ShowMessage(fmt.Sprintf("Starting FEN: %s", g.InitialFEN()))

	moves := g.Moves()
	for i := 0; i < len(moves); i += 2 {
		moveNum := i/2 + 1
		red := moves[i]
		if i+1 < len(moves) {
			c.ShowMessage(fmt.Sprintf("%d. %s | %s", moveNum, red, moves[i+1]))
		} else {
			c.ShowMessage(fmt.Sprintf("%d. %s | ...", moveNum, red))
		}
	}
	c.ShowMessage(fmt.Sprintf("Current FEN: %s", g.CurrentFEN()))
}

func (c *CLI) ShowHelp() {
	help := `Commands:
  new [engine] [red|black] [FEN...] - Start a game against an engine
  <move> / move <move>  - Play a move (e.g. h2e2), then the engine replies
  go [depth n|time ms|nodes n|infinite] - Analyze the current position
  stop                  - Stop the running search (bestmove still arrives)
  board                 - Redraw the board
  undo [count]          - Undo last move(s), default 1
  engines               - List configured engines
  options               - Show the active engine's advertised options
  set <name> [value]    - Forward an option override to the engine
  history               - Show moves and positions
  color <theme>         - Board color theme (off|wood|green|gray)
  verbose               - Toggle analysis detail
  quit/exit             - Exit (engines are shut down cleanly)
  help/?                - Show this help message`

	c.ShowMessage(help)
}

func (c *CLI) ShowWelcome() {
	c.ShowMessage("Xiangqi engine console.")
	c.ShowMessage("Commands: new [engine] [red|black], <move>, go, stop, undo, board, quit, help/?")
	c.ShowMessage("")
}
