// Package cli drives the session registry from parsed terminal commands
// and renders the event stream back to the user.
package cli

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"xiangqi/internal/board"
	"xiangqi/internal/cli"
	"xiangqi/internal/config"
	"xiangqi/internal/core"
	"xiangqi/internal/engine"
	"xiangqi/internal/game"
	"xiangqi/internal/service"
	"xiangqi/internal/ucci"
)

// DefaultMoveTimeMs is the thinking budget when the user does not pick a
// time control.
const DefaultMoveTimeMs = 3000

const readyTimeout = 10 * time.Second

type Handler struct {
	svc  *service.Service
	cfg  *config.Config
	view *cli.CLI

	mu      sync.Mutex
	handle  string
	game    *game.Game
	playing bool // bestmove should be applied to the game, not just shown
}

func New(svc *service.Service, cfg *config.Config, view *cli.CLI) *Handler {
	return &Handler{
		svc:  svc,
		cfg:  cfg,
		view: view,
	}
}

// ConsumeEvents drains the registry stream and renders it. Run on its own
// goroutine; returns when the stream closes after shutdown.
func (h *Handler) ConsumeEvents() {
	for routed := range h.svc.Events() {
		h.mu.Lock()
		current := routed.Handle == h.handle
		h.mu.Unlock()
		if !current {
			continue
		}

		switch ev := routed.Event.(type) {
		case engine.OptionsAdvertised:
			if name, ok := ev.Identity["name"]; ok {
				h.view.ShowMessage(fmt.Sprintf("Engine ready: %s", name))
			}
		case engine.SearchInfoUpdated:
			h.view.ShowSearchInfo(ev.Info)
		case engine.BestMoveFound:
			h.handleBestMove(routed.Handle, ev.Move)
		case engine.Terminated:
			h.handleTerminated(ev.Reason)
		}
	}
}

func (h *Handler) handleBestMove(handle string, best ucci.BestMove) {
	h.mu.Lock()
	playing := h.playing && h.game != nil
	h.playing = false
	g := h.game
	h.mu.Unlock()

	var result *game.MoveResult
	if session, err := h.svc.Get(handle); err == nil {
		if infos := session.LatestInfo(); len(infos) > 0 {
			first := infos[0]
			result = &game.MoveResult{
				Move:   best.Move,
				Score:  first.Score,
				Mate:   first.Mate,
				IsMate: first.HasMate,
				Depth:  first.Depth,
			}
			if g != nil {
				result.Player = g.PlayerSide().Opposite()
			}
		}
	}
	h.view.ShowBestMove(best, result)

	if !playing || best.None || best.Resign {
		return
	}
	h.playMove(g, best, result)
}

// playMove applies the engine's reply to the game it was searching for.
func (h *Handler) playMove(g *game.Game, best ucci.BestMove, result *game.MoveResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.game != g {
		// A 'new' replaced the game while the engine was thinking; the
		// move belongs to the abandoned one.
		return
	}
	if err := g.Apply(best.Move); err != nil {
		h.view.ShowError(fmt.Errorf("engine move %s: %v", best.Move, err))
		return
	}
	g.SetLastResult(result)
	h.displayBoardLocked()
	h.view.ShowMessage("Your move.")
}

func (h *Handler) handleTerminated(reason engine.TerminationReason) {
	h.mu.Lock()
	h.handle = ""
	h.playing = false
	h.mu.Unlock()

	switch reason.Kind {
	case engine.TerminatedQuit:
		h.view.ShowMessage("Engine shut down.")
	case engine.TerminatedCrash:
		h.view.ShowMessage(fmt.Sprintf("Engine crashed (exit code %d). Start a new game with 'new'.", reason.ExitCode))
	case engine.TerminatedProtocol:
		h.view.ShowMessage(fmt.Sprintf("Engine speaks broken protocol: %s", reason.Detail))
	}
}

// ProcessCommand handles one user command; returns false to exit.
func (h *Handler) ProcessCommand(cmd *cli.Command) bool {
	switch cmd.Type {
	case cli.CmdQuit:
		return false

	case cli.CmdNone:
		if cmd.Raw != "" {
			h.view.ShowMessage(fmt.Sprintf("Unknown command: %s (try 'help')", cmd.Raw))
		}

	case cli.CmdNew:
		h.handleNewGame(cmd.Args)

	case cli.CmdResume:
		if len(cmd.Args) < 1 {
			h.view.ShowMessage("Usage: fen <FEN string>")
			return true
		}
		h.handleNewGame(append([]string{"", ""}, cmd.Args...))

	case cli.CmdMove:
		if len(cmd.Args) < 1 {
			h.view.ShowMessage("Usage: move <move>, e.g. move h2e2")
			return true
		}
		h.handleMove(cmd.Args[0])

	case cli.CmdGo:
		h.handleGo(cmd.Args)

	case cli.CmdStop:
		if err := h.withSession(func(handle string) error {
			return h.svc.Stop(handle)
		}); err != nil {
			h.view.ShowError(err)
		}

	case cli.CmdBoard:
		h.mu.Lock()
		h.displayBoardLocked()
		h.mu.Unlock()

	case cli.CmdUndo:
		h.handleUndo(cmd.Args)

	case cli.CmdEngines:
		h.view.ShowMessage("Configured engines (default first):")
		for _, name := range h.cfg.Names() {
			h.view.ShowMessage("  " + name)
		}

	case cli.CmdOptions:
		h.mu.Lock()
		handle := h.handle
		h.mu.Unlock()
		session, err := h.svc.Get(handle)
		if err != nil {
			h.view.ShowMessage("No active engine.")
			return true
		}
		h.view.ShowOptions(session.Options())

	case cli.CmdSet:
		if len(cmd.Args) < 1 {
			h.view.ShowMessage("Usage: set <name> [value]")
			return true
		}
		value := ""
		if len(cmd.Args) > 1 {
			value = strings.Join(cmd.Args[1:], " ")
		}
		if err := h.withSession(func(handle string) error {
			return h.svc.SetOption(handle, cmd.Args[0], value)
		}); err != nil {
			h.view.ShowError(err)
		}

	case cli.CmdHistory:
		h.mu.Lock()
		g := h.game
		h.mu.Unlock()
		if g == nil {
			h.view.ShowMessage("No active game.")
			return true
		}
		h.view.ShowGameHistory(g)

	case cli.CmdColor:
		if len(cmd.Args) < 1 {
			h.view.ShowMessage("Usage: color <off|wood|green|gray>")
			return true
		}
		if err := h.view.SetTheme(cli.ColorTheme(cmd.Args[0])); err != nil {
			h.view.ShowError(err)
		} else {
			h.mu.Lock()
			h.displayBoardLocked()
			h.mu.Unlock()
		}

	case cli.CmdVerbose:
		h.view.ShowMessage(fmt.Sprintf("Verbose mode: %t", h.view.ToggleVerbose()))

	case cli.CmdHelp:
		h.view.ShowHelp()
	}

	return true
}

// Prompt reflects the session and game state.
func (h *Handler) Prompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handle == "" {
		return "xiangqi> "
	}
	session, err := h.svc.Get(h.handle)
	if err != nil {
		return "xiangqi> "
	}
	name := session.Name()
	if session.State() == engine.StateSearching || session.State() == engine.StateStopping {
		return fmt.Sprintf("xiangqi [%s thinking]> ", name)
	}
	if h.game != nil {
		return fmt.Sprintf("xiangqi [%s, %s to move]> ", name, h.game.NextTurn())
	}
	return fmt.Sprintf("xiangqi [%s]> ", name)
}

func (h *Handler) withSession(fn func(handle string) error) error {
	h.mu.Lock()
	handle := h.handle
	h.mu.Unlock()
	if handle == "" {
		return fmt.Errorf("no active engine, start one with 'new'")
	}
	return fn(handle)
}

// handleNewGame parses "new [engine] [red|black] [FEN...]".
func (h *Handler) handleNewGame(args []string) {
	engineName := ""
	side := core.ColorRed
	fen := ""

	if len(args) > 0 {
		engineName = args[0]
	}
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "red", "r", "":
			side = core.ColorRed
		case "black", "b":
			side = core.ColorBlack
		default:
			h.view.ShowMessage("Side must be 'red' or 'black'.")
			return
		}
	}
	if len(args) > 2 {
		fen = strings.Join(args[2:], " ")
	}

	g, err := game.New(fen, side)
	if err != nil {
		h.view.ShowError(err)
		return
	}

	sessionCfg, err := h.cfg.SessionConfig(engineName)
	if err != nil {
		h.view.ShowError(err)
		return
	}

	// One engine at a time in the terminal; replace any previous one.
	h.mu.Lock()
	old := h.handle
	h.handle = ""
	h.game = nil
	h.playing = false
	h.mu.Unlock()
	if old != "" {
		_ = h.svc.Destroy(old)
	}

	handle, err := h.svc.Create(sessionCfg)
	if err != nil {
		h.view.ShowError(fmt.Errorf("could not start engine: %v", err))
		return
	}

	if !h.waitReady(handle) {
		h.view.ShowError(fmt.Errorf("engine %s did not become ready", sessionCfg.Name))
		_ = h.svc.Destroy(handle)
		return
	}

	h.mu.Lock()
	h.handle = handle
	h.game = g
	h.displayBoardLocked()
	engineTurn := g.EngineTurn()
	h.mu.Unlock()

	h.view.ShowMessage(fmt.Sprintf("Game started against %s. You play %s.", sessionCfg.Name, side))
	if engineTurn {
		h.startEngineReply()
	}
}

// waitReady polls until the handshake completes. Creation is cheap; the
// handshake is where a wedged binary shows up.
func (h *Handler) waitReady(handle string) bool {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		session, err := h.svc.Get(handle)
		if err != nil {
			return false
		}
		switch session.State() {
		case engine.StateReady:
			return true
		case engine.StateTerminated:
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func (h *Handler) handleMove(move string) {
	h.mu.Lock()
	g := h.game
	playing := h.playing
	h.mu.Unlock()

	if g == nil {
		h.view.ShowMessage("No active game. Use 'new'.")
		return
	}
	if playing {
		h.view.ShowMessage("Engine is thinking; 'stop' it first.")
		return
	}
	if g.EngineTurn() {
		h.view.ShowMessage("It is the engine's turn.")
		return
	}

	h.mu.Lock()
	err := g.Apply(move)
	if err == nil {
		h.displayBoardLocked()
	}
	h.mu.Unlock()
	if err != nil {
		h.view.ShowError(fmt.Errorf("invalid move: %v", err))
		return
	}

	h.startEngineReply()
}

// startEngineReply launches a search whose bestmove will be played.
func (h *Handler) startEngineReply() {
	h.mu.Lock()
	pos := h.game.Position()
	h.mu.Unlock()

	err := h.withSession(func(handle string) error {
		return h.svc.StartSearch(handle, pos, ucci.SearchParams{MoveTimeMs: DefaultMoveTimeMs})
	})
	if err != nil {
		h.view.ShowError(err)
		return
	}
	h.mu.Lock()
	h.playing = true
	h.mu.Unlock()
	h.view.ShowMessage("Engine is thinking...")
}

// handleGo runs a detached analysis of the current position: the result
// is displayed, not played.
func (h *Handler) handleGo(args []string) {
	params, err := cli.ParseGoArgs(args, DefaultMoveTimeMs)
	if err != nil {
		h.view.ShowError(err)
		return
	}

	h.mu.Lock()
	pos := ucci.Position{}
	if h.game != nil {
		pos = h.game.Position()
	}
	h.mu.Unlock()

	if err := h.withSession(func(handle string) error {
		return h.svc.StartSearch(handle, pos, params)
	}); err != nil {
		h.view.ShowError(err)
		return
	}
	h.view.ShowMessage("Analyzing... ('stop' to conclude)")
}

func (h *Handler) handleUndo(args []string) {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			h.view.ShowMessage("Invalid undo count. Usage: undo [count]")
			return
		}
		count = n
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.game == nil {
		h.view.ShowMessage("No active game.")
		return
	}
	if h.playing {
		h.view.ShowMessage("Engine is thinking; 'stop' it first.")
		return
	}
	if err := h.game.Undo(count); err != nil {
		h.view.ShowError(err)
		return
	}
	h.displayBoardLocked()
}

// displayBoardLocked renders the current game board. Caller holds h.mu.
func (h *Handler) displayBoardLocked() {
	if h.game == nil {
		return
	}
	b, err := board.ParseFEN(h.game.CurrentFEN())
	if err != nil {
		return
	}
	h.view.DisplayBoard(b)
}
