// Package engine owns communication with one external UCCI engine
// process: spawning, the asynchronous line channel over its pipes, and
// the protocol state machine that tracks what the engine is doing.
package engine

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"xiangqi/internal/ucci"
)

// State enumerates where a session is in the protocol.
type State int32

const (
	StateSpawning State = iota
	StateHandshaking
	StateReady
	StateSearching
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateSearching:
		return "searching"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultGraceTimeout bounds how long termination waits after quit before
// escalating to a forced kill.
const DefaultGraceTimeout = 2 * time.Second

// Config describes one engine to run. Options are forwarded to the engine
// verbatim once the handshake completes.
type Config struct {
	Name         string
	Path         string
	WorkDir      string
	Options      map[string]string
	GraceTimeout time.Duration
}

type request struct {
	do    any
	reply chan error
}

type setPositionReq struct{ pos ucci.Position }
type startSearchReq struct {
	pos    ucci.Position
	params ucci.SearchParams
}
type stopReq struct{}
type setOptionReq struct{ name, value string }
type quitReq struct{}

// Session drives one engine process. All state transitions are serialized
// onto the run loop goroutine, so a user command and an inbound engine
// line can never produce a torn state read. Commands are asynchronous
// request/response; search progress arrives on the event stream.
type Session struct {
	cfg  Config
	proc process
	ch   *LineChannel

	requests chan request
	events   chan Event
	done     chan struct{}

	state         atomic.Int32
	quitRequested atomic.Bool
	closeOnce     sync.Once

	// stopTimer bounds the wait for a bestmove after stop. Owned by the
	// run loop goroutine.
	stopTimer *time.Timer

	// Snapshot fields below are written only by the run loop and read
	// through accessor methods.
	mu       sync.Mutex
	identity map[string]string
	options  []ucci.EngineOption
	latest   map[int]ucci.SearchInfo
	lastBest *ucci.BestMove
	reason   TerminationReason

	log *logrus.Entry
}

// Start spawns the engine executable and begins the handshake. The
// returned session is Handshaking; it becomes Ready once the engine sends
// its ucciok sentinel, announced by an OptionsAdvertised event.
func Start(cfg Config) (*Session, error) {
	proc, err := Spawn(cfg.Path, cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	ch := NewLineChannel(proc.Stdout(), proc.Stdin())
	return newSession(cfg, proc, ch), nil
}

// newSession wires a session over an already-running process and channel.
// Split from Start so tests can substitute a scripted engine double.
func newSession(cfg Config, proc process, ch *LineChannel) *Session {
	if cfg.GraceTimeout <= 0 {
		cfg.GraceTimeout = DefaultGraceTimeout
	}
	s := &Session{
		cfg:      cfg,
		proc:     proc,
		ch:       ch,
		requests: make(chan request),
		events:   make(chan Event, 128),
		done:     make(chan struct{}),
		identity: make(map[string]string),
		latest:   make(map[int]ucci.SearchInfo),
		log:      logrus.WithField("engine", cfg.Name),
	}
	s.state.Store(int32(StateSpawning))
	go s.run()
	return s
}

// Events returns the session's event stream. The channel closes after the
// final Terminated event. Consumers are expected to drain it promptly.
func (s *Session) Events() <-chan Event { return s.events }

// Name returns the configured engine name.
func (s *Session) Name() string { return s.cfg.Name }

// State reports the current protocol state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has fully terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// SetPosition replaces the engine's position. Ready state only.
func (s *Session) SetPosition(pos ucci.Position) error {
	return s.submit(setPositionReq{pos: pos})
}

// StartSearch sets the position and starts one search. Ready state only;
// a search already in flight is rejected, never queued.
func (s *Session) StartSearch(pos ucci.Position, params ucci.SearchParams) error {
	return s.submit(startSearchReq{pos: pos, params: params})
}

// Stop asks the engine to conclude the current search. The terminal
// BestMoveFound event still follows.
func (s *Session) Stop() error {
	return s.submit(stopReq{})
}

// SetOption forwards one option override verbatim. Ready state only.
func (s *Session) SetOption(name, value string) error {
	return s.submit(setOptionReq{name: name, value: value})
}

// Identity returns the id fields advertised during the handshake.
func (s *Session) Identity() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.identity))
	for k, v := range s.identity {
		out[k] = v
	}
	return out
}

// Options returns the advertised option set, read-only by convention.
func (s *Session) Options() []ucci.EngineOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ucci.EngineOption(nil), s.options...)
}

// LatestInfo returns the newest merged SearchInfo per multi-PV slot,
// ordered by rank. History is a presentation concern; only the latest
// snapshot per slot is kept.
func (s *Session) LatestInfo() []ucci.SearchInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ucci.SearchInfo, 0, len(s.latest))
	for _, info := range s.latest {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MultiPV < out[j].MultiPV })
	return out
}

// LastBestMove returns the result of the most recently concluded search,
// or nil if none has concluded.
func (s *Session) LastBestMove() *ucci.BestMove {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastBest == nil {
		return nil
	}
	b := *s.lastBest
	return &b
}

// TerminationReason is valid once Done is closed.
func (s *Session) TerminationReason() TerminationReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Close performs the graceful shutdown handshake: quit, wait up to the
// grace timeout, then kill. Idempotent and safe from shutdown handlers.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Best effort; the session may already be terminated.
		_ = s.submit(quitReq{})

		select {
		case <-s.proc.Exited():
		case <-time.After(s.cfg.GraceTimeout):
			s.log.Warn("engine did not exit after quit, killing")
			_ = s.proc.Kill()
		}
		<-s.done
	})
	return nil
}

func (s *Session) submit(do any) error {
	req := request{do: do, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

// run is the single logical owner of the session state. It terminates
// when the inbound pipe closes or a protocol violation is detected.
func (s *Session) run() {
	defer close(s.done)

	s.setState(StateHandshaking)
	if err := s.ch.Send(ucci.CmdUCCI); err != nil {
		s.terminate(s.exitReason())
		return
	}

	for {
		select {
		case line, ok := <-s.ch.Lines():
			if !ok {
				s.terminate(s.exitReason())
				return
			}
			if fatal := s.handleLine(line); fatal {
				return
			}
		case req := <-s.requests:
			req.reply <- s.handleRequest(req.do)
		case <-s.stopDeadline():
			// The engine accepted stop but never concluded the search. An
			// engine that cannot answer stop cannot be trusted with the
			// next command either.
			s.log.Warn("no bestmove after stop, killing")
			_ = s.proc.Kill()
			reason := s.exitReason()
			reason.Detail = "engine did not conclude the search after stop"
			s.terminate(reason)
			return
		}
	}
}

// stopDeadline is nil, and thus never fires, unless a stop is pending.
func (s *Session) stopDeadline() <-chan time.Time {
	if s.stopTimer == nil {
		return nil
	}
	return s.stopTimer.C
}

func (s *Session) clearStopDeadline() {
	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
}

// exitReason waits briefly for the process status behind a closed pipe
// and classifies the termination.
func (s *Session) exitReason() TerminationReason {
	select {
	case <-s.proc.Exited():
	case <-time.After(s.cfg.GraceTimeout):
	}
	if s.quitRequested.Load() {
		return TerminationReason{Kind: TerminatedQuit}
	}
	return TerminationReason{Kind: TerminatedCrash, ExitCode: s.proc.ExitCode()}
}

func (s *Session) terminate(reason TerminationReason) {
	s.ch.Close()

	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()

	s.setState(StateTerminated)
	if reason.Kind == TerminatedCrash {
		s.log.WithField("exit_code", reason.ExitCode).Warn("engine terminated unexpectedly")
	}
	s.emit(Terminated{Reason: reason})
	close(s.events)
}

// handleLine parses one inbound line and applies it to the state machine.
// It reports whether the session is now terminated.
func (s *Session) handleLine(line string) bool {
	msg, err := ucci.ParseLine(line)
	if err != nil {
		// Malformed messages are fatal only where they are semantically
		// required: a broken bestmove while a search is in flight leaves
		// the session unrecoverable. Anywhere else they are dropped.
		st := s.State()
		if strings.HasPrefix(strings.TrimSpace(line), "bestmove") &&
			(st == StateSearching || st == StateStopping) {
			violation := &ProtocolViolation{Line: line, Detail: err.Error()}
			s.log.WithError(violation).Error("malformed bestmove during search")
			_ = s.proc.Kill()
			s.terminate(TerminationReason{Kind: TerminatedProtocol, Detail: violation.Error()})
			return true
		}
		s.log.WithError(err).Warn("discarding malformed line")
		return false
	}

	switch m := msg.(type) {
	case ucci.ID:
		s.mu.Lock()
		s.identity[m.Field] = m.Value
		s.mu.Unlock()

	case ucci.Option:
		s.mu.Lock()
		s.options = append(s.options, m.Opt)
		s.mu.Unlock()

	case ucci.UCCIOk:
		if s.State() != StateHandshaking {
			s.log.Warn("unexpected ucciok, ignoring")
			return false
		}
		s.applyConfiguredOptions()
		// Probe engines that defer initialization until asked; the
		// readyok reply is informational.
		_ = s.ch.Send(ucci.CmdIsReady)
		s.setState(StateReady)
		s.emit(OptionsAdvertised{Identity: s.Identity(), Options: s.Options()})

	case ucci.ReadyOk:
		s.log.Debug("engine ready")

	case ucci.Info:
		st := s.State()
		if st != StateSearching && st != StateStopping {
			s.log.WithField("line", line).Debug("info outside a search, ignoring")
			return false
		}
		slot := m.Line.Slot()
		s.mu.Lock()
		snap := s.latest[slot]
		snap.MultiPV = slot
		snap.Merge(m.Line)
		s.latest[slot] = snap
		s.mu.Unlock()
		s.emit(SearchInfoUpdated{Info: snap})

	case ucci.Best:
		st := s.State()
		if st != StateSearching && st != StateStopping {
			s.log.WithField("line", line).Warn("bestmove outside a search, ignoring")
			return false
		}
		s.clearStopDeadline()
		s.mu.Lock()
		b := m.Move
		s.lastBest = &b
		s.mu.Unlock()
		s.setState(StateReady)
		s.emit(BestMoveFound{Move: m.Move})

	case ucci.Bye:
		s.log.Debug("engine acknowledged quit")

	case ucci.Unknown:
		if strings.TrimSpace(m.Raw) != "" {
			s.log.WithField("line", m.Raw).Debug("discarding unrecognized line")
		}
	}
	return false
}

func (s *Session) handleRequest(do any) error {
	switch r := do.(type) {
	case setPositionReq:
		if s.State() != StateReady {
			return ErrNotReady
		}
		line, err := ucci.MarshalPosition(r.pos)
		if err != nil {
			return err
		}
		return s.ch.Send(line)

	case startSearchReq:
		if s.State() != StateReady {
			return ErrNotReady
		}
		// Validate both lines before writing either, so a bad parameter
		// cannot leave the engine with a half-issued search.
		posLine, err := ucci.MarshalPosition(r.pos)
		if err != nil {
			return err
		}
		goLine, err := ucci.MarshalGo(r.params)
		if err != nil {
			return err
		}
		if err := s.ch.Send(posLine); err != nil {
			return err
		}
		if err := s.ch.Send(goLine); err != nil {
			return err
		}
		s.mu.Lock()
		s.latest = make(map[int]ucci.SearchInfo)
		s.lastBest = nil
		s.mu.Unlock()
		s.setState(StateSearching)
		return nil

	case stopReq:
		switch s.State() {
		case StateSearching:
			if err := s.ch.Send(ucci.CmdStop); err != nil {
				return err
			}
			s.setState(StateStopping)
			s.stopTimer = time.NewTimer(s.cfg.GraceTimeout)
			return nil
		case StateStopping:
			// Already asked; the bestmove is on its way.
			return nil
		default:
			return ErrNotSearching
		}

	case setOptionReq:
		if s.State() != StateReady {
			return ErrNotReady
		}
		line, err := ucci.MarshalSetOption(r.name, r.value)
		if err != nil {
			return err
		}
		return s.ch.Send(line)

	case quitReq:
		if s.State() == StateTerminated {
			return ErrSessionClosed
		}
		s.quitRequested.Store(true)
		return s.ch.Send(ucci.CmdQuit)

	default:
		return ErrSessionClosed
	}
}

// applyConfiguredOptions forwards the overrides from the engine config.
// Invalid entries are logged and skipped; they cannot fail the handshake.
func (s *Session) applyConfiguredOptions() {
	for name, value := range s.cfg.Options {
		line, err := ucci.MarshalSetOption(name, value)
		if err != nil {
			s.log.WithError(err).WithField("option", name).Warn("skipping configured option")
			continue
		}
		if err := s.ch.Send(line); err != nil {
			return
		}
	}
}
