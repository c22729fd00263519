// Package service is the session registry: it owns zero or more engine
// sessions keyed by opaque handles, routes commands to the selected
// session and fans their event streams into one.
package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xiangqi/internal/engine"
	"xiangqi/internal/storage"
	"xiangqi/internal/ucci"
)

// ErrNotFound is returned for commands addressed to an unknown handle.
var ErrNotFound = errors.New("no session with that handle")

// ErrClosed is returned for in-flight commands to a destroyed handle.
var ErrClosed = errors.New("session handle closed")

// Routed is one session event tagged with its handle. Ordering is
// preserved per handle; there is no cross-handle ordering guarantee,
// engines run independently.
type Routed struct {
	Handle string
	Event  engine.Event
}

// startFunc launches a session for a config. Swapped for a double in tests.
type startFunc func(engine.Config) (*engine.Session, error)

type entry struct {
	session *engine.Session
	cfg     engine.Config

	mu         sync.Mutex
	lastPos    ucci.Position
	lastParams ucci.SearchParams
}

// Service holds the active sessions. Sessions are fully independent of
// each other: no shared mutable state beyond the handle map, no
// cross-session locks.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	events chan Routed
	wg     sync.WaitGroup

	store *storage.Store // nil if persistence disabled
	start startFunc

	shutdownOnce sync.Once
}

// New creates a registry. The store may be nil to disable persistence.
func New(store *storage.Store) *Service {
	return &Service{
		sessions: make(map[string]*entry),
		events:   make(chan Routed, 256),
		store:    store,
		start:    engine.Start,
	}
}

// Events returns the fan-in stream of all sessions' events. It closes
// after ShutdownAll has finished.
func (s *Service) Events() <-chan Routed { return s.events }

// Create spawns an engine from its config and returns its handle. The
// handle stays valid until the process exits or Destroy is called.
func (s *Service) Create(cfg engine.Config) (string, error) {
	session, err := s.start(cfg)
	if err != nil {
		return "", err
	}

	handle := uuid.New().String()
	e := &entry{session: session, cfg: cfg}

	s.mu.Lock()
	s.sessions[handle] = e
	s.mu.Unlock()

	if s.store != nil {
		s.store.RecordSession(storage.SessionRecord{
			SessionID:    handle,
			EngineName:   cfg.Name,
			EnginePath:   cfg.Path,
			StartTimeUTC: time.Now().UTC(),
		})
	}

	s.wg.Add(1)
	go s.forward(handle, e)

	return handle, nil
}

// forward copies one session's events into the registry stream, recording
// concluded searches, and retires the handle on termination.
func (s *Service) forward(handle string, e *entry) {
	defer s.wg.Done()

	for ev := range e.session.Events() {
		switch t := ev.(type) {
		case engine.BestMoveFound:
			s.recordSearch(handle, e, t.Move)
		case engine.Terminated:
			s.mu.Lock()
			delete(s.sessions, handle)
			s.mu.Unlock()
			if s.store != nil {
				s.store.RecordSessionEnd(handle, t.Reason.Kind.String())
			}
		}
		s.events <- Routed{Handle: handle, Event: ev}
	}
}

func (s *Service) recordSearch(handle string, e *entry, best ucci.BestMove) {
	if s.store == nil {
		return
	}

	e.mu.Lock()
	pos, params := e.lastPos, e.lastParams
	e.mu.Unlock()

	var score, mate, depth int
	if infos := e.session.LatestInfo(); len(infos) > 0 {
		first := infos[0]
		depth = first.Depth
		if first.HasMate {
			mate = first.Mate
		} else {
			score = first.Score
		}
	}

	goLine, _ := ucci.MarshalGo(params)
	s.store.RecordSearch(storage.SearchRecord{
		SessionID:   handle,
		FEN:         pos.FEN,
		Moves:       strings.Join(pos.Moves, " "),
		Params:      goLine,
		BestMove:    best.Move,
		Ponder:      best.Ponder,
		Score:       score,
		Mate:        mate,
		Depth:       depth,
		DoneTimeUTC: time.Now().UTC(),
	})
}

func (s *Service) lookup(handle string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	return e, nil
}

// wrap translates a closed-session failure into the registry error.
func wrap(err error) error {
	if errors.Is(err, engine.ErrSessionClosed) {
		return ErrClosed
	}
	return err
}

// SetPosition routes a position replacement to one session.
func (s *Service) SetPosition(handle string, pos ucci.Position) error {
	e, err := s.lookup(handle)
	if err != nil {
		return err
	}
	if err := e.session.SetPosition(pos); err != nil {
		return wrap(err)
	}
	e.mu.Lock()
	e.lastPos = pos
	e.mu.Unlock()
	return nil
}

// StartSearch routes a search start to one session.
func (s *Service) StartSearch(handle string, pos ucci.Position, params ucci.SearchParams) error {
	e, err := s.lookup(handle)
	if err != nil {
		return err
	}
	if err := e.session.StartSearch(pos, params); err != nil {
		return wrap(err)
	}
	e.mu.Lock()
	e.lastPos, e.lastParams = pos, params
	e.mu.Unlock()
	return nil
}

// Stop routes a search stop to one session.
func (s *Service) Stop(handle string) error {
	e, err := s.lookup(handle)
	if err != nil {
		return err
	}
	return wrap(e.session.Stop())
}

// SetOption forwards one option override to one session.
func (s *Service) SetOption(handle, name, value string) error {
	e, err := s.lookup(handle)
	if err != nil {
		return err
	}
	return wrap(e.session.SetOption(name, value))
}

// Get returns the session behind a handle for read-only inspection.
func (s *Service) Get(handle string) (*engine.Session, error) {
	e, err := s.lookup(handle)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// SessionInfo is one row of List.
type SessionInfo struct {
	Handle string
	Name   string
	State  engine.State
}

// List returns the active sessions.
func (s *Service) List() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for handle, e := range s.sessions {
		out = append(out, SessionInfo{
			Handle: handle,
			Name:   e.cfg.Name,
			State:  e.session.State(),
		})
	}
	return out
}

// Destroy terminates one session's process (quit handshake, kill after
// the grace timeout) and invalidates its handle.
func (s *Service) Destroy(handle string) error {
	e, err := s.lookup(handle)
	if err != nil {
		return err
	}
	return e.session.Close()
}

// ShutdownAll terminates every session and closes the event stream. The
// front end calls it before process exit so no engine subprocess is
// orphaned. Idempotent.
func (s *Service) ShutdownAll() {
	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		entries := make([]*entry, 0, len(s.sessions))
		for _, e := range s.sessions {
			entries = append(entries, e)
		}
		s.mu.RUnlock()

		var wg sync.WaitGroup
		for _, e := range entries {
			wg.Add(1)
			go func(e *entry) {
				defer wg.Done()
				_ = e.session.Close()
			}(e)
		}
		wg.Wait()

		// All sessions terminated, so every forwarder drains and exits.
		s.wg.Wait()
		close(s.events)

		if s.store != nil {
			_ = s.store.Close()
		}
	})
}
