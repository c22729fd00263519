package engine

import "xiangqi/internal/ucci"

// TerminationKind classifies why a session ended.
type TerminationKind int

const (
	// TerminatedQuit means the quit handshake we requested completed.
	TerminatedQuit TerminationKind = iota
	// TerminatedCrash means the process died outside a requested quit.
	TerminatedCrash
	// TerminatedProtocol means a required message arrived malformed.
	TerminatedProtocol
)

func (k TerminationKind) String() string {
	switch k {
	case TerminatedQuit:
		return "requested quit"
	case TerminatedCrash:
		return "crashed"
	case TerminatedProtocol:
		return "protocol violation"
	default:
		return "unknown"
	}
}

// TerminationReason carries the kind plus whichever detail applies.
type TerminationReason struct {
	Kind     TerminationKind
	ExitCode int    // valid for TerminatedCrash
	Detail   string // valid for TerminatedProtocol
}

// Event is one session occurrence delivered on the event stream. The
// concrete types form a closed set.
type Event interface {
	event()
}

// OptionsAdvertised is emitted once, when the handshake completes and the
// session becomes Ready. Identity holds the id fields the engine sent.
type OptionsAdvertised struct {
	Identity map[string]string
	Options  []ucci.EngineOption
}

// SearchInfoUpdated carries the merged snapshot for one multi-PV slot
// after an info line. Only the latest snapshot per slot is retained.
type SearchInfoUpdated struct {
	Info ucci.SearchInfo
}

// BestMoveFound concludes a search and returns the session to Ready.
type BestMoveFound struct {
	Move ucci.BestMove
}

// Terminated is the final event on a session's stream; the stream is
// closed after it.
type Terminated struct {
	Reason TerminationReason
}

func (OptionsAdvertised) event() {}
func (SearchInfoUpdated) event() {}
func (BestMoveFound) event()     {}
func (Terminated) event()        {}
