// Package ucci implements the wire grammar of the UCCI protocol: pure
// translation between structured commands/events and newline-terminated,
// space-delimited text lines. It holds no protocol state; the engine
// session owns that.
package ucci

// Position describes a board state the way an engine understands it:
// a FEN string (empty means the standard starting layout) plus the moves
// applied since. Values are replaced wholesale, never mutated.
type Position struct {
	FEN   string
	Moves []string
}

// SearchParams selects at most one time-control strategy for a search.
type SearchParams struct {
	Depth      int   // ply limit
	MoveTimeMs int   // wall-clock budget in milliseconds
	Nodes      int64 // node-count limit
	Infinite   bool  // search until stop
}

// InfoLine is one parsed "info" line. Engines emit partial fields per
// line, so scalar fields are pointers: nil means the line did not carry
// that field and the previous value still stands.
type InfoLine struct {
	Depth   *int
	Score   *int // centipawns, positive favors side to move
	Mate    *int // signed distance to mate in moves
	Nodes   *int64
	NPS     *int64
	TimeMs  *int64
	MultiPV *int
	PV      []string // nil when the line carried no pv
}

// SearchInfo is the merged snapshot of the latest info fields for one
// multi-PV slot.
type SearchInfo struct {
	Depth   int
	Score   int
	Mate    int
	HasMate bool
	Nodes   int64
	NPS     int64
	TimeMs  int64
	MultiPV int
	PV      []string
}

// Merge folds a partial info line into the snapshot, field by field.
func (s *SearchInfo) Merge(l InfoLine) {
	if l.Depth != nil {
		s.Depth = *l.Depth
	}
	if l.Score != nil {
		s.Score = *l.Score
		s.HasMate = false
	}
	if l.Mate != nil {
		s.Mate = *l.Mate
		s.HasMate = true
	}
	if l.Nodes != nil {
		s.Nodes = *l.Nodes
	}
	if l.NPS != nil {
		s.NPS = *l.NPS
	}
	if l.TimeMs != nil {
		s.TimeMs = *l.TimeMs
	}
	if l.MultiPV != nil {
		s.MultiPV = *l.MultiPV
	}
	if l.PV != nil {
		s.PV = l.PV
	}
}

// Slot returns the multi-PV rank of the line, defaulting to 1.
func (l InfoLine) Slot() int {
	if l.MultiPV != nil && *l.MultiPV > 0 {
		return *l.MultiPV
	}
	return 1
}

// BestMove is the terminal result of a search. None is set for the UCCI
// "nobestmove" reply (no legal move, or a stop with nothing to report).
type BestMove struct {
	Move   string
	Ponder string
	Draw   bool
	Resign bool
	None   bool
}

// OptionType enumerates the UCCI option kinds an engine can advertise.
type OptionType string

const (
	OptionCheck  OptionType = "check"
	OptionSpin   OptionType = "spin"
	OptionCombo  OptionType = "combo"
	OptionString OptionType = "string"
	OptionButton OptionType = "button"
)

// EngineOption is one option descriptor from the handshake. The set an
// engine advertises is stored read-only; overrides are forwarded verbatim.
type EngineOption struct {
	Name    string
	Type    OptionType
	Default string
	Min     int
	Max     int
	Vars    []string
}

// Message is one parsed engine-to-GUI line. The concrete types form a
// closed set; downstream code switches on them instead of re-parsing text.
type Message interface {
	message()
}

// ID is one "id <field> <value>" advertisement (name, author, ...).
type ID struct {
	Field string
	Value string
}

// UCCIOk is the handshake sentinel terminating id/option advertisements.
type UCCIOk struct{}

// ReadyOk acknowledges an isready probe.
type ReadyOk struct{}

// Info wraps one parsed info line.
type Info struct {
	Line InfoLine
}

// Best wraps a bestmove (or nobestmove) line.
type Best struct {
	Move BestMove
}

// Option wraps one advertised engine option.
type Option struct {
	Opt EngineOption
}

// Bye is the engine's acknowledgment of quit, sent just before it exits.
type Bye struct{}

// Unknown carries a line whose first token is not part of the protocol.
// Engines emit vendor diagnostics freely; these are logged, never fatal.
type Unknown struct {
	Raw string
}

func (ID) message()      {}
func (UCCIOk) message()  {}
func (ReadyOk) message() {}
func (Info) message()    {}
func (Best) message()    {}
func (Option) message()  {}
func (Bye) message()     {}
func (Unknown) message() {}
