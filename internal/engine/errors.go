package engine

import (
	"errors"
	"fmt"
)

// ErrChannelClosed is returned by LineChannel.Send after the outbound pipe
// has been torn down. Writes fail fast instead of blocking.
var ErrChannelClosed = errors.New("engine channel closed")

// ErrSessionClosed is returned for commands issued to a terminated session.
var ErrSessionClosed = errors.New("session closed")

// ErrNotReady rejects a command that requires the Ready state, including a
// second StartSearch issued while one is already in flight. Searches are
// rejected, never queued.
var ErrNotReady = errors.New("session is not ready")

// ErrNotSearching rejects a stop with no search in flight.
var ErrNotSearching = errors.New("no search in progress")

// SpawnError reports a failure to launch the engine executable. Fatal to
// session creation; there is no retry.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProtocolViolation reports a semantically required message that arrived
// malformed. It terminates the session: once the wire is out of step,
// correctness of in-flight search state cannot be assumed.
type ProtocolViolation struct {
	Line   string
	Detail string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation on %q: %s", e.Line, e.Detail)
}
