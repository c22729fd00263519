// Package core holds the small shared vocabulary: side colors and the
// error codes of the HTTP surface.
package core

// Color identifies a side. Xiangqi's red moves first and maps to 'w' in
// engine FEN notation.
type Color byte

const (
	ColorRed   Color = 'w'
	ColorBlack Color = 'b'
)

func (c Color) String() string {
	if c == ColorRed {
		return "red"
	}
	return "black"
}

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == ColorRed {
		return ColorBlack
	}
	return ColorRed
}

// Error codes
const (
	ErrSessionNotFound = "SESSION_NOT_FOUND"
	ErrSessionClosed   = "SESSION_CLOSED"
	ErrSpawnFailed     = "SPAWN_FAILED"
	ErrNotReady        = "NOT_READY"
	ErrNotSearching    = "NOT_SEARCHING"
	ErrInvalidRequest  = "INVALID_REQUEST"
	ErrInvalidFEN      = "INVALID_FEN"
	ErrUnknownEngine   = "UNKNOWN_ENGINE"
	ErrInternalError   = "INTERNAL_ERROR"
	ErrHistoryDisabled = "HISTORY_DISABLED"
)
