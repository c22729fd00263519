// Package board tracks a xiangqi position for display and for assembling
// position commands. It applies coordinate moves without judging their
// legality; rules, move generation and evaluation live inside the engine.
package board

import (
	"fmt"
	"strings"

	"xiangqi/internal/core"
)

const (
	// StartingFEN is the standard xiangqi opening layout, red to move.
	StartingFEN = "rnbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR w"

	ranks = 10
	files = 9
)

// Board holds 10 ranks by 9 files. Rank 0 is red's back rank; squares use
// the UCCI coordinate form, files a-i and ranks 0-9 ("h2e2").
type Board struct {
	squares [ranks][files]byte // FEN piece letters, 0 for empty
	turn    core.Color
}

var pieceLetters = map[byte]bool{
	'K': true, 'A': true, 'B': true, 'N': true, 'R': true, 'C': true, 'P': true,
	'k': true, 'a': true, 'b': true, 'n': true, 'r': true, 'c': true, 'p': true,
}

// ParseFEN parses the board and side-to-move fields. Trailing clock
// fields some engines append are tolerated and ignored.
func ParseFEN(fen string) (*Board, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid FEN: need board and side to move")
	}

	rows := strings.Split(parts[0], "/")
	if len(rows) != ranks {
		return nil, fmt.Errorf("invalid FEN: expected %d ranks, got %d", ranks, len(rows))
	}

	b := &Board{}
	// FEN lists ranks from black's side down, so row 0 is rank 9.
	for i, row := range rows {
		r := ranks - 1 - i
		f := 0
		for _, ch := range row {
			if ch >= '1' && ch <= '9' {
				f += int(ch - '0')
				continue
			}
			if f >= files {
				return nil, fmt.Errorf("invalid FEN: too many squares in rank %d", r)
			}
			if !pieceLetters[byte(ch)] {
				return nil, fmt.Errorf("invalid FEN: piece %q", ch)
			}
			b.squares[r][f] = byte(ch)
			f++
		}
		if f != files {
			return nil, fmt.Errorf("invalid FEN: rank %d has %d files", r, f)
		}
	}

	switch parts[1] {
	case "w":
		b.turn = core.ColorRed
	case "b":
		b.turn = core.ColorBlack
	default:
		return nil, fmt.Errorf("invalid FEN: side to move must be 'w' or 'b'")
	}

	return b, nil
}

// New returns the starting position.
func New() *Board {
	b, _ := ParseFEN(StartingFEN)
	return b
}

// FEN generates the board and side-to-move fields.
func (b *Board) FEN() string {
	var sb strings.Builder
	for r := ranks - 1; r >= 0; r-- {
		empty := 0
		for f := 0; f < files; f++ {
			p := b.squares[r][f]
			if p == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}
	sb.WriteByte(' ')
	sb.WriteByte(byte(b.turn))
	return sb.String()
}

// Turn reports whose move it is.
func (b *Board) Turn() core.Color {
	return b.turn
}

// PieceAt returns the piece letter on a square like "h2", or 0.
func (b *Board) PieceAt(square string) byte {
	r, f, err := parseSquare(square)
	if err != nil {
		return 0
	}
	return b.squares[r][f]
}

// ApplyMove applies a 4-character coordinate move ("h2e2"). Only the
// coordinate form and source occupancy are checked; legality is the
// engine's business.
func (b *Board) ApplyMove(move string) error {
	if len(move) != 4 {
		return fmt.Errorf("move must be 4 characters like h2e2, got %q", move)
	}
	fr, ff, err := parseSquare(move[:2])
	if err != nil {
		return fmt.Errorf("move %q: %w", move, err)
	}
	tr, tf, err := parseSquare(move[2:])
	if err != nil {
		return fmt.Errorf("move %q: %w", move, err)
	}

	piece := b.squares[fr][ff]
	if piece == 0 {
		return fmt.Errorf("move %q: no piece on %s", move, move[:2])
	}

	b.squares[fr][ff] = 0
	b.squares[tr][tf] = piece
	b.turn = b.turn.Opposite()
	return nil
}

func parseSquare(sq string) (r, f int, err error) {
	if len(sq) != 2 || sq[0] < 'a' || sq[0] > 'i' || sq[1] < '0' || sq[1] > '9' {
		return 0, 0, fmt.Errorf("bad square %q", sq)
	}
	return int(sq[1] - '0'), int(sq[0] - 'a'), nil
}

// IsRed reports whether a piece letter belongs to red (upper case).
func IsRed(piece byte) bool {
	return piece >= 'A' && piece <= 'Z'
}
