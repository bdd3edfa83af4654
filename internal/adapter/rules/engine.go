// Package rules adapts a chess rules engine to the contract used by the relay:
// positions are opaque values, moves are applied functionally, and terminal
// states are reported as a closed set of flags.
package rules

import "errors"

var (
	// ErrIllegalMove is returned when the engine refuses a move, including
	// moves that cannot be parsed.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidPosition is returned for unparsable starting descriptors.
	ErrInvalidPosition = errors.New("invalid position")
)

// Color is the side to move in a position.
type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Terminal is the terminal state of a position.
type Terminal int

const (
	NotTerminal Terminal = iota
	Checkmate
	Stalemate
	ThreefoldRepetition
	InsufficientMaterial
	OtherDraw
)

// Move is a candidate move as submitted by a client. Either From/To (with an
// explicit Promotion piece when a pawn reaches the last rank) or SAN is set.
type Move struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
}

// Applied describes a move the engine accepted.
type Applied struct {
	Color     string `json:"color"` // "w" or "b"
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
	Check     bool   `json:"check,omitempty"`
	Capture   bool   `json:"capture,omitempty"`
}

// Engine is the rules-engine contract consumed by the session core.
type Engine interface {
	// NewPosition builds a position from a FEN; an empty string yields the
	// standard initial position.
	NewPosition(fen string) (*Position, error)
	// LegalMoves lists the legal moves, optionally only those leaving from.
	LegalMoves(pos *Position, from string) []Applied
	// ApplyMove returns the position after mv without modifying pos.
	ApplyMove(pos *Position, mv Move) (*Position, Applied, error)
	Terminal(pos *Position) Terminal
	InCheck(pos *Position) bool
}
