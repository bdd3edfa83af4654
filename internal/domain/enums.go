// Package domain defines the core domain models for the chess relay.
package domain

import "fmt"

// Side is one of the two move-making participants.
type Side int

const (
	White Side = iota // first mover
	Black             // second mover
)

func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

// Other returns the opposing side.
func (s Side) Other() Side {
	return 1 - s
}

// MarshalText encodes the side as "white" or "black".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "white"/"w" or "black"/"b".
func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "white", "w":
		*s = White
	case "black", "b":
		*s = Black
	default:
		return fmt.Errorf("unknown side %q", string(b))
	}
	return nil
}

// Phase represents the lifecycle phase of a session.
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Reason explains how a finished session ended.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonRepetition           Reason = "repetition"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonDraw                 Reason = "draw"
	ReasonTimeout              Reason = "timeout"
	ReasonResignation          Reason = "resignation"
	ReasonAgreement            Reason = "agreement"
	ReasonAbandonment          Reason = "abandonment"
)

// Variant selects how the starting position is built.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantChess960 Variant = "chess960"
	VariantCustom   Variant = "custom"
)

// Role is how a connection takes part in a session.
type Role string

const (
	RoleWhite    Role = "white"
	RoleBlack    Role = "black"
	RoleObserver Role = "observer"
)

// RoleOf maps a side to its role.
func RoleOf(s Side) Role {
	if s == Black {
		return RoleBlack
	}
	return RoleWhite
}

// EventType represents the type of a pushed event.
type EventType string

const (
	EventTypeGameStart    EventType = "game_start"
	EventTypeMoveMade     EventType = "move_made"
	EventTypeDrawOffered  EventType = "draw_offered"
	EventTypeDrawDeclined EventType = "draw_declined"
	EventTypeGameOver     EventType = "game_over"
)
