package domain

import (
	"sync"
	"time"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/clock"
)

// Participant occupies one side of a session.
type Participant struct {
	ConnID    string `json:"-"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// MoveRecord is one entry of the append-only move history.
type MoveRecord struct {
	Move      rules.Applied `json:"move"`
	FEN       string        `json:"fen"`
	Timestamp int64         `json:"timestamp"` // Unix milliseconds
}

// Outcome records how a finished session ended. A nil Winner is a draw.
type Outcome struct {
	Winner *Side  `json:"winner"`
	Reason Reason `json:"reason"`
}

// StartPosition describes the position a session started from.
type StartPosition struct {
	FEN     string  `json:"fen"`
	Variant Variant `json:"variant"`
	Index   *int    `json:"position_number,omitempty"`
}

// Session is the authoritative state of one game. All fields are guarded by
// the session lock; callers must hold it (Lock/Unlock) while reading or
// mutating them.
type Session struct {
	mu sync.Mutex

	ID            string
	Config        GameConfig
	Start         StartPosition
	Players       [2]*Participant
	Observers     map[string]struct{}
	Position      *rules.Position
	History       []MoveRecord
	Clock         clock.Clock
	Phase         Phase
	Outcome       *Outcome
	DrawOfferedBy *Side
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// NewSession creates a pending session with owner seated as White.
func NewSession(id string, cfg GameConfig, start StartPosition, pos *rules.Position, owner, ownerName string, now time.Time) *Session {
	if ownerName == "" {
		ownerName = "Player 1"
	}
	return &Session{
		ID:        id,
		Config:    cfg,
		Start:     start,
		Players:   [2]*Participant{{ConnID: owner, Name: ownerName, Connected: true}, nil},
		Observers: make(map[string]struct{}),
		Position:  pos,
		Clock:     clock.New(cfg.TimeLimitMs(), cfg.IncrementMs()),
		Phase:     PhasePending,
		CreatedAt: now,
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// JoinResult is the outcome of seating a connection.
type JoinResult struct {
	Role Role
	// Started is true only for the join that moved the session to active.
	Started bool
}

// Seat admits connID: a connection already seated keeps its side, an empty
// side of a pending session is filled (starting the game and its clock),
// anyone else watches unless the session is still pending.
func (s *Session) Seat(connID, name string, now time.Time) (JoinResult, error) {
	if side, ok := s.SideOf(connID); ok {
		return JoinResult{Role: RoleOf(side)}, nil
	}
	if _, ok := s.Observers[connID]; ok {
		return JoinResult{Role: RoleObserver}, nil
	}

	if s.Phase == PhasePending {
		for i, p := range s.Players {
			if p != nil {
				continue
			}
			side := Side(i)
			if name == "" {
				name = "Player 2"
			}
			s.Players[i] = &Participant{ConnID: connID, Name: name, Connected: true}
			s.Phase = PhaseActive
			s.Clock.Start(now)
			return JoinResult{Role: RoleOf(side), Started: true}, nil
		}
		return JoinResult{}, ErrGameIsFull
	}

	s.Observers[connID] = struct{}{}
	return JoinResult{Role: RoleObserver}, nil
}

// SideOf returns the side connID occupies.
func (s *Session) SideOf(connID string) (Side, bool) {
	for i, p := range s.Players {
		if p != nil && p.ConnID == connID {
			return Side(i), true
		}
	}
	return White, false
}

// IsMember reports whether connID is a player or an observer.
func (s *Session) IsMember(connID string) bool {
	if _, ok := s.SideOf(connID); ok {
		return true
	}
	_, ok := s.Observers[connID]
	return ok
}

// Members returns the connection ids of every player and observer.
func (s *Session) Members() []string {
	ids := make([]string, 0, 2+len(s.Observers))
	for _, p := range s.Players {
		if p != nil {
			ids = append(ids, p.ConnID)
		}
	}
	for id := range s.Observers {
		ids = append(ids, id)
	}
	return ids
}

// SideToMove returns the side whose turn it is.
func (s *Session) SideToMove() Side {
	if s.Position.Turn() == rules.Black {
		return Black
	}
	return White
}

// Finished reports whether the session has an outcome.
func (s *Session) Finished() bool {
	return s.Phase == PhaseFinished
}

// Finish moves the session to finished. It returns false if the session had
// already finished, leaving the first outcome in place.
func (s *Session) Finish(winner *Side, reason Reason, now time.Time) bool {
	if s.Phase == PhaseFinished {
		return false
	}
	s.Phase = PhaseFinished
	s.Outcome = &Outcome{Winner: winner, Reason: reason}
	s.DrawOfferedBy = nil
	s.FinishedAt = now
	return true
}

// SidePtr returns a pointer to a copy of side, for outcomes.
func SidePtr(side Side) *Side {
	return &side
}
