package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/clock"
	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// Snapshot returns the full state of a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()
	snap := s.snapshotLocked(sess, s.now())
	return &snap, nil
}

// ExportPGN renders the game as PGN.
func (s *Service) ExportPGN(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return "", err
	}
	sess.Lock()
	defer sess.Unlock()
	return pgnOf(sess), nil
}

// ExportFEN returns the current position as FEN.
func (s *Service) ExportFEN(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return "", err
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.Position.FEN(), nil
}

// LegalMoves lists the moves available to the side to move, optionally only
// those leaving from. Finished games have none.
func (s *Service) LegalMoves(ctx context.Context, sessionID, from string) ([]rules.Applied, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Finished() {
		return []rules.Applied{}, nil
	}
	moves := s.engine.LegalMoves(sess.Position, from)
	if moves == nil {
		moves = []rules.Applied{}
	}
	return moves, nil
}

// snapshotLocked copies everything a client needs to rebuild the game. The
// result shares no mutable state with sess.
func (s *Service) snapshotLocked(sess *domain.Session, now time.Time) domain.Snapshot {
	turn := sess.SideToMove()
	terminal := s.engine.Terminal(sess.Position)

	snap := domain.Snapshot{
		ID:            sess.ID,
		FEN:           sess.Position.FEN(),
		PGN:           pgnOf(sess),
		Turn:          turn,
		Phase:         sess.Phase,
		MoveHistory:   append([]domain.MoveRecord{}, sess.History...),
		Players:       domain.Players{White: copyParticipant(sess.Players[domain.White]), Black: copyParticipant(sess.Players[domain.Black])},
		Observers:     len(sess.Observers),
		Config:        sess.Config,
		StartPosition: sess.Start,
		Clocks:        clocksOf(sess),
		GameOver:      sess.Finished(),
		Result:        sess.Outcome,
		DrawOfferedBy: sess.DrawOfferedBy,
		InCheck:       s.engine.InCheck(sess.Position),
		IsCheckmate:   terminal == rules.Checkmate,
		IsStalemate:   terminal == rules.Stalemate,
		IsDraw: terminal == rules.Stalemate || terminal == rules.ThreefoldRepetition ||
			terminal == rules.InsufficientMaterial || terminal == rules.OtherDraw,
		ServerTime: now.UnixMilli(),
	}
	if sess.Phase == domain.PhaseActive {
		remaining := sess.Clock.Remaining(clock.Side(turn), now)
		if turn == domain.White {
			snap.Clocks.White = remaining
		} else {
			snap.Clocks.Black = remaining
		}
		snap.ClockRunning = domain.SidePtr(turn)
	}
	return snap
}

func copyParticipant(p *domain.Participant) *domain.Participant {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func pgnOf(sess *domain.Session) string {
	result := resultToken(sess.Outcome)

	name := func(side domain.Side) string {
		if p := sess.Players[side]; p != nil {
			return p.Name
		}
		return "?"
	}
	tags := []rules.Tag{
		{Key: "Event", Value: "Casual game"},
		{Key: "Site", Value: "Chess relay"},
		{Key: "Date", Value: sess.CreatedAt.UTC().Format("2006.01.02")},
		{Key: "Round", Value: "-"},
		{Key: "White", Value: name(domain.White)},
		{Key: "Black", Value: name(domain.Black)},
		{Key: "Result", Value: result},
		{Key: "TimeControl", Value: fmt.Sprintf("%d+%d", sess.Config.TimeLimitSeconds, sess.Config.IncrementSeconds)},
	}
	switch sess.Config.Variant {
	case domain.VariantChess960:
		tags = append(tags, rules.Tag{Key: "Variant", Value: "Chess960"})
	case domain.VariantCustom:
		tags = append(tags, rules.Tag{Key: "Variant", Value: "From Position"})
	}
	if sess.Config.Variant != domain.VariantStandard {
		tags = append(tags,
			rules.Tag{Key: "SetUp", Value: "1"},
			rules.Tag{Key: "FEN", Value: sess.Start.FEN})
	}
	tags = append(tags, rules.Tag{Key: "Termination", Value: termination(sess.Outcome)})

	return rules.PGN(sess.Position, tags, result)
}

func resultToken(o *domain.Outcome) string {
	switch {
	case o == nil:
		return "*"
	case o.Winner == nil:
		return "1/2-1/2"
	case *o.Winner == domain.White:
		return "1-0"
	default:
		return "0-1"
	}
}

func termination(o *domain.Outcome) string {
	if o == nil {
		return "unterminated"
	}
	switch o.Reason {
	case domain.ReasonTimeout:
		return "time forfeit"
	case domain.ReasonAbandonment:
		return "abandoned"
	}
	return "normal"
}
