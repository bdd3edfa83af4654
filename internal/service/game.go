package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/clock"
	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// CreateResult is returned to the creator of a session.
type CreateResult struct {
	SessionID     string               `json:"session_id"`
	Side          domain.Side          `json:"side"`
	Config        domain.GameConfig    `json:"config"`
	StartPosition domain.StartPosition `json:"start_position"`
}

// JoinResult is returned to a joining connection.
type JoinResult struct {
	Role  domain.Role     `json:"role"`
	State domain.Snapshot `json:"state"`
}

// MoveResult confirms an accepted move to the mover.
type MoveResult struct {
	Move     rules.Applied   `json:"move"`
	FEN      string          `json:"fen"`
	Turn     domain.Side     `json:"turn"`
	Clocks   domain.Clocks   `json:"clocks"`
	Ply      int             `json:"ply"`
	GameOver bool            `json:"game_over"`
	Result   *domain.Outcome `json:"result,omitempty"`
}

// CreateGame validates cfg against the admission policy and opens a pending
// session with connID seated as White.
func (s *Service) CreateGame(ctx context.Context, connID, playerName string, cfg domain.GameConfig) (*CreateResult, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if s.policyEngine != nil {
		if err := s.policyEngine.Admit(ctx, cfg); err != nil {
			return nil, err
		}
	}

	sess, err := s.registry.Create(cfg, connID, playerName, s.now())
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		SessionID:     sess.ID,
		Side:          domain.White,
		Config:        sess.Config,
		StartPosition: sess.Start,
	}, nil
}

// JoinGame seats connID in the session or admits it as an observer. The join
// that starts the game sends the waiting creator a game_start snapshot.
func (s *Service) JoinGame(ctx context.Context, sessionID, connID, playerName string) (*JoinResult, error) {
	now := s.now()
	sess, res, err := s.registry.Join(sessionID, connID, playerName, now)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	sess.Lock()
	snap := s.snapshotLocked(sess, now)
	if res.Started {
		if creator := sess.Players[domain.White]; creator != nil && creator.ConnID != connID {
			events = append(events, domain.Event{
				Type:       domain.EventTypeGameStart,
				SessionID:  sess.ID,
				Recipients: []string{creator.ConnID},
				Payload:    snap,
			})
		}
	}
	sess.Unlock()

	s.publish(events)
	return &JoinResult{Role: res.Role, State: snap}, nil
}

// SubmitMove gates and applies a move. Checks run in a fixed order: game
// over, turn ownership, flag-fall and finally legality. Only the clock debit
// survives a rejected move.
func (s *Service) SubmitMove(ctx context.Context, sessionID, connID string, mv rules.Move) (*MoveResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	res, events, err := s.submitLocked(sess, connID, mv)
	sess.Unlock()

	s.publish(events)
	return res, err
}

func (s *Service) submitLocked(sess *domain.Session, connID string, mv rules.Move) (*MoveResult, []domain.Event, error) {
	if sess.Finished() {
		return nil, nil, domain.ErrGameOver
	}
	side, seated := sess.SideOf(connID)
	if !seated || side != sess.SideToMove() {
		return nil, nil, domain.ErrNotYourTurn
	}
	if sess.Phase == domain.PhasePending {
		return nil, nil, domain.ErrGameNotStarted
	}

	now := s.now()
	if sess.Clock.Debit(clock.Side(side), now) {
		sess.Finish(domain.SidePtr(side.Other()), domain.ReasonTimeout, now)
		s.logFinished(sess)
		return nil, []domain.Event{gameOverEvent(sess)}, domain.ErrTimeRanOut
	}

	next, applied, err := s.applyMove(sess.Position, mv)
	if err != nil {
		s.logger.Debug("move rejected",
			zap.String("game_id", sess.ID),
			zap.String("conn_id", connID),
			zap.Any("move", mv),
			zap.Error(err))
		return nil, nil, domain.ErrIllegalMove
	}

	sess.Clock.Credit(clock.Side(side))
	sess.Position = next
	sess.History = append(sess.History, domain.MoveRecord{
		Move:      applied,
		FEN:       next.FEN(),
		Timestamp: now.UnixMilli(),
	})
	sess.DrawOfferedBy = nil

	res := &MoveResult{
		Move:   applied,
		FEN:    next.FEN(),
		Turn:   sess.SideToMove(),
		Clocks: clocksOf(sess),
		Ply:    len(sess.History),
	}
	events := []domain.Event{roomEvent(sess, domain.EventTypeMoveMade, domain.MoveMadePayload{
		Move:   applied,
		FEN:    res.FEN,
		Turn:   res.Turn,
		Clocks: res.Clocks,
		Ply:    res.Ply,
	}, connID)}

	if winner, reason, over := s.outcomeOf(next, side); over {
		sess.Finish(winner, reason, now)
		s.logFinished(sess)
		res.GameOver = true
		res.Result = sess.Outcome
		events = append(events, gameOverEvent(sess))
	}
	return res, events, nil
}

// applyMove turns engine refusals and engine panics into errors.
func (s *Service) applyMove(pos *rules.Position, mv rules.Move) (next *rules.Position, applied rules.Applied, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("rules engine panicked", zap.Any("panic", r), zap.Any("move", mv))
			next, applied, err = nil, rules.Applied{}, rules.ErrIllegalMove
		}
	}()
	return s.engine.ApplyMove(pos, mv)
}

// outcomeOf maps the terminal state reached by mover's move to an outcome.
func (s *Service) outcomeOf(pos *rules.Position, mover domain.Side) (*domain.Side, domain.Reason, bool) {
	switch s.engine.Terminal(pos) {
	case rules.Checkmate:
		return domain.SidePtr(mover), domain.ReasonCheckmate, true
	case rules.Stalemate:
		return nil, domain.ReasonStalemate, true
	case rules.ThreefoldRepetition:
		return nil, domain.ReasonRepetition, true
	case rules.InsufficientMaterial:
		return nil, domain.ReasonInsufficientMaterial, true
	case rules.OtherDraw:
		return nil, domain.ReasonDraw, true
	}
	return nil, "", false
}

// Resign ends the game in favour of the other side. Resigning a game nobody
// has joined yet closes it without a winner.
func (s *Service) Resign(ctx context.Context, sessionID, connID string) error {
	return s.withSession(sessionID, func(sess *domain.Session) ([]domain.Event, error) {
		if sess.Finished() {
			return nil, domain.ErrGameOver
		}
		side, seated := sess.SideOf(connID)
		if !seated {
			return nil, domain.ErrNotAParticipant
		}
		var winner *domain.Side
		if sess.Phase == domain.PhaseActive {
			winner = domain.SidePtr(side.Other())
		}
		sess.Finish(winner, domain.ReasonResignation, s.now())
		s.logFinished(sess)
		return []domain.Event{gameOverEvent(sess)}, nil
	})
}
