package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/clock"
	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// Disconnect removes connID from every session it belongs to. A player
// leaving an unfinished game abandons it; the remaining side wins when the
// game had started.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	for _, id := range s.registry.Forget(connID) {
		err := s.withSession(id, func(sess *domain.Session) ([]domain.Event, error) {
			return s.leaveLocked(sess, connID), nil
		})
		if err != nil {
			s.logger.Debug("disconnect from removed game", zap.String("game_id", id), zap.String("conn_id", connID))
		}
	}
}

func (s *Service) leaveLocked(sess *domain.Session, connID string) []domain.Event {
	delete(sess.Observers, connID)

	side, seated := sess.SideOf(connID)
	if !seated {
		return nil
	}
	sess.Players[side].Connected = false
	if sess.Finished() {
		return nil
	}

	var winner *domain.Side
	if sess.Phase == domain.PhaseActive {
		winner = domain.SidePtr(side.Other())
	}
	sess.Finish(winner, domain.ReasonAbandonment, s.now())
	s.logFinished(sess)
	return []domain.Event{roomEvent(sess, domain.EventTypeGameOver, *sess.Outcome, connID)}
}

// RunTimeoutMonitor ends games whose side to move has run out of time without
// waiting for that side's next move attempt.
func (s *Service) RunTimeoutMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepTimeouts(ctx)
		}
	}
}

// SweepTimeouts finishes every active game whose running clock is empty and
// returns how many it finished.
func (s *Service) SweepTimeouts(ctx context.Context) int {
	now := s.now()
	finished := 0
	for _, sess := range s.registry.List() {
		if ctx.Err() != nil {
			break
		}

		var events []domain.Event
		sess.Lock()
		if sess.Phase == domain.PhaseActive {
			side := sess.SideToMove()
			if sess.Clock.Remaining(clock.Side(side), now) == 0 && sess.Clock.Debit(clock.Side(side), now) {
				sess.Finish(domain.SidePtr(side.Other()), domain.ReasonTimeout, now)
				s.logFinished(sess)
				events = append(events, gameOverEvent(sess))
			}
		}
		sess.Unlock()

		if len(events) > 0 {
			finished++
			s.publish(events)
		}
	}
	return finished
}

// RemoveGame deletes a session regardless of its phase.
func (s *Service) RemoveGame(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrRoomCodeRequired
	}
	if !s.registry.Remove(sessionID) {
		return domain.ErrGameNotFound
	}
	s.logger.Info("game removed", zap.String("game_id", sessionID))
	return nil
}

// Stats counts live sessions by phase.
type Stats struct {
	Games    int `json:"games"`
	Pending  int `json:"pending"`
	Active   int `json:"active"`
	Finished int `json:"finished"`
}

func (s *Service) Stats(ctx context.Context) Stats {
	var st Stats
	for _, sess := range s.registry.List() {
		sess.Lock()
		phase := sess.Phase
		sess.Unlock()

		st.Games++
		switch phase {
		case domain.PhasePending:
			st.Pending++
		case domain.PhaseActive:
			st.Active++
		case domain.PhaseFinished:
			st.Finished++
		}
	}
	return st
}
