package service

import (
	"context"

	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// drawLocked runs fn with the offering or answering side of connID after the
// checks shared by every draw request.
func (s *Service) drawLocked(sess *domain.Session, connID string, fn func(side domain.Side) ([]domain.Event, error)) ([]domain.Event, error) {
	if sess.Finished() {
		return nil, domain.ErrGameOver
	}
	side, seated := sess.SideOf(connID)
	if !seated {
		return nil, domain.ErrNotAParticipant
	}
	if sess.Phase == domain.PhasePending {
		return nil, domain.ErrGameNotStarted
	}
	return fn(side)
}

func (s *Service) withSession(sessionID string, fn func(sess *domain.Session) ([]domain.Event, error)) error {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Lock()
	events, err := fn(sess)
	sess.Unlock()

	s.publish(events)
	return err
}

// OfferDraw records a draw offer by the requester's side and tells the room.
// Offering while the opponent's offer is pending agrees to the draw.
func (s *Service) OfferDraw(ctx context.Context, sessionID, connID string) error {
	return s.withSession(sessionID, func(sess *domain.Session) ([]domain.Event, error) {
		return s.drawLocked(sess, connID, func(side domain.Side) ([]domain.Event, error) {
			if sess.DrawOfferedBy != nil && *sess.DrawOfferedBy == side.Other() {
				return s.agreeLocked(sess), nil
			}
			sess.DrawOfferedBy = domain.SidePtr(side)
			return []domain.Event{roomEvent(sess, domain.EventTypeDrawOffered, domain.DrawPayload{By: side}, "")}, nil
		})
	})
}

// AcceptDraw finishes the game by agreement. Only the opponent of the side
// that offered may accept.
func (s *Service) AcceptDraw(ctx context.Context, sessionID, connID string) error {
	return s.withSession(sessionID, func(sess *domain.Session) ([]domain.Event, error) {
		return s.drawLocked(sess, connID, func(side domain.Side) ([]domain.Event, error) {
			if sess.DrawOfferedBy == nil || *sess.DrawOfferedBy != side.Other() {
				return nil, domain.ErrNoDrawOffer
			}
			return s.agreeLocked(sess), nil
		})
	})
}

// DeclineDraw withdraws a pending offer made by the opponent.
func (s *Service) DeclineDraw(ctx context.Context, sessionID, connID string) error {
	return s.withSession(sessionID, func(sess *domain.Session) ([]domain.Event, error) {
		return s.drawLocked(sess, connID, func(side domain.Side) ([]domain.Event, error) {
			if sess.DrawOfferedBy == nil || *sess.DrawOfferedBy != side.Other() {
				return nil, domain.ErrNoDrawOffer
			}
			sess.DrawOfferedBy = nil
			return []domain.Event{roomEvent(sess, domain.EventTypeDrawDeclined, domain.DrawPayload{By: side}, "")}, nil
		})
	})
}

func (s *Service) agreeLocked(sess *domain.Session) []domain.Event {
	sess.Finish(nil, domain.ReasonAgreement, s.now())
	s.logFinished(sess)
	return []domain.Event{gameOverEvent(sess)}
}
