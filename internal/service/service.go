// Package service arbitrates every state transition of a session: creation,
// joining, moves, resignation, draw offers, disconnects and flag-fall.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/policy"
	"github.com/Feddakalkun/chess-platform/internal/registry"
)

// Publisher delivers events to connections. Publish must not block on
// network I/O.
type Publisher interface {
	Publish(ev domain.Event)
}

type Service struct {
	registry     *registry.Registry
	engine       rules.Engine
	policyEngine *policy.Engine
	publisher    Publisher
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow replaces the wall clock.
func WithNow(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// New creates the service. policyEngine may be nil, in which case every valid
// configuration is admitted.
func New(reg *registry.Registry, engine rules.Engine, policyEngine *policy.Engine, publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		registry:     reg,
		engine:       engine,
		policyEngine: policyEngine,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(events []domain.Event) {
	for _, ev := range events {
		s.publisher.Publish(ev)
	}
}

// roomEvent addresses every member of sess except the connection except.
// The caller must hold the session lock.
func roomEvent(sess *domain.Session, typ domain.EventType, payload any, except string) domain.Event {
	members := sess.Members()
	recipients := make([]string, 0, len(members))
	for _, id := range members {
		if id != except {
			recipients = append(recipients, id)
		}
	}
	return domain.Event{Type: typ, SessionID: sess.ID, Recipients: recipients, Payload: payload}
}

// gameOverEvent must be built after sess.Finish.
func gameOverEvent(sess *domain.Session) domain.Event {
	return roomEvent(sess, domain.EventTypeGameOver, *sess.Outcome, "")
}

func clocksOf(sess *domain.Session) domain.Clocks {
	return domain.Clocks{
		White: sess.Clock.RemainingMs[domain.White],
		Black: sess.Clock.RemainingMs[domain.Black],
	}
}

func (s *Service) logFinished(sess *domain.Session) {
	fields := []zap.Field{
		zap.String("game_id", sess.ID),
		zap.String("reason", string(sess.Outcome.Reason)),
		zap.Int("plies", len(sess.History)),
	}
	if sess.Outcome.Winner != nil {
		fields = append(fields, zap.Stringer("winner", *sess.Outcome.Winner))
	}
	s.logger.Info("game over", fields...)
}
