package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/position"
)

// maxCodeAttempts bounds the retries when a drawn room code is taken.
const maxCodeAttempts = 64

// Registry creates, looks up and removes sessions.
type Registry struct {
	store  Store
	engine rules.Engine
	logger *zap.Logger
	codes  func() string
	now    func() time.Time

	// byConn is the reverse index connection id → session ids.
	idxMu  sync.Mutex
	byConn map[string]map[string]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithCodeSource replaces the room code generator.
func WithCodeSource(fn func() string) Option {
	return func(r *Registry) { r.codes = fn }
}

// WithNow replaces the wall clock used by the reaper.
func WithNow(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

// New creates a registry on top of store.
func New(store Store, engine rules.Engine, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		engine: engine,
		logger: logger,
		codes:  RoomCode,
		now:    time.Now,
		byConn: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RoomCode draws a four-digit room code in [1000, 9999].
func RoomCode() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// Create builds a pending session with owner seated as White and stores it
// under a room code no live session holds.
func (r *Registry) Create(cfg domain.GameConfig, owner, ownerName string, now time.Time) (*domain.Session, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	start, pos, err := r.startPosition(cfg)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		s := domain.NewSession(r.codes(), cfg, start, pos, owner, ownerName, now)
		if !r.store.Insert(s) {
			continue
		}
		r.bind(owner, s.ID)
		r.logger.Info("game created",
			zap.String("game_id", s.ID),
			zap.String("variant", string(cfg.Variant)),
			zap.Int("time_limit_s", cfg.TimeLimitSeconds),
			zap.Int("increment_s", cfg.IncrementSeconds),
			zap.String("conn_id", owner))
		return s, nil
	}
	return nil, domain.ErrNoCapacity
}

func (r *Registry) startPosition(cfg domain.GameConfig) (domain.StartPosition, *rules.Position, error) {
	start := domain.StartPosition{Variant: cfg.Variant}

	var fen string
	switch cfg.Variant {
	case domain.VariantChess960:
		gen, err := position.Generate(cfg.StartingIndex)
		if err != nil {
			if errors.Is(err, position.ErrIndexOutOfRange) {
				return start, nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
			}
			return start, nil, err
		}
		// the engine castles only from the standard home squares, so the
		// shuffled start keeps just the rights it can honour
		fen, _, err = rules.RestrictCastling(gen.FEN)
		if err != nil {
			return start, nil, err
		}
		start.FEN = gen.FEN
		start.Index = &gen.Index
	case domain.VariantCustom:
		fen = cfg.CustomFEN
	}

	pos, err := r.engine.NewPosition(fen)
	if err != nil {
		return start, nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if r.engine.Terminal(pos) != rules.NotTerminal {
		return start, nil, fmt.Errorf("%w: starting position is already decided", domain.ErrInvalidConfig)
	}
	if start.FEN == "" {
		start.FEN = pos.FEN()
	}
	return start, pos, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrRoomCodeRequired
	}
	s, ok := r.store.Get(id)
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return s, nil
}

// Join seats connID in session id. See domain.Session.Seat for the rules.
func (r *Registry) Join(id, connID, name string, now time.Time) (*domain.Session, domain.JoinResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, domain.JoinResult{}, err
	}

	s.Lock()
	res, err := s.Seat(connID, name, now)
	s.Unlock()
	if err != nil {
		return nil, domain.JoinResult{}, err
	}

	r.bind(connID, id)
	if res.Started {
		r.logger.Info("game started", zap.String("game_id", id), zap.String("conn_id", connID))
	}
	return s, res, nil
}

// Remove deletes session id and drops it from the connection index.
func (r *Registry) Remove(id string) bool {
	s, ok := r.store.Get(id)
	if !ok {
		return false
	}
	s.Lock()
	members := s.Members()
	s.Unlock()

	if !r.store.Delete(id) {
		return false
	}
	for _, connID := range members {
		r.unbind(connID, id)
	}
	return true
}

// List returns every live session.
func (r *Registry) List() []*domain.Session {
	return r.store.List()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.store.Len()
}

// SessionsOf returns the ids of the sessions connID belongs to.
func (r *Registry) SessionsOf(connID string) []string {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	ids := make([]string, 0, len(r.byConn[connID]))
	for id := range r.byConn[connID] {
		ids = append(ids, id)
	}
	return ids
}

// Forget drops connID from the index and returns the sessions it belonged to.
func (r *Registry) Forget(connID string) []string {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	ids := make([]string, 0, len(r.byConn[connID]))
	for id := range r.byConn[connID] {
		ids = append(ids, id)
	}
	delete(r.byConn, connID)
	return ids
}

func (r *Registry) bind(connID, sessionID string) {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][sessionID] = struct{}{}
}

func (r *Registry) unbind(connID, sessionID string) {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	delete(r.byConn[connID], sessionID)
	if len(r.byConn[connID]) == 0 {
		delete(r.byConn, connID)
	}
}

// Sweep removes every finished session created more than retention ago and
// returns the removed ids. Pending and active sessions are never removed.
func (r *Registry) Sweep(now time.Time, retention time.Duration) []string {
	var removed []string
	for _, s := range r.store.List() {
		s.Lock()
		expired := s.Finished() && now.Sub(s.CreatedAt) > retention
		s.Unlock()
		if !expired {
			continue
		}
		if r.Remove(s.ID) {
			removed = append(removed, s.ID)
			r.logger.Info("cleaned up old game", zap.String("game_id", s.ID))
		}
	}
	return removed
}

// RunReaper sweeps every interval until ctx is cancelled.
func (r *Registry) RunReaper(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now(), retention)
		}
	}
}
