package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/policy"
	"github.com/Feddakalkun/chess-platform/internal/registry"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(typ domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	reg   *registry.Registry
	pub   *recorder
	clock *fakeClock
}

func newFixture(t *testing.T, engine rules.Engine) *fixture {
	t.Helper()
	if engine == nil {
		engine = rules.NewChessEngine()
	}
	pe, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	clk := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	reg := registry.New(registry.NewMemoryStore(), engine, zap.NewNop(), registry.WithNow(clk.Now))
	pub := &recorder{}
	svc := New(reg, engine, pe, pub, zap.NewNop(), WithNow(clk.Now))
	return &fixture{svc: svc, reg: reg, pub: pub, clock: clk}
}

// start creates a game as "w" and joins it as "b".
func (f *fixture) start(t *testing.T, cfg domain.GameConfig) string {
	t.Helper()
	ctx := context.Background()
	created, err := f.svc.CreateGame(ctx, "w", "alice", cfg)
	require.NoError(t, err)
	_, err = f.svc.JoinGame(ctx, created.SessionID, "b", "bob")
	require.NoError(t, err)
	return created.SessionID
}

func (f *fixture) session(t *testing.T, id string) *domain.Session {
	t.Helper()
	sess, err := f.reg.Get(id)
	require.NoError(t, err)
	return sess
}

func mv(from, to string) rules.Move {
	return rules.Move{From: from, To: to}
}

func TestCreateAndJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	created, err := f.svc.CreateGame(ctx, "w", "alice", domain.GameConfig{Variant: domain.VariantStandard, TimeLimitSeconds: 300})
	require.NoError(t, err)
	assert.Equal(t, domain.White, created.Side)
	assert.Equal(t, rules.StandardFEN, created.StartPosition.FEN)
	assert.Len(t, created.SessionID, 4)

	joined, err := f.svc.JoinGame(ctx, created.SessionID, "b", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBlack, joined.Role)
	assert.Equal(t, domain.PhaseActive, joined.State.Phase)
	assert.Equal(t, "alice", joined.State.Players.White.Name)
	assert.Equal(t, "bob", joined.State.Players.Black.Name)

	starts := f.pub.ofType(domain.EventTypeGameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, []string{"w"}, starts[0].Recipients)

	watcher, err := f.svc.JoinGame(ctx, created.SessionID, "o", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, watcher.Role)
	assert.Equal(t, 1, watcher.State.Observers)
	assert.Len(t, f.pub.ofType(domain.EventTypeGameStart), 1, "game_start is sent once")
}

func TestCreateDeniedByPolicy(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateGame(context.Background(), "w", "", domain.GameConfig{TimeLimitSeconds: 5 * 3600})
	assert.True(t, errors.Is(err, domain.ErrPolicyDenied))
	assert.Equal(t, 0, f.reg.Len())
}

func TestSubmitMoveReplaysLikeEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	line := []rules.Move{
		mv("e2", "e4"), mv("e7", "e5"), mv("g1", "f3"), mv("b8", "c6"),
		mv("f1", "b5"), mv("a7", "a6"), mv("b5", "a4"), mv("g8", "f6"),
		mv("e1", "g1"), mv("f8", "e7"),
	}
	engine := rules.NewChessEngine()
	direct, err := engine.NewPosition("")
	require.NoError(t, err)

	for i, m := range line {
		conn := "w"
		if i%2 == 1 {
			conn = "b"
		}
		f.clock.Advance(time.Second)
		res, err := f.svc.SubmitMove(ctx, id, conn, m)
		require.NoError(t, err, "ply %d", i)

		direct, _, err = engine.ApplyMove(direct, m)
		require.NoError(t, err)
		assert.Equal(t, direct.FEN(), res.FEN)
	}

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, direct.FEN(), snap.FEN)
	assert.Len(t, snap.MoveHistory, len(line))
	assert.Equal(t, "O-O", snap.MoveHistory[8].Move.SAN)
}

func TestSubmitMoveNotYourTurnNeverMutates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	sess := f.session(t, id)
	sess.Lock()
	before := sess.Clock
	fen := sess.Position.FEN()
	sess.Unlock()

	f.clock.Advance(3 * time.Second)
	for _, conn := range []string{"b", "o", "stranger"} {
		_, err := f.svc.SubmitMove(ctx, id, conn, mv("e7", "e5"))
		assert.True(t, errors.Is(err, domain.ErrNotYourTurn), conn)
	}

	sess.Lock()
	defer sess.Unlock()
	assert.Equal(t, before, sess.Clock)
	assert.Equal(t, fen, sess.Position.FEN())
	assert.Empty(t, sess.History)
}

func TestSubmitMoveRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.SubmitMove(ctx, "", "w", mv("e2", "e4"))
	assert.True(t, errors.Is(err, domain.ErrRoomCodeRequired))
	_, err = f.svc.SubmitMove(ctx, "0000", "w", mv("e2", "e4"))
	assert.True(t, errors.Is(err, domain.ErrGameNotFound))

	created, err := f.svc.CreateGame(ctx, "w", "", domain.GameConfig{})
	require.NoError(t, err)
	_, err = f.svc.SubmitMove(ctx, created.SessionID, "w", mv("e2", "e4"))
	assert.True(t, errors.Is(err, domain.ErrGameNotStarted))
}

func TestIllegalMoveKeepsDebitWithoutIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{TimeLimitSeconds: 300, IncrementSeconds: 5})

	f.clock.Advance(1000 * time.Millisecond)
	_, err := f.svc.SubmitMove(ctx, id, "w", mv("e2", "e5"))
	assert.True(t, errors.Is(err, domain.ErrIllegalMove))

	sess := f.session(t, id)
	sess.Lock()
	defer sess.Unlock()
	assert.Equal(t, int64(299000), sess.Clock.RemainingMs[domain.White])
	assert.Equal(t, f.clock.Now(), sess.Clock.LastDebit)
	assert.Empty(t, sess.History)
	assert.Equal(t, domain.PhaseActive, sess.Phase)
}

func TestMissingPromotionIsIllegal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	created, err := f.svc.CreateGame(ctx, "w", "", domain.GameConfig{CustomFEN: "8/P6k/8/8/8/8/8/K7 w - - 0 1"})
	require.NoError(t, err)
	_, err = f.svc.JoinGame(ctx, created.SessionID, "b", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitMove(ctx, created.SessionID, "w", mv("a7", "a8"))
	assert.True(t, errors.Is(err, domain.ErrIllegalMove))

	res, err := f.svc.SubmitMove(ctx, created.SessionID, "w", rules.Move{From: "a7", To: "a8", Promotion: "n"})
	require.NoError(t, err)
	assert.Equal(t, "n", res.Move.Promotion)
}

type panickyEngine struct {
	*rules.ChessEngine
}

func (panickyEngine) ApplyMove(*rules.Position, rules.Move) (*rules.Position, rules.Applied, error) {
	panic("malformed move")
}

func TestEnginePanicBecomesIllegalMove(t *testing.T) {
	f := newFixture(t, panickyEngine{rules.NewChessEngine()})
	id := f.start(t, domain.GameConfig{})

	_, err := f.svc.SubmitMove(context.Background(), id, "w", rules.Move{SAN: "??"})
	assert.True(t, errors.Is(err, domain.ErrIllegalMove))
}

func TestFlagFallOnMoveAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{TimeLimitSeconds: 60})

	sess := f.session(t, id)
	sess.Lock()
	sess.Clock.RemainingMs[domain.White] = 500
	sess.Unlock()

	f.clock.Advance(500 * time.Millisecond)
	_, err := f.svc.SubmitMove(ctx, id, "w", mv("e2", "e4"))
	assert.True(t, errors.Is(err, domain.ErrTimeRanOut))

	sess.Lock()
	assert.Equal(t, domain.PhaseFinished, sess.Phase)
	require.NotNil(t, sess.Outcome)
	assert.Equal(t, domain.ReasonTimeout, sess.Outcome.Reason)
	assert.Equal(t, domain.Black, *sess.Outcome.Winner)
	assert.Equal(t, int64(0), sess.Clock.RemainingMs[domain.White])
	assert.Empty(t, sess.History)
	sess.Unlock()

	overs := f.pub.ofType(domain.EventTypeGameOver)
	require.Len(t, overs, 1)
	assert.ElementsMatch(t, []string{"w", "b"}, overs[0].Recipients)

	_, err = f.svc.SubmitMove(ctx, id, "w", mv("e2", "e4"))
	assert.True(t, errors.Is(err, domain.ErrGameOver))
}

func TestIncrementCreditedOnAcceptedMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{TimeLimitSeconds: 300, IncrementSeconds: 5})

	f.clock.Advance(1200 * time.Millisecond)
	res, err := f.svc.SubmitMove(ctx, id, "w", mv("e2", "e4"))
	require.NoError(t, err)
	assert.Equal(t, int64(300000-1200+5000), res.Clocks.White)
	assert.Equal(t, int64(300000), res.Clocks.Black)
}

func TestOpeningMoveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{Variant: domain.VariantStandard, TimeLimitSeconds: 300})

	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	f.clock.Advance(40 * time.Millisecond)
	res, err := f.svc.SubmitMove(ctx, id, "w", mv("e2", "e4"))
	require.NoError(t, err)
	assert.Equal(t, domain.Black, res.Turn)
	assert.Equal(t, "e4", res.Move.SAN)
	assert.InDelta(t, 300000, res.Clocks.White, 100)
	assert.False(t, res.GameOver)

	made := f.pub.ofType(domain.EventTypeMoveMade)
	require.Len(t, made, 1)
	assert.ElementsMatch(t, []string{"b", "o"}, made[0].Recipients, "the mover is confirmed by the response")
	payload := made[0].Payload.(domain.MoveMadePayload)
	assert.Equal(t, res.FEN, payload.FEN)
}

func TestCheckmateFinishesGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	moves := []rules.Move{mv("f2", "f3"), mv("e7", "e5"), mv("g2", "g4"), mv("d8", "h4")}
	var res *MoveResult
	for i, m := range moves {
		conn := "w"
		if i%2 == 1 {
			conn = "b"
		}
		var err error
		res, err = f.svc.SubmitMove(ctx, id, conn, m)
		require.NoError(t, err)
	}

	require.True(t, res.GameOver)
	assert.Equal(t, domain.ReasonCheckmate, res.Result.Reason)
	assert.Equal(t, domain.Black, *res.Result.Winner)

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.IsCheckmate)
	assert.True(t, snap.InCheck)
	assert.Nil(t, snap.ClockRunning)

	pgn, err := f.svc.ExportPGN(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, pgn, `[Result "0-1"]`)
	assert.Contains(t, pgn, "1. f3 e5 2. g4 Qh4# 0-1")

	overs := f.pub.ofType(domain.EventTypeGameOver)
	require.Len(t, overs, 1)
	assert.ElementsMatch(t, []string{"w", "b"}, overs[0].Recipients)
}

func TestResign(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		conn   string
		winner domain.Side
	}{
		{"w", domain.Black},
		{"b", domain.White},
	} {
		f := newFixture(t, nil)
		id := f.start(t, domain.GameConfig{})

		require.NoError(t, f.svc.Resign(ctx, id, tc.conn))
		snap, err := f.svc.Snapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonResignation, snap.Result.Reason)
		assert.Equal(t, tc.winner, *snap.Result.Winner)

		assert.True(t, errors.Is(f.svc.Resign(ctx, id, tc.conn), domain.ErrGameOver))
	}
}

func TestResignRequiresSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.Resign(ctx, id, "o"), domain.ErrNotAParticipant))
}

func TestDrawOfferAndAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	require.NoError(t, f.svc.OfferDraw(ctx, id, "w"))
	offers := f.pub.ofType(domain.EventTypeDrawOffered)
	require.Len(t, offers, 1)
	assert.ElementsMatch(t, []string{"w", "b"}, offers[0].Recipients)
	assert.Equal(t, domain.White, offers[0].Payload.(domain.DrawPayload).By)

	assert.True(t, errors.Is(f.svc.AcceptDraw(ctx, id, "w"), domain.ErrNoDrawOffer), "own offer")
	require.NoError(t, f.svc.AcceptDraw(ctx, id, "b"))

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAgreement, snap.Result.Reason)
	assert.Nil(t, snap.Result.Winner)
	assert.Nil(t, snap.DrawOfferedBy)

	pgn, err := f.svc.ExportPGN(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(pgn), "1/2-1/2"))
}

func TestDrawOfferLapsesOnMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	require.NoError(t, f.svc.OfferDraw(ctx, id, "b"))
	_, err := f.svc.SubmitMove(ctx, id, "w", mv("e2", "e4"))
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.AcceptDraw(ctx, id, "w"), domain.ErrNoDrawOffer))
}

func TestDeclineAndMutualDrawOffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	require.NoError(t, f.svc.OfferDraw(ctx, id, "w"))
	require.NoError(t, f.svc.DeclineDraw(ctx, id, "b"))
	require.Len(t, f.pub.ofType(domain.EventTypeDrawDeclined), 1)
	assert.True(t, errors.Is(f.svc.AcceptDraw(ctx, id, "b"), domain.ErrNoDrawOffer))

	require.NoError(t, f.svc.OfferDraw(ctx, id, "w"))
	require.NoError(t, f.svc.OfferDraw(ctx, id, "b"))

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAgreement, snap.Result.Reason)
}

func TestDrawRequiresStartedGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	created, err := f.svc.CreateGame(ctx, "w", "", domain.GameConfig{})
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.OfferDraw(ctx, created.SessionID, "w"), domain.ErrGameNotStarted))
	assert.True(t, errors.Is(f.svc.OfferDraw(ctx, created.SessionID, "x"), domain.ErrNotAParticipant))
}

func TestDisconnectAbandonsActiveGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	f.svc.Disconnect(ctx, "b")

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAbandonment, snap.Result.Reason)
	assert.Equal(t, domain.White, *snap.Result.Winner)
	assert.False(t, snap.Players.Black.Connected)

	overs := f.pub.ofType(domain.EventTypeGameOver)
	require.Len(t, overs, 1)
	assert.ElementsMatch(t, []string{"w", "o"}, overs[0].Recipients)
	assert.Empty(t, f.reg.SessionsOf("b"))
}

func TestDisconnectPendingGameHasNoWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	created, err := f.svc.CreateGame(ctx, "w", "", domain.GameConfig{})
	require.NoError(t, err)

	f.svc.Disconnect(ctx, "w")

	snap, err := f.svc.Snapshot(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFinished, snap.Phase)
	assert.Nil(t, snap.Result.Winner)
	assert.Equal(t, domain.ReasonAbandonment, snap.Result.Reason)
}

func TestDisconnectObserverLeavesGameRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	f.svc.Disconnect(ctx, "o")

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseActive, snap.Phase)
	assert.Equal(t, 0, snap.Observers)
	assert.Empty(t, f.pub.ofType(domain.EventTypeGameOver))
}

func TestReconnectingPlayerWatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	f.svc.Disconnect(ctx, "b")
	joined, err := f.svc.JoinGame(ctx, id, "b2", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, joined.Role)
	assert.True(t, joined.State.GameOver)
}

func TestSweepTimeouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{TimeControl: "bullet"})
	pending, err := f.svc.CreateGame(ctx, "p", "", domain.GameConfig{TimeControl: "bullet"})
	require.NoError(t, err)

	f.clock.Advance(59 * time.Second)
	assert.Equal(t, 0, f.svc.SweepTimeouts(ctx))

	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.svc.SweepTimeouts(ctx))
	assert.Equal(t, 0, f.svc.SweepTimeouts(ctx))

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonTimeout, snap.Result.Reason)
	assert.Equal(t, domain.Black, *snap.Result.Winner)
	assert.Equal(t, int64(0), snap.Clocks.White)

	snap, err = f.svc.Snapshot(ctx, pending.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePending, snap.Phase)
}

func TestRunTimeoutMonitorStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunTimeoutMonitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSnapshotProjectsRunningClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	f.clock.Advance(2500 * time.Millisecond)
	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(297500), snap.Clocks.White)
	assert.Equal(t, int64(300000), snap.Clocks.Black)
	require.NotNil(t, snap.ClockRunning)
	assert.Equal(t, domain.White, *snap.ClockRunning)
	assert.Equal(t, f.clock.Now().UnixMilli(), snap.ServerTime)
}

func TestExportsForChess960(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	idx := 518
	created, err := f.svc.CreateGame(ctx, "w", "", domain.GameConfig{Variant: domain.VariantChess960, StartingIndex: &idx})
	require.NoError(t, err)

	pgn, err := f.svc.ExportPGN(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Contains(t, pgn, `[Variant "Chess960"]`)
	assert.Contains(t, pgn, `[SetUp "1"]`)
	assert.Contains(t, pgn, `[FEN "`+rules.StandardFEN+`"]`)
	assert.Contains(t, pgn, `[Result "*"]`)

	fen, err := f.svc.ExportFEN(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rules.StandardFEN, fen)
}

func TestLegalMoves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})

	moves, err := f.svc.LegalMoves(ctx, id, "g1")
	require.NoError(t, err)
	assert.Len(t, moves, 2)

	require.NoError(t, f.svc.Resign(ctx, id, "w"))
	moves, err = f.svc.LegalMoves(ctx, id, "")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestRemoveGameAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.CreateGame(ctx, "p", "", domain.GameConfig{})
	require.NoError(t, err)

	assert.Equal(t, Stats{Games: 2, Pending: 1, Active: 1}, f.svc.Stats(ctx))

	require.NoError(t, f.svc.RemoveGame(ctx, id))
	assert.True(t, errors.Is(f.svc.RemoveGame(ctx, id), domain.ErrGameNotFound))
	assert.Equal(t, Stats{Games: 1, Pending: 1}, f.svc.Stats(ctx))
}

func TestPlayFromShuffledStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	idx := 0
	id := f.start(t, domain.GameConfig{Variant: domain.VariantChess960, StartingIndex: &idx})

	const startFEN = "bbqnnrkr/pppppppp/8/8/8/8/PPPPPPPP/BBQNNRKR w KQkq - 0 1"
	engine := rules.NewChessEngine()
	fen, _, err := rules.RestrictCastling(startFEN)
	require.NoError(t, err)
	direct, err := engine.NewPosition(fen)
	require.NoError(t, err)

	// clears b1, c1 and d1 while the king stays on g1
	line := []rules.Move{
		mv("c2", "c4"), mv("c7", "c5"), mv("b1", "e4"), mv("b8", "e5"),
		mv("c1", "c2"), mv("c8", "c7"), mv("d1", "e3"), mv("d8", "e6"),
	}
	for i, m := range line {
		conn := "w"
		if i%2 == 1 {
			conn = "b"
		}
		res, err := f.svc.SubmitMove(ctx, id, conn, m)
		require.NoError(t, err, "ply %d", i)
		direct, _, err = engine.ApplyMove(direct, m)
		require.NoError(t, err)
		assert.Equal(t, direct.FEN(), res.FEN)
	}

	for _, m := range []rules.Move{{SAN: "O-O-O"}, {SAN: "O-O"}, mv("e1", "c1"), mv("e1", "g1")} {
		_, err := f.svc.SubmitMove(ctx, id, "w", m)
		assert.True(t, errors.Is(err, domain.ErrIllegalMove), "%+v: %v", m, err)
	}
	moves, err := f.svc.LegalMoves(ctx, id, "")
	require.NoError(t, err)
	for _, m := range moves {
		assert.False(t, strings.HasPrefix(m.SAN, "O-O"), m.SAN)
	}

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.MoveHistory, len(line))
	assert.Equal(t, direct.FEN(), snap.FEN)
	assert.Equal(t, startFEN, snap.StartPosition.FEN)

	pgn, err := f.svc.ExportPGN(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, pgn, `[FEN "`+startFEN+`"]`)
	assert.Contains(t, pgn, "4. Ne3 Ne6")
}

func TestSnapshotReportsCheckAtCustomStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{CustomFEN: "4k3/8/8/8/8/8/8/4R1K1 b - - 0 1"})

	snap, err := f.svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.InCheck)
	assert.False(t, snap.IsCheckmate)
}

func TestConcurrentCallersOnOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.start(t, domain.GameConfig{})
	_, err := f.svc.JoinGame(ctx, id, "o", "")
	require.NoError(t, err)

	tolerated := func(err error) bool {
		switch domain.CodeOf(err) {
		case domain.CodeNotYourTurn, domain.CodeIllegalMove, domain.CodeGameOver, domain.CodeNoDrawOffer:
			return true
		}
		return false
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	for _, conn := range []string{"w", "b"} {
		wg.Add(1)
		go func(conn string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				moves, err := f.svc.LegalMoves(ctx, id, "")
				if err != nil {
					fail(err)
					return
				}
				if len(moves) == 0 {
					return
				}
				pick := moves[i%len(moves)]
				_, err = f.svc.SubmitMove(ctx, id, conn, rules.Move{From: pick.From, To: pick.To, Promotion: pick.Promotion})
				if err != nil && !tolerated(err) {
					fail(err)
				}
				if i%25 == 0 {
					if err := f.svc.OfferDraw(ctx, id, conn); err != nil && !tolerated(err) {
						fail(err)
					}
				}
			}
		}(conn)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := f.svc.Snapshot(ctx, id); err != nil {
				fail(err)
			}
			if _, err := f.svc.SubmitMove(ctx, id, "o", mv("e2", "e4")); !errors.Is(err, domain.ErrNotYourTurn) && !errors.Is(err, domain.ErrGameOver) {
				fail(err)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		if err := f.svc.Resign(ctx, id, "b"); err != nil && !tolerated(err) {
			fail(err)
		}
	}()

	wg.Wait()
	require.Empty(t, failures)

	sess := f.session(t, id)
	sess.Lock()
	defer sess.Unlock()

	assert.Equal(t, domain.PhaseFinished, sess.Phase)
	assert.Len(t, f.pub.ofType(domain.EventTypeGameOver), 1)

	engine := rules.NewChessEngine()
	replay, err := engine.NewPosition("")
	require.NoError(t, err)
	for i, rec := range sess.History {
		color := "w"
		if i%2 == 1 {
			color = "b"
		}
		require.Equal(t, color, rec.Move.Color, "ply %d", i)
		replay, _, err = engine.ApplyMove(replay, rules.Move{From: rec.Move.From, To: rec.Move.To, Promotion: rec.Move.Promotion})
		require.NoError(t, err, "ply %d", i)
		require.Equal(t, replay.FEN(), rec.FEN, "ply %d", i)
	}
	assert.Equal(t, replay.FEN(), sess.Position.FEN())
}
