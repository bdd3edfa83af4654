package rules

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Position is an immutable game position including the history the engine
// needs for repetition detection.
type Position struct {
	game     *chess.Game
	startFEN string
}

// FEN returns the position in Forsyth-Edwards notation.
func (p *Position) FEN() string {
	return p.game.Position().String()
}

// StartFEN returns the FEN the position's history starts from.
func (p *Position) StartFEN() string {
	return p.startFEN
}

// Turn returns the side to move.
func (p *Position) Turn() Color {
	if p.game.Position().Turn() == chess.Black {
		return Black
	}
	return White
}

// Ply returns the number of half-moves applied since the start position.
func (p *Position) Ply() int {
	return len(p.game.Moves())
}

// ChessEngine implements Engine on top of github.com/notnil/chess.
type ChessEngine struct{}

// NewChessEngine creates a new rules engine.
func NewChessEngine() *ChessEngine {
	return &ChessEngine{}
}

// StandardFEN is the initial position of standard chess.
const StandardFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// NewPosition implements Engine.
func (e *ChessEngine) NewPosition(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return &Position{game: chess.NewGame(), startFEN: StandardFEN}, nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	game := chess.NewGame(opt)
	if err := validate(game.Position()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return &Position{game: game, startFEN: fen}, nil
}

// LegalMoves implements Engine.
func (e *ChessEngine) LegalMoves(pos *Position, from string) []Applied {
	cur := pos.game.Position()
	from = strings.ToLower(strings.TrimSpace(from))

	var out []Applied
	for _, m := range validMoves(cur) {
		if from != "" && m.S1().String() != from {
			continue
		}
		out = append(out, describe(cur, m))
	}
	return out
}

// ApplyMove implements Engine.
func (e *ChessEngine) ApplyMove(pos *Position, mv Move) (*Position, Applied, error) {
	cur := pos.game.Position()
	valid, err := resolve(cur, mv)
	if err != nil {
		return nil, Applied{}, err
	}
	applied := describe(cur, valid)

	next := pos.game.Clone()
	if err := next.Move(valid); err != nil {
		return nil, Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	claimDraws(next)

	return &Position{game: next, startFEN: pos.startFEN}, applied, nil
}

// Terminal implements Engine.
func (e *ChessEngine) Terminal(pos *Position) Terminal {
	switch pos.game.Method() {
	case chess.Checkmate:
		return Checkmate
	case chess.Stalemate:
		return Stalemate
	case chess.ThreefoldRepetition:
		return ThreefoldRepetition
	case chess.InsufficientMaterial:
		return InsufficientMaterial
	case chess.FivefoldRepetition, chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return OtherDraw
	}
	return NotTerminal
}

// InCheck implements Engine. It reads the board, so a start position with
// the side to move in check reports it before any move is made.
func (e *ChessEngine) InCheck(pos *Position) bool {
	cur := pos.game.Position()
	sq, ok := kingSquare(cur.Board(), cur.Turn())
	return ok && attacked(cur.Board(), sq, cur.Turn().Other())
}

// resolve maps a client move onto one of the position's valid moves.
func resolve(pos *chess.Position, mv Move) (*chess.Move, error) {
	var (
		m   *chess.Move
		err error
	)
	switch {
	case mv.From != "" && mv.To != "":
		promo, ok := promotionChar(mv.Promotion)
		if !ok {
			return nil, fmt.Errorf("%w: unknown promotion piece %q", ErrIllegalMove, mv.Promotion)
		}
		m, err = chess.UCINotation{}.Decode(pos, strings.ToLower(mv.From+mv.To)+promo)
	case mv.SAN != "":
		m, err = chess.AlgebraicNotation{}.Decode(pos, strings.TrimSpace(mv.SAN))
	default:
		return nil, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	for _, valid := range validMoves(pos) {
		if valid.S1() == m.S1() && valid.S2() == m.S2() && valid.Promo() == m.Promo() {
			return valid, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIllegalMove, m)
}

func promotionChar(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "":
		return "", true
	case "q", "queen":
		return "q", true
	case "r", "rook":
		return "r", true
	case "b", "bishop":
		return "b", true
	case "n", "knight":
		return "n", true
	}
	return "", false
}

func describe(pos *chess.Position, m *chess.Move) Applied {
	color := "w"
	if pos.Turn() == chess.Black {
		color = "b"
	}
	a := Applied{
		Color:   color,
		From:    m.S1().String(),
		To:      m.S2().String(),
		SAN:     chess.AlgebraicNotation{}.Encode(pos, m),
		UCI:     m.String(),
		Check:   m.HasTag(chess.Check),
		Capture: m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
	}
	if len(a.UCI) == 5 {
		a.Promotion = a.UCI[4:]
	}
	return a
}

// claimDraws ends the game on draws the engine only marks as claimable, so a
// repeated or stale position finishes without either side asking.
func claimDraws(g *chess.Game) {
	if g.Outcome() != chess.NoOutcome {
		return
	}
	for _, method := range g.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			_ = g.Draw(method)
			return
		}
	}
}
