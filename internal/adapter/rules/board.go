package rules

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// castleHome is where a castling right needs its king and rook. The engine
// only moves kings from the e-file and rooks from the corners.
type castleHome struct {
	king, rook   chess.Square
	kingP, rookP chess.Piece
}

var castleHomes = map[rune]castleHome{
	'K': {chess.E1, chess.H1, chess.WhiteKing, chess.WhiteRook},
	'Q': {chess.E1, chess.A1, chess.WhiteKing, chess.WhiteRook},
	'k': {chess.E8, chess.H8, chess.BlackKing, chess.BlackRook},
	'q': {chess.E8, chess.A8, chess.BlackKing, chess.BlackRook},
}

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// RestrictCastling returns fen with every castling right removed whose king
// and rook are not on the standard home squares, together with the removed
// rights. Randomized starts keep only the rights the engine can play
// correctly.
func RestrictCastling(fen string) (string, string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 3 {
		return "", "", fmt.Errorf("%w: missing castling field", ErrInvalidPosition)
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	board := chess.NewGame(opt).Position().Board()

	var kept, dropped strings.Builder
	for _, right := range fields[2] {
		if right == '-' {
			continue
		}
		if castleReady(board, right) {
			kept.WriteRune(right)
		} else {
			dropped.WriteRune(right)
		}
	}
	fields[2] = kept.String()
	if fields[2] == "" {
		fields[2] = "-"
	}
	return strings.Join(fields, " "), dropped.String(), nil
}

func castleReady(board *chess.Board, right rune) bool {
	home, ok := castleHomes[right]
	return ok && board.Piece(home.king) == home.kingP && board.Piece(home.rook) == home.rookP
}

// validate rejects positions no game can be played from.
func validate(pos *chess.Position) error {
	board := pos.Board()
	kings := map[chess.Color]int{}
	for _, p := range board.SquareMap() {
		if p.Type() == chess.King {
			kings[p.Color()]++
		}
	}
	if kings[chess.White] != 1 || kings[chess.Black] != 1 {
		return fmt.Errorf("each side needs exactly one king")
	}

	for _, right := range pos.CastleRights().String() {
		if right == '-' {
			continue
		}
		if !castleReady(board, right) {
			return fmt.Errorf("castling right %c without king and rook on their home squares", right)
		}
	}

	idle := pos.Turn().Other()
	if sq, ok := kingSquare(board, idle); ok && attacked(board, sq, pos.Turn()) {
		return fmt.Errorf("%s king is in check with %s to move", idle.Name(), pos.Turn().Name())
	}
	return nil
}

// castleAllowed filters the engine's castle moves down to those that start
// from the mover's king on its home square with the rook beside it.
func castleAllowed(pos *chess.Position, m *chess.Move) bool {
	var right rune
	switch {
	case m.HasTag(chess.KingSideCastle):
		right = 'K'
	case m.HasTag(chess.QueenSideCastle):
		right = 'Q'
	default:
		return true
	}
	if pos.Turn() == chess.Black {
		right += 'a' - 'A'
	}
	return m.S1() == castleHomes[right].king && castleReady(pos.Board(), right)
}

func validMoves(pos *chess.Position) []*chess.Move {
	all := pos.ValidMoves()
	out := make([]*chess.Move, 0, len(all))
	for _, m := range all {
		if castleAllowed(pos, m) {
			out = append(out, m)
		}
	}
	return out
}

func kingSquare(board *chess.Board, c chess.Color) (chess.Square, bool) {
	for sq, p := range board.SquareMap() {
		if p.Type() == chess.King && p.Color() == c {
			return sq, true
		}
	}
	return chess.NoSquare, false
}

// attacked reports whether any piece of color by attacks sq.
func attacked(board *chess.Board, sq chess.Square, by chess.Color) bool {
	file, rank := int(sq.File()), int(sq.Rank())
	at := func(df, dr int) (chess.Piece, bool) {
		f, r := file+df, rank+dr
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return chess.NoPiece, false
		}
		return board.Piece(chess.NewSquare(chess.File(f), chess.Rank(r))), true
	}
	is := func(p chess.Piece, types ...chess.PieceType) bool {
		if p == chess.NoPiece || p.Color() != by {
			return false
		}
		for _, t := range types {
			if p.Type() == t {
				return true
			}
		}
		return false
	}

	for _, d := range knightSteps {
		if p, _ := at(d[0], d[1]); is(p, chess.Knight) {
			return true
		}
	}
	for _, d := range kingSteps {
		if p, _ := at(d[0], d[1]); is(p, chess.King) {
			return true
		}
	}

	// a white pawn attacks upwards, so it sits one rank below sq
	pawnRank := -1
	if by == chess.Black {
		pawnRank = 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, _ := at(df, pawnRank); is(p, chess.Pawn) {
			return true
		}
	}

	slide := func(dirs [4][2]int, types ...chess.PieceType) bool {
		for _, d := range dirs {
			for step := 1; ; step++ {
				p, onBoard := at(d[0]*step, d[1]*step)
				if !onBoard {
					break
				}
				if p == chess.NoPiece {
					continue
				}
				if is(p, types...) {
					return true
				}
				break
			}
		}
		return false
	}
	return slide(rookDirs, chess.Rook, chess.Queen) || slide(bishopDirs, chess.Bishop, chess.Queen)
}
