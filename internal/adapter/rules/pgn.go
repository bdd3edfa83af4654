package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// Tag is a PGN tag pair.
type Tag struct {
	Key   string
	Value string
}

const pgnLineWidth = 80

// PGN renders the game leading to pos as portable game notation. result is
// one of "1-0", "0-1", "1/2-1/2" or "*". Tags are written in the given order.
func PGN(pos *Position, tags []Tag, result string) string {
	var b strings.Builder
	for _, t := range tags {
		fmt.Fprintf(&b, "[%s %q]\n", t.Key, t.Value)
	}
	b.WriteString("\n")

	moves := pos.game.Moves()
	positions := pos.game.Positions()

	number := startMoveNumber(pos.startFEN)
	tokens := make([]string, 0, len(moves)+1)
	for i, m := range moves {
		before := positions[i]
		san := chess.AlgebraicNotation{}.Encode(before, m)
		switch {
		case before.Turn() == chess.White:
			tokens = append(tokens, fmt.Sprintf("%d. %s", number, san))
		case i == 0:
			tokens = append(tokens, fmt.Sprintf("%d... %s", number, san))
		default:
			tokens = append(tokens, san)
		}
		if before.Turn() == chess.Black {
			number++
		}
	}
	tokens = append(tokens, result)

	line := 0
	for i, tok := range tokens {
		if i > 0 {
			if line+1+len(tok) > pgnLineWidth {
				b.WriteString("\n")
				line = 0
			} else {
				b.WriteString(" ")
				line++
			}
		}
		b.WriteString(tok)
		line += len(tok)
	}
	b.WriteString("\n")
	return b.String()
}

func startMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
