// Package position builds starting positions: the standard setup and the
// 960 shuffled back ranks of the randomized-start variant.
package position

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Count is the number of distinct randomized starting positions.
const Count = 960

// StandardIndex is the randomized-start index that reproduces the standard
// back rank (RNBQKBNR).
const StandardIndex = 518

// ErrIndexOutOfRange is returned for indexes outside [0, Count).
var ErrIndexOutOfRange = errors.New("position index out of range")

var (
	lightSquareFiles = [4]int{1, 3, 5, 7}
	darkSquareFiles  = [4]int{0, 2, 4, 6}

	// knightPairs indexes into the five files left after bishops and queen.
	knightPairs = [10][2]int{
		{0, 1}, {0, 2}, {0, 3}, {0, 4},
		{1, 2}, {1, 3}, {1, 4},
		{2, 3}, {2, 4},
		{3, 4},
	}
)

// Start describes a generated starting position.
type Start struct {
	FEN      string `json:"fen"`
	BackRank string `json:"back_rank"` // lowercase, files a..h
	Index    int    `json:"index"`
}

// BackRank returns the back rank (lowercase, files a..h) for index.
func BackRank(index int) (string, error) {
	if index < 0 || index >= Count {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	var rank [8]byte
	n := index

	rank[lightSquareFiles[n%4]] = 'b'
	n /= 4

	rank[darkSquareFiles[n%4]] = 'b'
	n /= 4

	empty := emptyFiles(rank)
	rank[empty[n%6]] = 'q'
	n /= 6

	empty = emptyFiles(rank)
	pair := knightPairs[n]
	rank[empty[pair[0]]] = 'n'
	rank[empty[pair[1]]] = 'n'

	empty = emptyFiles(rank)
	rank[empty[0]] = 'r'
	rank[empty[1]] = 'k'
	rank[empty[2]] = 'r'

	return string(rank[:]), nil
}

// Shuffled returns the randomized-start position for index.
func Shuffled(index int) (Start, error) {
	back, err := BackRank(index)
	if err != nil {
		return Start{}, err
	}
	fen := fmt.Sprintf("%s/pppppppp/8/8/8/8/PPPPPPPP/%s w KQkq - 0 1", back, strings.ToUpper(back))
	return Start{FEN: fen, BackRank: back, Index: index}, nil
}

// RandomIndex draws an index uniformly from [0, Count).
func RandomIndex() int {
	return rand.IntN(Count)
}

// Generate returns the randomized-start position for index, or for a uniformly
// drawn index when index is nil.
func Generate(index *int) (Start, error) {
	if index == nil {
		return Shuffled(RandomIndex())
	}
	return Shuffled(*index)
}

func emptyFiles(rank [8]byte) []int {
	files := make([]int, 0, 8)
	for i, p := range rank {
		if p == 0 {
			files = append(files, i)
		}
	}
	return files
}
