// Package squarely implements a 3x3 alignment game (three in a row wins)
// as a small concrete env.Game. It exists so the learner binary and the
// training-loop tests have a real two-player zero-sum environment without
// depending on an external rules engine.
package squarely

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/zerosum-labs/learner/env"
)

const size = 3

// Cell contents in descriptors: first player, second player, empty.
const (
	crossRune = 'x'
	noughtRune = 'o'
	emptyRune = '.'
)

// Game is the squarely rules engine. The zero value is ready to use.
type Game struct{}

// New returns the squarely rules engine.
func New() Game { return Game{} }

// Initial returns the empty board with the first player to move.
// Openings are deterministic; the rng is unused.
func (Game) Initial(_ *rand.Rand) env.State {
	return state{toMove: crossRune}
}

// Actions returns the nine cell names in row-major order: a1, b1, c1, a2, ...
// Columns are letters, rows are digits.
func (Game) Actions() []string {
	actions := make([]string, 0, size*size)
	for i := 0; i < size*size; i++ {
		actions = append(actions, cellName(i))
	}
	return actions
}

// FeatureLen returns the feature vector length: two planes of nine cells.
func (Game) FeatureLen() int { return 2 * size * size }

// Decode parses a descriptor of the form "x.o/.x./..o o": three rows joined
// by '/', a space, and the side to move.
func (Game) Decode(desc string) (env.State, error) {
	board, toMove, ok := strings.Cut(desc, " ")
	if !ok || (toMove != string(crossRune) && toMove != string(noughtRune)) {
		return nil, fmt.Errorf("squarely: bad descriptor %q", desc)
	}

	rows := strings.Split(board, "/")
	if len(rows) != size {
		return nil, fmt.Errorf("squarely: bad descriptor %q", desc)
	}

	var s state
	s.toMove = rune(toMove[0])
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("squarely: bad descriptor %q", desc)
		}
		for c, cell := range row {
			if cell != crossRune && cell != noughtRune && cell != emptyRune {
				return nil, fmt.Errorf("squarely: bad descriptor %q", desc)
			}
			s.cells[r*size+c] = cell
		}
	}
	return s, nil
}

// state is an immutable board position. Zero cells mean empty.
type state struct {
	cells  [size * size]rune
	toMove rune
}

func (s state) Encode() string {
	var sb strings.Builder
	for r := 0; r < size; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		for c := 0; c < size; c++ {
			cell := s.cells[r*size+c]
			if cell == 0 {
				cell = emptyRune
			}
			sb.WriteRune(cell)
		}
	}
	sb.WriteByte(' ')
	sb.WriteRune(s.toMove)
	return sb.String()
}

func (s state) Features() []float64 {
	features := make([]float64, 2*size*size)
	for i, cell := range s.cells {
		switch cell {
		case s.toMove:
			features[i] = 1
		case 0, emptyRune:
		default:
			features[size*size+i] = 1
		}
	}
	return features
}

func (s state) LegalActions() []string {
	if _, done := s.Terminal(); done {
		return nil
	}
	var actions []string
	for i, cell := range s.cells {
		if cell == 0 || cell == emptyRune {
			actions = append(actions, cellName(i))
		}
	}
	return actions
}

func (s state) Apply(action string) (env.State, error) {
	i, err := cellIndex(action)
	if err != nil {
		return nil, err
	}
	if _, done := s.Terminal(); done {
		return nil, fmt.Errorf("squarely: %s played on terminal position", action)
	}
	if s.cells[i] != 0 && s.cells[i] != emptyRune {
		return nil, fmt.Errorf("squarely: %s is occupied", action)
	}

	next := s
	next.cells[i] = s.toMove
	if s.toMove == crossRune {
		next.toMove = noughtRune
	} else {
		next.toMove = crossRune
	}
	return next, nil
}

// Terminal reports the outcome for the player to move. A completed line
// always belongs to the opponent (who just played), so a decided game is a
// loss; a full board without a line is a draw.
func (s state) Terminal() (float64, bool) {
	for _, line := range lines {
		a := s.cells[line[0]]
		if a == 0 || a == emptyRune {
			continue
		}
		if a == s.cells[line[1]] && a == s.cells[line[2]] {
			return -1, true
		}
	}
	for _, cell := range s.cells {
		if cell == 0 || cell == emptyRune {
			return 0, false
		}
	}
	return 0, true
}

// lines are the eight winning alignments as cell indices.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func cellName(i int) string {
	return string(rune('a'+i%size)) + string(rune('1'+i/size))
}

func cellIndex(action string) (int, error) {
	if len(action) != 2 {
		return 0, fmt.Errorf("squarely: unknown action %q", action)
	}
	col := int(action[0] - 'a')
	row := int(action[1] - '1')
	if col < 0 || col >= size || row < 0 || row >= size {
		return 0, fmt.Errorf("squarely: unknown action %q", action)
	}
	return row*size + col, nil
}
