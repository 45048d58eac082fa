package puzzle

import (
	"errors"
	"fmt"
	"sync"

	"portal-minigame-server/portalerrors"
)

// ErrAlreadyOpen is returned when a point's puzzle is open or solved.
var ErrAlreadyOpen = errors.New("puzzle already opened")

// Point is a trigger point placed on the hub map.
type Point struct {
	ID         int        `json:"id"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Kind       Kind       `json:"kind"`
	Difficulty Difficulty `json:"difficulty"`
}

// DefaultPoints is the hub layout: one point per kind, harder further out.
func DefaultPoints() []Point {
	return []Point{
		{ID: 1, X: 120, Y: 200, Kind: KindSliding, Difficulty: Easy},
		{ID: 2, X: 260, Y: 140, Kind: KindSudoku, Difficulty: Easy},
		{ID: 3, X: 400, Y: 220, Kind: KindJigsaw, Difficulty: Medium},
		{ID: 4, X: 520, Y: 120, Kind: KindPipe, Difficulty: Medium},
		{ID: 5, X: 660, Y: 200, Kind: KindNonogram, Difficulty: Hard},
	}
}

type pointState struct {
	Point
	opened bool
	solved bool
}

// Board tracks which trigger points a player has opened and solved.
// A point opens at most once until it is retried or solved.
type Board struct {
	mu     sync.Mutex
	points map[int]*pointState
	order  []int
}

// NewBoard creates a board from points.
func NewBoard(points []Point) *Board {
	b := &Board{points: make(map[int]*pointState, len(points))}
	for _, p := range points {
		if _, exists := b.points[p.ID]; !exists {
			b.order = append(b.order, p.ID)
		}
		b.points[p.ID] = &pointState{Point: p}
	}
	return b
}

// Open marks a point as opened and returns its puzzle.
func (b *Board) Open(id int) (Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.points[id]
	if !ok {
		return nil, fmt.Errorf("point %d: %w", id, portalerrors.ErrNotFound)
	}
	if p.opened || p.solved {
		return nil, fmt.Errorf("point %d: %w", id, ErrAlreadyOpen)
	}
	req, err := NewRequest(p.Kind, p.ID, p.Difficulty)
	if err != nil {
		return nil, err
	}
	p.opened = true
	return req, nil
}

// Solve closes an opened point as solved. It returns false when the point was not open.
func (b *Board) Solve(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.points[id]
	if !ok || !p.opened || p.solved {
		return false
	}
	p.opened = false
	p.solved = true
	return true
}

// Retry closes an unsolved point so it can be opened again.
func (b *Board) Retry(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.points[id]; ok && !p.solved {
		p.opened = false
	}
}

// Solved returns how many points are solved.
func (b *Board) Solved() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.points {
		if p.solved {
			n++
		}
	}
	return n
}

// Reset clears every point for a new run.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.points {
		p.opened = false
		p.solved = false
	}
}

// Points returns the layout in insertion order.
func (b *Board) Points() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Point, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.points[id].Point)
	}
	return out
}
