// Package puzzle models the puzzle-hub trigger points and the typed requests
// the render layer receives when the player touches one.
package puzzle

import (
	"encoding/json"
	"fmt"
)

// Kind names a puzzle sub-game.
type Kind string

const (
	KindSliding  Kind = "sliding"
	KindSudoku   Kind = "sudoku"
	KindJigsaw   Kind = "jigsaw"
	KindPipe     Kind = "pipe"
	KindNonogram Kind = "nonogram"
)

// Difficulty of a trigger point.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// SlidingSeconds is the time limit of a sliding puzzle per difficulty.
var SlidingSeconds = map[Difficulty]int{Easy: 90, Medium: 120, Hard: 180}

// Request is one puzzle to open. Each kind carries only the fields it needs.
type Request interface {
	Kind() Kind
	PointID() int
}

type Sliding struct {
	Point      int        `json:"pointId"`
	Difficulty Difficulty `json:"difficulty"`
	Seconds    int        `json:"seconds"`
}

type Sudoku struct {
	Point      int        `json:"pointId"`
	Difficulty Difficulty `json:"difficulty"`
}

type Jigsaw struct {
	Point      int        `json:"pointId"`
	Difficulty Difficulty `json:"difficulty"`
}

type Pipe struct {
	Point      int        `json:"pointId"`
	Difficulty Difficulty `json:"difficulty"`
}

// Nonogram has a single size and no difficulty.
type Nonogram struct {
	Point int `json:"pointId"`
}

func (Sliding) Kind() Kind  { return KindSliding }
func (Sudoku) Kind() Kind   { return KindSudoku }
func (Jigsaw) Kind() Kind   { return KindJigsaw }
func (Pipe) Kind() Kind     { return KindPipe }
func (Nonogram) Kind() Kind { return KindNonogram }

func (r Sliding) PointID() int  { return r.Point }
func (r Sudoku) PointID() int   { return r.Point }
func (r Jigsaw) PointID() int   { return r.Point }
func (r Pipe) PointID() int     { return r.Point }
func (r Nonogram) PointID() int { return r.Point }

// NewRequest builds the request for a point of the given kind.
func NewRequest(kind Kind, pointID int, d Difficulty) (Request, error) {
	switch kind {
	case KindSliding:
		return Sliding{Point: pointID, Difficulty: d, Seconds: SlidingSeconds[d]}, nil
	case KindSudoku:
		return Sudoku{Point: pointID, Difficulty: d}, nil
	case KindJigsaw:
		return Jigsaw{Point: pointID, Difficulty: d}, nil
	case KindPipe:
		return Pipe{Point: pointID, Difficulty: d}, nil
	case KindNonogram:
		return Nonogram{Point: pointID}, nil
	}
	return nil, fmt.Errorf("unknown puzzle kind %q", kind)
}

// Marshal encodes r with its kind as the "kind" discriminator.
func Marshal(r Request) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(r.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte) (Request, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var r Request
	var err error
	switch head.Kind {
	case KindSliding:
		var v Sliding
		err = json.Unmarshal(data, &v)
		r = v
	case KindSudoku:
		var v Sudoku
		err = json.Unmarshal(data, &v)
		r = v
	case KindJigsaw:
		var v Jigsaw
		err = json.Unmarshal(data, &v)
		r = v
	case KindPipe:
		var v Pipe
		err = json.Unmarshal(data, &v)
		r = v
	case KindNonogram:
		var v Nonogram
		err = json.Unmarshal(data, &v)
		r = v
	default:
		return nil, fmt.Errorf("unknown puzzle kind %q", head.Kind)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
