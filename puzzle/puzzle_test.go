package puzzle

import (
	"errors"
	"testing"

	"portal-minigame-server/portalerrors"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest(KindSliding, 3, Hard)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := got.(Sliding)
	if !ok {
		t.Fatalf("expected Sliding, got %T", got)
	}
	if s.Point != 3 || s.Difficulty != Hard || s.Seconds != 180 {
		t.Errorf("unexpected request %+v", s)
	}
}

func TestNonogramHasNoDifficulty(t *testing.T) {
	req, _ := NewRequest(KindNonogram, 5, Hard)
	data, _ := Marshal(req)
	if string(data) != `{"kind":"nonogram","pointId":5}` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"kind":"chess","pointId":1}`)); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestBoardOpensOnce(t *testing.T) {
	b := NewBoard(DefaultPoints())

	req, err := b.Open(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind() != KindSudoku {
		t.Errorf("expected sudoku at point 2, got %s", req.Kind())
	}
	if _, err := b.Open(2); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("expected ErrAlreadyOpen, got %v", err)
	}
	if _, err := b.Open(99); !errors.Is(err, portalerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	b.Retry(2)
	if _, err := b.Open(2); err != nil {
		t.Errorf("expected reopen after retry, got %v", err)
	}
}

func TestBoardSolve(t *testing.T) {
	b := NewBoard(DefaultPoints())
	if b.Solve(1) {
		t.Error("a point that was never opened cannot be solved")
	}
	b.Open(1)
	if !b.Solve(1) {
		t.Fatal("expected solve to succeed")
	}
	if b.Solve(1) {
		t.Error("a point is solved only once")
	}
	if _, err := b.Open(1); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("expected a solved point to stay closed, got %v", err)
	}
	if b.Solved() != 1 {
		t.Errorf("expected 1 solved, got %d", b.Solved())
	}

	b.Reset()
	if b.Solved() != 0 {
		t.Errorf("expected 0 solved after reset, got %d", b.Solved())
	}
}

func TestOnboardingGreetsOnce(t *testing.T) {
	var o Onboarding
	if !o.ShouldGreet() {
		t.Error("expected the first call to greet")
	}
	if o.ShouldGreet() {
		t.Error("expected later calls not to greet")
	}
	o.Reset()
	if !o.ShouldGreet() {
		t.Error("expected a greeting after reset")
	}
}
