package minigame

import (
	"errors"
	"testing"
	"time"

	"portal-minigame-server/portalerrors"
)

var day = time.Date(2025, 12, 10, 15, 0, 0, 0, time.UTC)

func TestDateKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 08:00 on the 11th in UTC+10 is still the 10th in UTC.
	got := DateKey(time.Date(2025, 12, 11, 8, 0, 0, 0, loc))
	if got != "2025-12-10" {
		t.Errorf("expected 2025-12-10, got %q", got)
	}
}

func TestStartAttemptDoesNotMutateInput(t *testing.T) {
	state := OfflineFarm()

	next := StartAttempt(state, "christmas", day)

	if state.Game("christmas") != nil {
		t.Error("input state should not gain a christmas record")
	}
	if got := next.Game("christmas").History["2025-12-10"].Attempts; got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}

	next = StartAttempt(next, "christmas", day)
	if got := next.Game("christmas").History["2025-12-10"].Attempts; got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestSubmitScoreKeepsHighScore(t *testing.T) {
	state := SubmitScore(nil, "christmas", 12, day)
	state = SubmitScore(state, "christmas", 7, day)

	g := state.Game("christmas")
	if g.BestToday(day) != 12 {
		t.Errorf("expected best today 12, got %d", g.BestToday(day))
	}

	state = SubmitScore(state, "christmas", 20, day.Add(24*time.Hour))
	g = state.Game("christmas")
	if g.BestToday(day) != 12 {
		t.Errorf("previous day should keep 12, got %d", g.BestToday(day))
	}
	if g.BestAllTime() != 20 {
		t.Errorf("expected best all time 20, got %d", g.BestAllTime())
	}
}

func TestPurchaseItemDeductsBalance(t *testing.T) {
	state := OfflineFarm()
	state.Balance = 10

	next, err := PurchaseItem(state, "christmas", Purchase{ID: "p1", SFL: 7, PurchasedAt: day})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Balance != 3 {
		t.Errorf("expected balance 3, got %d", next.Balance)
	}
	if state.Balance != 10 {
		t.Errorf("input balance changed to %d", state.Balance)
	}
	if n := len(next.Game("christmas").Purchases); n != 1 {
		t.Errorf("expected 1 purchase, got %d", n)
	}
}

func TestPurchaseItemInsufficientBalance(t *testing.T) {
	state := OfflineFarm()
	state.Balance = 2

	_, err := PurchaseItem(state, "christmas", Purchase{SFL: 3, PurchasedAt: day})
	if !errors.Is(err, portalerrors.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPrizeLiveWindow(t *testing.T) {
	open := Prize{Score: 10}
	if !open.Live(day) {
		t.Error("prize without window should be live")
	}

	windowed := Prize{Score: 10, StartAt: day.Add(-time.Hour), EndAt: day.Add(time.Hour)}
	if !windowed.Live(day) {
		t.Error("prize should be live inside its window")
	}
	if windowed.Live(day.Add(time.Hour)) {
		t.Error("prize should not be live at its end")
	}
	if windowed.Live(day.Add(-2 * time.Hour)) {
		t.Error("prize should not be live before its start")
	}
}

func TestPrizeClaimedToday(t *testing.T) {
	state := StartAttempt(nil, "christmas", day)
	if PrizeClaimedToday(state, "christmas", day) {
		t.Fatal("prize should not be claimed yet")
	}

	claimed := day
	g := state.Game("christmas")
	rec := g.History[DateKey(day)]
	rec.PrizeClaimedAt = &claimed
	g.History[DateKey(day)] = rec

	if !PrizeClaimedToday(state, "christmas", day) {
		t.Error("expected prize claimed today")
	}
	if PrizeClaimedToday(state, "christmas", day.Add(24*time.Hour)) {
		t.Error("claim should not carry over to the next day")
	}
}

func TestClaimPrizeKeepsFirstClaim(t *testing.T) {
	state := ClaimPrize(nil, "christmas", day)
	later := ClaimPrize(state, "christmas", day.Add(time.Minute))

	at := later.Game("christmas").History[DateKey(day)].PrizeClaimedAt
	if at == nil || !at.Equal(day) {
		t.Errorf("expected claim at %v, got %v", day, at)
	}
	if PrizeClaimedBefore(later, "christmas", day) {
		t.Error("a claim made at t is not before t")
	}
	if !PrizeClaimedBefore(later, "christmas", day.Add(time.Second)) {
		t.Error("expected claim before a later run")
	}
}
