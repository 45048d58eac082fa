package attempts

import (
	"math"
	"slices"
	"time"

	"portal-minigame-server/minigame"
)

// Unlimited is returned by Left when an unlimited pass was bought today.
const Unlimited = math.MaxInt

// Restock is an attempt bundle sold for a fixed SFL price.
type Restock struct {
	Attempts int `json:"attempts"`
	SFL      int `json:"sfl"`
}

// Rules configures the daily allowance and what can be bought.
type Rules struct {
	FreeDaily          int
	BetaTesterAttempts int
	BetaTesters        []int
	// UnlimitedSFL is the price of an unlimited pass; negative disables it.
	UnlimitedSFL int
	Restocks     []Restock
}

// UnlimitedEnabled reports whether an unlimited pass is on sale.
func (r Rules) UnlimitedEnabled() bool {
	return r.UnlimitedSFL >= 0
}

// RestockFor returns the restock sold at sfl.
func (r Rules) RestockFor(sfl int) (Restock, bool) {
	for _, rs := range r.Restocks {
		if rs.SFL == sfl {
			return rs, true
		}
	}
	return Restock{}, false
}

// Left computes the attempts remaining today for a farm from its persisted record.
// Purchases only count on the UTC day they were made.
func Left(g *minigame.Minigame, farmID int, now time.Time, r Rules) int {
	free := r.FreeDaily
	if slices.Contains(r.BetaTesters, farmID) {
		free = r.BetaTesterAttempts
	}
	if g == nil {
		return max(free, 0)
	}

	start, end := dayBounds(now)
	restocked := 0
	for _, p := range g.Purchases {
		if p.PurchasedAt.Before(start) || !p.PurchasedAt.Before(end) {
			continue
		}
		if r.UnlimitedEnabled() && p.SFL == r.UnlimitedSFL {
			return Unlimited
		}
		if rs, ok := r.RestockFor(p.SFL); ok {
			restocked += rs.Attempts
		}
	}

	used := g.History[minigame.DateKey(now)].Attempts
	return max(free+restocked-used, 0)
}

// Consume returns the count after one real session start.
func Consume(left int) int {
	if left == Unlimited {
		return left
	}
	return max(left-1, 0)
}

// NextRefresh is when the free allowance resets (next UTC midnight).
func NextRefresh(now time.Time) time.Time {
	_, end := dayBounds(now)
	return end
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	u := now.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
