package minigame

import (
	"fmt"
	"time"

	"portal-minigame-server/portalerrors"
)

// OfflineFarm is the state used when no store is configured (local play).
func OfflineFarm() *GameState {
	return &GameState{
		Balance: 100,
		Minigames: Minigames{
			Games:  map[string]*Minigame{},
			Prizes: map[string]Prize{},
		},
	}
}

// StartAttempt returns a copy of state with one more attempt recorded for today.
func StartAttempt(state *GameState, portal string, now time.Time) *GameState {
	next := ensure(state)
	g := next.game(portal)
	key := DateKey(now)
	rec := g.History[key]
	rec.Attempts++
	g.History[key] = rec
	return next
}

// SubmitScore returns a copy of state with score folded into today's high score.
func SubmitScore(state *GameState, portal string, score int, now time.Time) *GameState {
	next := ensure(state)
	g := next.game(portal)
	key := DateKey(now)
	rec := g.History[key]
	if score > rec.HighScore {
		rec.HighScore = score
	}
	g.History[key] = rec
	return next
}

// PurchaseItem returns a copy of state with sfl deducted and the purchase recorded.
// state is left untouched when the balance does not cover the price.
func PurchaseItem(state *GameState, portal string, p Purchase) (*GameState, error) {
	if p.SFL <= 0 {
		return nil, fmt.Errorf("purchase of %d SFL: %w", p.SFL, portalerrors.ErrUnknownRestock)
	}
	if state == nil || state.Balance < p.SFL {
		return nil, portalerrors.ErrInsufficientBalance
	}
	next := state.Clone()
	next.Balance -= p.SFL
	g := next.game(portal)
	p.Items = cloneItems(p.Items)
	g.Purchases = append(g.Purchases, p)
	return next, nil
}

// PrizeClaimedToday reports whether the prize for portal was claimed on t's UTC day.
func PrizeClaimedToday(state *GameState, portal string, t time.Time) bool {
	g := state.Game(portal)
	if g == nil {
		return false
	}
	return g.History[DateKey(t)].PrizeClaimedAt != nil
}

func ensure(state *GameState) *GameState {
	if state == nil {
		return OfflineFarm()
	}
	return state.Clone()
}

// game returns the portal record, creating it. Only called on clones.
func (s *GameState) game(portal string) *Minigame {
	if s.Minigames.Games == nil {
		s.Minigames.Games = make(map[string]*Minigame)
	}
	g := s.Minigames.Games[portal]
	if g == nil {
		g = &Minigame{}
		s.Minigames.Games[portal] = g
	}
	if g.History == nil {
		g.History = make(map[string]DailyRecord)
	}
	return g
}

// ClaimPrize returns a copy of state with today's prize marked as claimed at now.
// A prize already claimed today keeps its original time.
func ClaimPrize(state *GameState, portal string, now time.Time) *GameState {
	next := ensure(state)
	g := next.game(portal)
	key := DateKey(now)
	rec := g.History[key]
	if rec.PrizeClaimedAt == nil {
		at := now
		rec.PrizeClaimedAt = &at
	}
	g.History[key] = rec
	return next
}

// PrizeClaimedBefore reports whether the prize for portal was claimed on t's UTC day, earlier than t.
func PrizeClaimedBefore(state *GameState, portal string, t time.Time) bool {
	g := state.Game(portal)
	if g == nil {
		return false
	}
	at := g.History[DateKey(t)].PrizeClaimedAt
	return at != nil && at.Before(t)
}
