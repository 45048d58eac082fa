// Package bot plays sessions without a client: it stands in for the render
// layer and drives a machine through real or training runs.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"portal-minigame-server/session"
)

// ErrNoSession is returned when the machine ends up unauthorised or in error.
var ErrNoSession = errors.New("session not available")

// Driver is the part of a session machine the bot needs.
type Driver interface {
	Dispatch(ctx context.Context, ev session.Event) (session.Snapshot, error)
	Await(ctx context.Context, states ...session.State) (session.Snapshot, error)
}

// Params tune how a bot plays.
type Params struct {
	Name     string
	Strategy string
	Training bool
	// Ticks is the number of strategy steps before the bot ends the run.
	Ticks int
	// HitChance is the percentage of ticks that succeed.
	HitChance  int
	DelayMinMS int
	DelayMaxMS int
	// RestockSFL buys a restock at that price when out of attempts; 0 gives up instead.
	RestockSFL int
}

// DefaultParams returns a quick, fairly skilled bot.
func DefaultParams() Params {
	return Params{Name: "Rudolph", Strategy: "steady", Ticks: 20, HitChance: 80}
}

// Result summarises one run.
type Result struct {
	State      session.State
	Score      int
	NoAttempts bool
	Snapshot   session.Snapshot
}

// Play drives one run to its outcome. It starts from introduction, or retries
// from the outcome of a previous run; Training only applies from introduction.
func Play(ctx context.Context, d Driver, params Params, rng *rand.Rand) (Result, error) {
	strategy, ok := Lookup(params.Strategy)
	if !ok {
		return Result{}, fmt.Errorf("unknown strategy %q", params.Strategy)
	}
	log := slog.Default().With("tag", "bot", "name", params.Name)

	snap, err := d.Await(ctx, session.StateIntroduction,
		session.StateWinner, session.StateLoser, session.StateComplete,
		session.StateUnauthorised, session.StateError)
	if err != nil {
		return Result{}, err
	}

	var begin session.Event = session.Continue{}
	if params.Training {
		begin = session.ContinueTraining{}
	}
	switch snap.State {
	case session.StateUnauthorised, session.StateError:
		return Result{State: snap.State, Snapshot: snap}, fmt.Errorf("%w: %s", ErrNoSession, snap.State)
	case session.StateIntroduction:
		snap, err = d.Dispatch(ctx, begin)
	default:
		// RETRY goes straight back to a real run.
		snap, err = d.Dispatch(ctx, session.Retry{})
	}
	if err != nil {
		return Result{}, err
	}

	if snap.Matches(session.StateNoAttempts) {
		if params.RestockSFL <= 0 {
			log.Info("out of attempts", "refreshAt", snap.RefreshAt)
			if snap, err = d.Dispatch(ctx, session.CancelPurchase{}); err != nil {
				return Result{}, err
			}
			return Result{State: snap.State, NoAttempts: true, Snapshot: snap}, nil
		}
		if snap, err = d.Dispatch(ctx, session.PurchasedRestock{SFL: params.RestockSFL}); err != nil {
			return Result{}, err
		}
		if !snap.Matches(session.StateIntroduction) {
			return Result{State: snap.State, NoAttempts: true, Snapshot: snap}, nil
		}
		log.Info("restocked", "sfl", params.RestockSFL, "attemptsLeft", snap.Context.AttemptsLeft)
		if snap, err = d.Dispatch(ctx, begin); err != nil {
			return Result{}, err
		}
	}

	if snap, err = d.Dispatch(ctx, session.Start{}); err != nil {
		return Result{}, err
	}
	log.Debug("run started", "training", params.Training, "attemptsLeft", snap.Context.AttemptsLeft)

	for tick := 0; tick < params.Ticks && snap.Playing(); tick++ {
		if err := pause(ctx, params, rng); err != nil {
			return Result{}, err
		}
		hit := rng.IntN(100) < params.HitChance
		for _, ev := range strategy(snap, hit, rng) {
			if snap, err = d.Dispatch(ctx, ev); err != nil {
				return Result{}, err
			}
		}
		if snap.Context.Lives == 0 {
			log.Debug("out of lives", "tick", tick)
			break
		}
	}

	score := snap.Context.Score
	if snap.Playing() {
		if snap, err = d.Dispatch(ctx, session.GameOver{}); err != nil {
			return Result{}, err
		}
	}
	log.Info("run finished", "state", snap.State, "score", score)
	return Result{State: snap.State, Score: score, Snapshot: snap}, nil
}

// pause waits a human-like delay before acting.
func pause(ctx context.Context, params Params, rng *rand.Rand) error {
	delayMS := params.DelayMinMS
	if params.DelayMaxMS > params.DelayMinMS {
		delayMS = params.DelayMinMS + rng.IntN(params.DelayMaxMS-params.DelayMinMS)
	}
	if delayMS <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(time.Duration(delayMS) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
