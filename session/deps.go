package session

import (
	"context"
	"time"

	"portal-minigame-server/minigame"
)

// LoadResult is what the gateway returns for the loading state.
type LoadResult struct {
	State        *minigame.GameState
	FarmID       int
	AttemptsLeft int
}

// Gateway is the remote farm service as the machine sees it.
//
// Load is the only blocking call and runs off the event loop. The write
// calls return the locally updated state immediately; persistence happens
// behind them.
type Gateway interface {
	Load(ctx context.Context, token string) (LoadResult, error)
	StartAttempt(farmID int, state *minigame.GameState) *minigame.GameState
	SubmitScore(farmID int, state *minigame.GameState, score int) *minigame.GameState
	Purchase(farmID int, state *minigame.GameState, sfl int, items map[string]int) (*minigame.GameState, error)
}

// PowerDef holds the definition of a puzzle-hub power as seen by the session package.
type PowerDef struct {
	ID          string
	Name        string
	Description string
	Apply       func(c *Context)
}

// PowerProvider abstracts the power registry. It may be nil, in which case
// USE_POWER is a no-op.
type PowerProvider interface {
	GetPower(id string) (PowerDef, bool)
	AllPowers() []PowerDef
}

// CompletedFunc decides whether a finished run goes to complete.
// It is consulted after the training guard and before the prize guard.
type CompletedFunc func(c Context) bool

// PrizeClaimedGuard completes a run when today's prize for portal was already
// claimed before the run started. runLength is the configured session length.
func PrizeClaimedGuard(portal string, runLength time.Duration) CompletedFunc {
	return func(c Context) bool {
		if c.EndAt == 0 {
			return false
		}
		started := time.UnixMilli(c.EndAt).Add(-runLength)
		return minigame.PrizeClaimedBefore(c.GameState, portal, started)
	}
}
