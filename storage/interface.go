package storage

import (
	"context"
	"time"

	"portal-minigame-server/minigame"
)

// Store abstracts persistence of farm minigame records, balances and prizes.
// Implementations can be swapped for testing (memory) or local play (bolt).
type Store interface {
	// Read
	LoadGameState(ctx context.Context, farmID int) (*minigame.GameState, error)
	Leaderboard(ctx context.Context, portal, dateKey string, limit int) ([]LeaderboardEntry, error)

	// Write
	RecordAttempt(ctx context.Context, farmID int, portal string, at time.Time) error
	RecordScore(ctx context.Context, farmID int, portal string, score int, at time.Time) error
	// RecordPurchase deducts p.SFL from the farm balance and stores p.
	// It fails with portalerrors.ErrInsufficientBalance and stores nothing when the balance is short.
	RecordPurchase(ctx context.Context, farmID int, portal string, p minigame.Purchase) error
	ClaimPrize(ctx context.Context, farmID int, portal string, at time.Time) error
	SetBalance(ctx context.Context, farmID, balance int) error
	SetPrize(ctx context.Context, portal string, p minigame.Prize) error

	// Lifecycle
	Close()
}

// LeaderboardEntry is one farm's best score for a portal on a given day.
type LeaderboardEntry struct {
	FarmID int `json:"farmId"`
	Score  int `json:"score"`
}

// DefaultLeaderboardLimit is used when a caller passes limit <= 0.
const DefaultLeaderboardLimit = 50

// Ensure *PostgresStore implements Store at compile time.
var _ Store = (*PostgresStore)(nil)
