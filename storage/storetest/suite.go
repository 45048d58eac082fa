// Package storetest holds behaviour checks shared by every storage.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"portal-minigame-server/minigame"
	"portal-minigame-server/portalerrors"
	"portal-minigame-server/storage"
)

var day = time.Date(2025, 12, 10, 15, 0, 0, 0, time.UTC)

// Run exercises s. Each subtest uses its own farm id so the store can be shared.
func Run(t *testing.T, s storage.Store) {
	ctx := context.Background()

	t.Run("UnknownFarmLoadsEmpty", func(t *testing.T) {
		state, err := s.LoadGameState(ctx, 100)
		if err != nil {
			t.Fatalf("LoadGameState failed: %v", err)
		}
		if state.Balance != 0 {
			t.Errorf("expected balance 0, got %d", state.Balance)
		}
		if state.Game("christmas") != nil {
			t.Error("expected no record for an unknown farm")
		}
	})

	t.Run("AttemptsAndScores", func(t *testing.T) {
		for range 2 {
			if err := s.RecordAttempt(ctx, 101, "christmas", day); err != nil {
				t.Fatalf("RecordAttempt failed: %v", err)
			}
		}
		s.RecordScore(ctx, 101, "christmas", 12, day)
		s.RecordScore(ctx, 101, "christmas", 7, day)

		state, err := s.LoadGameState(ctx, 101)
		if err != nil {
			t.Fatalf("LoadGameState failed: %v", err)
		}
		rec := state.Game("christmas").History[minigame.DateKey(day)]
		if rec.Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", rec.Attempts)
		}
		if rec.HighScore != 12 {
			t.Errorf("expected highscore 12, got %d", rec.HighScore)
		}
	})

	t.Run("PurchaseDeductsBalance", func(t *testing.T) {
		s.SetBalance(ctx, 102, 10)
		p := minigame.Purchase{ID: "8a3c6f2e-5a47-4f0e-9a51-3b1a0a2f6c11", SFL: 7, PurchasedAt: day}
		if err := s.RecordPurchase(ctx, 102, "christmas", p); err != nil {
			t.Fatalf("RecordPurchase failed: %v", err)
		}
		// Replaying the same purchase must not charge twice.
		if err := s.RecordPurchase(ctx, 102, "christmas", p); err != nil {
			t.Fatalf("replayed RecordPurchase failed: %v", err)
		}

		state, _ := s.LoadGameState(ctx, 102)
		if state.Balance != 3 {
			t.Errorf("expected balance 3, got %d", state.Balance)
		}
		if n := len(state.Game("christmas").Purchases); n != 1 {
			t.Errorf("expected 1 purchase, got %d", n)
		}
	})

	t.Run("PurchaseInsufficientBalance", func(t *testing.T) {
		s.SetBalance(ctx, 103, 2)
		p := minigame.Purchase{ID: "1f0e9c8b-7a65-4d43-b210-fedcba987654", SFL: 3, PurchasedAt: day}
		err := s.RecordPurchase(ctx, 103, "christmas", p)
		if !errors.Is(err, portalerrors.ErrInsufficientBalance) {
			t.Errorf("expected ErrInsufficientBalance, got %v", err)
		}
		state, _ := s.LoadGameState(ctx, 103)
		if state.Balance != 2 {
			t.Errorf("expected balance untouched, got %d", state.Balance)
		}
	})

	t.Run("PurchaseReplayAfterBalanceSpent", func(t *testing.T) {
		s.SetBalance(ctx, 105, 4)
		p := minigame.Purchase{ID: "c41d8a77-2e0b-4b6f-8f3a-5d9e1c7b2a40", SFL: 4, PurchasedAt: day}
		if err := s.RecordPurchase(ctx, 105, "christmas", p); err != nil {
			t.Fatalf("RecordPurchase failed: %v", err)
		}
		// The balance can no longer cover the price, the replay must still succeed.
		if err := s.RecordPurchase(ctx, 105, "christmas", p); err != nil {
			t.Fatalf("expected replayed RecordPurchase to succeed, got %v", err)
		}
		state, _ := s.LoadGameState(ctx, 105)
		if state.Balance != 0 {
			t.Errorf("expected balance 0, got %d", state.Balance)
		}
		if n := len(state.Game("christmas").Purchases); n != 1 {
			t.Errorf("expected 1 purchase, got %d", n)
		}
	})

	t.Run("PrizesAndClaims", func(t *testing.T) {
		prize := minigame.Prize{Score: 20, Coins: 5}
		if err := s.SetPrize(ctx, "christmas", prize); err != nil {
			t.Fatalf("SetPrize failed: %v", err)
		}
		s.ClaimPrize(ctx, 104, "christmas", day)
		s.ClaimPrize(ctx, 104, "christmas", day.Add(time.Hour))

		state, _ := s.LoadGameState(ctx, 104)
		got, ok := state.Prize("christmas")
		if !ok || got.Score != 20 || got.Coins != 5 {
			t.Errorf("expected prize score=20 coins=5, got %+v ok=%v", got, ok)
		}
		at := state.Game("christmas").History[minigame.DateKey(day)].PrizeClaimedAt
		if at == nil || !at.Equal(day) {
			t.Errorf("expected first claim at %v kept, got %v", day, at)
		}
	})

	t.Run("Leaderboard", func(t *testing.T) {
		s.RecordScore(ctx, 201, "leaderboard", 5, day)
		s.RecordScore(ctx, 202, "leaderboard", 9, day)
		s.RecordScore(ctx, 203, "leaderboard", 9, day)
		s.RecordScore(ctx, 204, "leaderboard", 50, day.Add(-24*time.Hour))

		entries, err := s.Leaderboard(ctx, "leaderboard", minigame.DateKey(day), 2)
		if err != nil {
			t.Fatalf("Leaderboard failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].FarmID != 202 || entries[1].FarmID != 203 {
			t.Errorf("expected farms [202 203], got %+v", entries)
		}
	})
}
