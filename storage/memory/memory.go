// Package memory provides a thread-safe in-memory implementation of storage.Store.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"portal-minigame-server/minigame"
	"portal-minigame-server/storage"
)

// Store keeps farm states in memory. Suitable for testing, demos and single-process play.
type Store struct {
	mu     sync.RWMutex
	farms  map[int]*minigame.GameState
	prizes map[string]minigame.Prize
}

var _ storage.Store = (*Store)(nil)

// New creates a new empty Store.
func New() *Store {
	return &Store{
		farms:  make(map[int]*minigame.GameState),
		prizes: make(map[string]minigame.Prize),
	}
}

func (s *Store) farm(farmID int) *minigame.GameState {
	state, ok := s.farms[farmID]
	if !ok {
		state = &minigame.GameState{Minigames: minigame.Minigames{Games: map[string]*minigame.Minigame{}}}
	}
	return state
}

func (s *Store) LoadGameState(ctx context.Context, farmID int) (*minigame.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.farm(farmID).Clone()
	out.Minigames.Prizes = maps.Clone(s.prizes)
	return out, nil
}

func (s *Store) RecordAttempt(ctx context.Context, farmID int, portal string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farms[farmID] = minigame.StartAttempt(s.farm(farmID), portal, at)
	return nil
}

func (s *Store) RecordScore(ctx context.Context, farmID int, portal string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farms[farmID] = minigame.SubmitScore(s.farm(farmID), portal, score, at)
	return nil
}

func (s *Store) ClaimPrize(ctx context.Context, farmID int, portal string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farms[farmID] = minigame.ClaimPrize(s.farm(farmID), portal, at)
	return nil
}

func (s *Store) RecordPurchase(ctx context.Context, farmID int, portal string, p minigame.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.farm(farmID)
	if storage.HasPurchase(current.Game(portal), p.ID) {
		return nil
	}
	next, err := minigame.PurchaseItem(current, portal, p)
	if err != nil {
		return err
	}
	s.farms[farmID] = next
	return nil
}

func (s *Store) SetBalance(ctx context.Context, farmID, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.farm(farmID).Clone()
	next.Balance = balance
	s.farms[farmID] = next
	return nil
}

func (s *Store) SetPrize(ctx context.Context, portal string, p minigame.Prize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prizes[portal] = p
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, portal, dateKey string, limit int) ([]storage.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.RankDay(s.farms, portal, dateKey, limit), nil
}

func (s *Store) Close() {}
