// Package bolt provides a BBolt-backed storage.Store for local single-process play.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"portal-minigame-server/minigame"
	"portal-minigame-server/storage"
)

var (
	farmsBucket  = []byte("farms")
	prizesBucket = []byte("prizes")
)

const farmPrefix = "farm:"

// Store implements storage.Store on a BBolt database. Each farm is one JSON value.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// New returns a Store backed by db, creating its buckets.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{farmsBucket, prizesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens a BBolt database at path. An empty path returns (nil, nil).
func Open(path string, options *bbolt.Options) (*Store, error) {
	if path == "" {
		return nil, nil
	}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("opened bolt store", "tag", "storage", "path", path)
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		slog.Warn("failed to close bolt store", "tag", "storage", "err", err)
	}
}

func farmKey(farmID int) []byte {
	return []byte(farmPrefix + strconv.Itoa(farmID))
}

func getFarm(b *bbolt.Bucket, farmID int) (*minigame.GameState, error) {
	data := b.Get(farmKey(farmID))
	if data == nil {
		return &minigame.GameState{Minigames: minigame.Minigames{Games: map[string]*minigame.Minigame{}}}, nil
	}
	var state minigame.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("farm %d: %w", farmID, err)
	}
	return &state, nil
}

// update applies fn to a farm's state inside one write transaction.
func (s *Store) update(farmID int, fn func(*minigame.GameState) (*minigame.GameState, error)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(farmsBucket)
		state, err := getFarm(b, farmID)
		if err != nil {
			return err
		}
		next, err := fn(state)
		if err != nil || next == nil {
			return err
		}
		next.Minigames.Prizes = nil
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return b.Put(farmKey(farmID), data)
	})
}

func (s *Store) LoadGameState(ctx context.Context, farmID int) (*minigame.GameState, error) {
	var state *minigame.GameState
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		if state, err = getFarm(tx.Bucket(farmsBucket), farmID); err != nil {
			return err
		}
		state.Minigames.Prizes = map[string]minigame.Prize{}
		return tx.Bucket(prizesBucket).ForEach(func(k, v []byte) error {
			var p minigame.Prize
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			state.Minigames.Prizes[string(k)] = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if state.Minigames.Games == nil {
		state.Minigames.Games = map[string]*minigame.Minigame{}
	}
	return state, nil
}

func (s *Store) RecordAttempt(ctx context.Context, farmID int, portal string, at time.Time) error {
	return s.update(farmID, func(state *minigame.GameState) (*minigame.GameState, error) {
		return minigame.StartAttempt(state, portal, at), nil
	})
}

func (s *Store) RecordScore(ctx context.Context, farmID int, portal string, score int, at time.Time) error {
	return s.update(farmID, func(state *minigame.GameState) (*minigame.GameState, error) {
		return minigame.SubmitScore(state, portal, score, at), nil
	})
}

func (s *Store) ClaimPrize(ctx context.Context, farmID int, portal string, at time.Time) error {
	return s.update(farmID, func(state *minigame.GameState) (*minigame.GameState, error) {
		return minigame.ClaimPrize(state, portal, at), nil
	})
}

func (s *Store) RecordPurchase(ctx context.Context, farmID int, portal string, p minigame.Purchase) error {
	return s.update(farmID, func(state *minigame.GameState) (*minigame.GameState, error) {
		if storage.HasPurchase(state.Game(portal), p.ID) {
			return nil, nil
		}
		return minigame.PurchaseItem(state, portal, p)
	})
}

func (s *Store) SetBalance(ctx context.Context, farmID, balance int) error {
	return s.update(farmID, func(state *minigame.GameState) (*minigame.GameState, error) {
		state.Balance = balance
		return state, nil
	})
}

func (s *Store) SetPrize(ctx context.Context, portal string, p minigame.Prize) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(prizesBucket).Put([]byte(portal), data)
	})
}

func (s *Store) Leaderboard(ctx context.Context, portal, dateKey string, limit int) ([]storage.LeaderboardEntry, error) {
	farms := map[int]*minigame.GameState{}
	prefix := []byte(farmPrefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(farmsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			id, err := strconv.Atoi(string(k[len(prefix):]))
			if err != nil {
				continue
			}
			var state minigame.GameState
			if err := json.Unmarshal(v, &state); err != nil {
				return fmt.Errorf("farm %d: %w", id, err)
			}
			farms[id] = &state
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return storage.RankDay(farms, portal, dateKey, limit), nil
}
