package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal-minigame-server/minigame"
	"portal-minigame-server/portalerrors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS farm (
	farm_id    BIGINT PRIMARY KEY,
	balance    INT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS minigame_history (
	farm_id          BIGINT NOT NULL,
	portal           TEXT NOT NULL,
	date_key         TEXT NOT NULL,
	attempts         INT NOT NULL DEFAULT 0,
	highscore        INT NOT NULL DEFAULT 0,
	prize_claimed_at TIMESTAMPTZ,
	PRIMARY KEY (farm_id, portal, date_key)
);
CREATE INDEX IF NOT EXISTS idx_minigame_history_board ON minigame_history(portal, date_key, highscore DESC);
CREATE TABLE IF NOT EXISTS minigame_purchase (
	id           UUID PRIMARY KEY,
	farm_id      BIGINT NOT NULL,
	portal       TEXT NOT NULL,
	sfl          INT NOT NULL,
	items        JSONB,
	purchased_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_minigame_purchase_farm ON minigame_purchase(farm_id, portal);
CREATE TABLE IF NOT EXISTS minigame_prize (
	portal   TEXT PRIMARY KEY,
	score    INT NOT NULL,
	coins    INT NOT NULL DEFAULT 0,
	items    JSONB,
	start_at TIMESTAMPTZ,
	end_at   TIMESTAMPTZ
);
`

// PostgresStore persists farm minigame records in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and the caller runs offline.
func NewStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// LoadGameState assembles a farm's balance, minigame records and the live prizes.
// An unknown farm loads as an empty record with zero balance.
func (s *PostgresStore) LoadGameState(ctx context.Context, farmID int) (*minigame.GameState, error) {
	state := &minigame.GameState{
		Minigames: minigame.Minigames{
			Games:  map[string]*minigame.Minigame{},
			Prizes: map[string]minigame.Prize{},
		},
	}

	err := s.pool.QueryRow(ctx, `SELECT balance FROM farm WHERE farm_id = $1`, farmID).Scan(&state.Balance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT portal, date_key, attempts, highscore, prize_claimed_at
		FROM minigame_history
		WHERE farm_id = $1`, farmID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for rows.Next() {
		var portal, key string
		var rec minigame.DailyRecord
		if err := rows.Scan(&portal, &key, &rec.Attempts, &rec.HighScore, &rec.PrizeClaimedAt); err != nil {
			rows.Close()
			return nil, err
		}
		gameFor(state, portal).History[key] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT id::text, portal, sfl, items, purchased_at
		FROM minigame_purchase
		WHERE farm_id = $1
		ORDER BY purchased_at`, farmID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	for rows.Next() {
		var portal string
		var items []byte
		var p minigame.Purchase
		if err := rows.Scan(&p.ID, &portal, &p.SFL, &items, &p.PurchasedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &p.Items); err != nil {
				rows.Close()
				return nil, err
			}
		}
		g := gameFor(state, portal)
		g.Purchases = append(g.Purchases, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prizes, err := s.prizes(ctx)
	if err != nil {
		return nil, err
	}
	state.Minigames.Prizes = prizes
	return state, nil
}

func (s *PostgresStore) prizes(ctx context.Context) (map[string]minigame.Prize, error) {
	rows, err := s.pool.Query(ctx, `SELECT portal, score, coins, items, start_at, end_at FROM minigame_prize`)
	if err != nil {
		return nil, fmt.Errorf("load prizes: %w", err)
	}
	defer rows.Close()
	out := map[string]minigame.Prize{}
	for rows.Next() {
		var portal string
		var items []byte
		var startAt, endAt *time.Time
		var p minigame.Prize
		if err := rows.Scan(&portal, &p.Score, &p.Coins, &items, &startAt, &endAt); err != nil {
			return nil, err
		}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &p.Items); err != nil {
				return nil, err
			}
		}
		if startAt != nil {
			p.StartAt = *startAt
		}
		if endAt != nil {
			p.EndAt = *endAt
		}
		out[portal] = p
	}
	return out, rows.Err()
}

// RecordAttempt increments the attempt count for at's UTC day.
func (s *PostgresStore) RecordAttempt(ctx context.Context, farmID int, portal string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO minigame_history (farm_id, portal, date_key, attempts)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (farm_id, portal, date_key) DO UPDATE SET attempts = minigame_history.attempts + 1`,
		farmID, portal, minigame.DateKey(at))
	return err
}

// RecordScore raises the day's high score when score beats it.
func (s *PostgresStore) RecordScore(ctx context.Context, farmID int, portal string, score int, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO minigame_history (farm_id, portal, date_key, highscore)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (farm_id, portal, date_key) DO UPDATE SET highscore = GREATEST(minigame_history.highscore, EXCLUDED.highscore)`,
		farmID, portal, minigame.DateKey(at), score)
	return err
}

// ClaimPrize marks the day's prize as claimed; an earlier claim is kept.
func (s *PostgresStore) ClaimPrize(ctx context.Context, farmID int, portal string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO minigame_history (farm_id, portal, date_key, prize_claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (farm_id, portal, date_key) DO UPDATE SET prize_claimed_at = COALESCE(minigame_history.prize_claimed_at, EXCLUDED.prize_claimed_at)`,
		farmID, portal, minigame.DateKey(at), at)
	return err
}

// RecordPurchase deducts the price and stores the purchase in one transaction.
func (s *PostgresStore) RecordPurchase(ctx context.Context, farmID int, portal string, p minigame.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var items []byte
	if p.Items != nil {
		var err error
		if items, err = json.Marshal(p.Items); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Replayed writes carry the same id and must not charge twice.
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM minigame_purchase WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE farm SET balance = balance - $2, updated_at = now()
		WHERE farm_id = $1 AND balance >= $2`, farmID, p.SFL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return portalerrors.ErrInsufficientBalance
	}
	tag, err = tx.Exec(ctx, `
		INSERT INTO minigame_purchase (id, farm_id, portal, sfl, items, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, farmID, portal, p.SFL, items, p.PurchasedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return tx.Commit(ctx)
}

// SetBalance creates or overwrites a farm's SFL balance.
func (s *PostgresStore) SetBalance(ctx context.Context, farmID, balance int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO farm (farm_id, balance) VALUES ($1, $2)
		ON CONFLICT (farm_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		farmID, balance)
	return err
}

// SetPrize creates or replaces the prize for portal.
func (s *PostgresStore) SetPrize(ctx context.Context, portal string, p minigame.Prize) error {
	var items []byte
	if p.Items != nil {
		var err error
		if items, err = json.Marshal(p.Items); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO minigame_prize (portal, score, coins, items, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portal) DO UPDATE SET score = EXCLUDED.score, coins = EXCLUDED.coins,
			items = EXCLUDED.items, start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at`,
		portal, p.Score, p.Coins, items, nullTime(p.StartAt), nullTime(p.EndAt))
	return err
}

// Leaderboard returns the day's best scores for portal, highest first.
func (s *PostgresStore) Leaderboard(ctx context.Context, portal, dateKey string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT farm_id, highscore
		FROM minigame_history
		WHERE portal = $1 AND date_key = $2 AND highscore > 0
		ORDER BY highscore DESC, farm_id ASC
		LIMIT $3`, portal, dateKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.FarmID, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func gameFor(state *minigame.GameState, portal string) *minigame.Minigame {
	g := state.Minigames.Games[portal]
	if g == nil {
		g = &minigame.Minigame{History: map[string]minigame.DailyRecord{}}
		state.Minigames.Games[portal] = g
	}
	return g
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
