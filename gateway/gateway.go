// Package gateway adapts the farm store to the session.Gateway contract.
//
// Loads are synchronous. Writes apply the minigame reducer locally, return
// the new state at once and persist through a background queue with retries,
// so a slow or failing store never blocks a session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"portal-minigame-server/attempts"
	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/minigame"
	"portal-minigame-server/portalerrors"
	"portal-minigame-server/session"
	"portal-minigame-server/storage"
)

// GuestFarmID is the farm used for tokenless local play. Guest writes are never persisted.
const GuestFarmID = 0

// Option configures a Portal.
type Option func(*Portal)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Portal) { p.now = now }
}

// WithRetry sets the retry policy for queued writes.
func WithRetry(maxTries uint, initial time.Duration) Option {
	return func(p *Portal) {
		p.maxTries = maxTries
		p.initialBackoff = initial
	}
}

type write struct {
	op     string
	farmID int
	apply  func(ctx context.Context, s storage.Store) error
}

// Portal is the Remote Gateway for one portal.
type Portal struct {
	cfg      *config.Config
	rules    attempts.Rules
	store    storage.Store
	verifier *auth.Verifier
	now      func() time.Time
	log      *slog.Logger

	writes         chan write
	maxTries       uint
	initialBackoff time.Duration
}

var _ session.Gateway = (*Portal)(nil)

// New creates a Portal. store and verifier must not be nil.
func New(cfg *config.Config, store storage.Store, verifier *auth.Verifier, opts ...Option) *Portal {
	size := cfg.WriteQueueSize
	if size <= 0 {
		size = 256
	}
	p := &Portal{
		cfg:            cfg,
		rules:          cfg.AttemptRules(),
		store:          store,
		verifier:       verifier,
		now:            time.Now,
		log:            slog.Default().With("tag", "gateway"),
		writes:         make(chan write, size),
		maxTries:       5,
		initialBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load resolves token to a farm and returns its stored state with today's attempts.
// An empty token loads a guest farm unless tokens are required.
func (p *Portal) Load(ctx context.Context, token string) (session.LoadResult, error) {
	if token == "" {
		if p.cfg.RequireToken {
			return session.LoadResult{}, portalerrors.ErrMissingToken
		}
		return p.loadGuest(ctx)
	}

	farmID, err := p.verifier.FarmID(token)
	if err != nil {
		if errors.Is(err, portalerrors.ErrInvalidFarmID) {
			return session.LoadResult{}, fmt.Errorf("%w: %v", portalerrors.ErrUnauthorised, err)
		}
		return session.LoadResult{}, err
	}

	state, err := p.store.LoadGameState(ctx, farmID)
	if err != nil {
		return session.LoadResult{}, fmt.Errorf("load farm %d: %w", farmID, err)
	}
	left := attempts.Left(state.Game(p.cfg.PortalName), farmID, p.now(), p.rules)
	p.log.Debug("farm loaded", "farm", farmID, "attemptsLeft", left)
	return session.LoadResult{State: state, FarmID: farmID, AttemptsLeft: left}, nil
}

func (p *Portal) loadGuest(ctx context.Context) (session.LoadResult, error) {
	state := minigame.OfflineFarm()
	// Guests still see the live prize.
	if stored, err := p.store.LoadGameState(ctx, GuestFarmID); err == nil {
		for portal, prize := range stored.Minigames.Prizes {
			state.Minigames.Prizes[portal] = prize
		}
	}
	left := attempts.Left(nil, GuestFarmID, p.now(), p.rules)
	return session.LoadResult{State: state, FarmID: GuestFarmID, AttemptsLeft: left}, nil
}

func (p *Portal) StartAttempt(farmID int, state *minigame.GameState) *minigame.GameState {
	now := p.now()
	next := minigame.StartAttempt(state, p.cfg.PortalName, now)
	p.enqueue(write{op: "attempt", farmID: farmID, apply: func(ctx context.Context, s storage.Store) error {
		return s.RecordAttempt(ctx, farmID, p.cfg.PortalName, now)
	}})
	return next
}

// SubmitScore records score and, when it reaches an unclaimed live prize, claims it.
func (p *Portal) SubmitScore(farmID int, state *minigame.GameState, score int) *minigame.GameState {
	now := p.now()
	portal := p.cfg.PortalName
	next := minigame.SubmitScore(state, portal, score, now)
	p.enqueue(write{op: "score", farmID: farmID, apply: func(ctx context.Context, s storage.Store) error {
		return s.RecordScore(ctx, farmID, portal, score, now)
	}})

	if prize, ok := next.Prize(portal); ok && prize.Live(now) && score >= prize.Score && !minigame.PrizeClaimedToday(next, portal, now) {
		next = minigame.ClaimPrize(next, portal, now)
		p.log.Info("prize claimed", "farm", farmID, "score", score, "coins", prize.Coins)
		p.enqueue(write{op: "claim", farmID: farmID, apply: func(ctx context.Context, s storage.Store) error {
			return s.ClaimPrize(ctx, farmID, portal, now)
		}})
	}
	return next
}

// Purchase validates the price against the catalogue and the local balance before queueing the charge.
func (p *Portal) Purchase(farmID int, state *minigame.GameState, sfl int, items map[string]int) (*minigame.GameState, error) {
	if err := p.checkPrice(sfl); err != nil {
		return nil, err
	}
	purchase := minigame.Purchase{ID: uuid.NewString(), SFL: sfl, Items: items, PurchasedAt: p.now()}
	next, err := minigame.PurchaseItem(state, p.cfg.PortalName, purchase)
	if err != nil {
		return nil, err
	}
	p.enqueue(write{op: "purchase", farmID: farmID, apply: func(ctx context.Context, s storage.Store) error {
		return s.RecordPurchase(ctx, farmID, p.cfg.PortalName, purchase)
	}})
	return next, nil
}

func (p *Portal) checkPrice(sfl int) error {
	if _, ok := p.rules.RestockFor(sfl); ok {
		return nil
	}
	if sfl == p.rules.UnlimitedSFL {
		if !p.rules.UnlimitedEnabled() {
			return portalerrors.ErrUnlimitedDisabled
		}
		return nil
	}
	return fmt.Errorf("%d SFL: %w", sfl, portalerrors.ErrUnknownRestock)
}

func (p *Portal) enqueue(w write) {
	if w.farmID == GuestFarmID {
		return
	}
	select {
	case p.writes <- w:
	default:
		p.log.Error("dropping remote write", "op", w.op, "farm", w.farmID, "err", portalerrors.ErrWriteQueueFull)
	}
}

// Pending returns the number of queued writes.
func (p *Portal) Pending() int {
	return len(p.writes)
}

// Run persists queued writes until ctx is cancelled, then flushes what is left.
// It should be run as a goroutine.
func (p *Portal) Run(ctx context.Context) {
	// A write already taken off the queue finishes its retries after shutdown starts.
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case w := <-p.writes:
			p.persist(writeCtx, w)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *Portal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case w := <-p.writes:
			p.persist(ctx, w)
		default:
			return
		}
	}
}

func (p *Portal) persist(ctx context.Context, w write) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.apply(ctx, p.store)
		if errors.Is(err, portalerrors.ErrInsufficientBalance) || errors.Is(err, portalerrors.ErrUnknownRestock) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.log.Warn("remote write failed, retrying", "op", w.op, "farm", w.farmID, "err", err, "in", next)
		}),
	)
	if err != nil {
		p.log.Error("remote write abandoned", "op", w.op, "farm", w.farmID, "err", err)
	}
}
