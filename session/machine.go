package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"portal-minigame-server/attempts"
	"portal-minigame-server/config"
	"portal-minigame-server/portalerrors"
)

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithCompletedGuard installs the predicate that sends a finished run to complete.
func WithCompletedGuard(fn CompletedFunc) Option {
	return func(m *Machine) { m.completed = fn }
}

// WithLogger sets the base logger; the machine adds its own tag and id.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithID fixes the machine id instead of generating one.
func WithID(id string) Option {
	return func(m *Machine) { m.id = id }
}

type envelope struct {
	ev    Event
	reply chan Snapshot
}

type waiter struct {
	states []State
	ch     chan Snapshot
}

// Machine is the session state machine for one player in one portal.
// All transitions happen on the goroutine running Run; other goroutines
// talk to it through Send, Dispatch, Await and Snapshot.
type Machine struct {
	id        string
	cfg       *config.Config
	rules     attempts.Rules
	gateway   Gateway
	powers    PowerProvider
	completed CompletedFunc
	now       func() time.Time
	log       *slog.Logger

	events chan envelope
	done   chan struct{}
	runCtx context.Context

	// Owned by the Run goroutine; published under mu.
	state   State
	ctx     Context
	epoch   uint64
	pending []Signal

	mu        sync.Mutex
	snap      Snapshot
	waiters   []*waiter
	observers []observerEntry
	nextObs   int
}

type observerEntry struct {
	id  int
	obs Observer
}

// NewMachine creates a machine for token. gw must not be nil; powers may be.
// The machine does nothing until Run is called.
func NewMachine(cfg *config.Config, token string, gw Gateway, powers PowerProvider, opts ...Option) *Machine {
	m := &Machine{
		cfg:     cfg,
		rules:   cfg.AttemptRules(),
		gateway: gw,
		powers:  powers,
		now:     time.Now,
		log:     slog.Default(),
		events:  make(chan envelope, 64),
		done:    make(chan struct{}),
		ctx: Context{
			Token:         token,
			Lives:         cfg.GameLives,
			ResetAttempts: cfg.ResetAttempts,
			Validations:   map[string]bool{},
			Deliveries:    map[string]Delivery{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	if m.completed == nil {
		m.completed = func(Context) bool { return false }
	}
	m.log = m.log.With("tag", "session", "session", m.id)
	m.state = StateInitialising
	m.snap = m.snapshot()
	return m
}

// ID returns the machine id.
func (m *Machine) ID() string { return m.id }

// Done is closed when Run returns.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Run enters the initial state and processes events until ctx is cancelled.
// It should be run as a goroutine, once.
func (m *Machine) Run(ctx context.Context) {
	defer close(m.done)
	m.runCtx = ctx

	m.transition(StateInitialising)
	m.publish("", true, nil)

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("session stopped", "state", m.state)
			return
		case env := <-m.events:
			prev := m.state
			handled := m.handle(env.ev)
			if !handled {
				m.log.Debug("event ignored", "event", env.ev.Name(), "state", m.state)
			}
			m.publish(prev, handled, env.reply)
		}
	}
}

// Send queues an event without waiting for it to be processed.
// It returns false once the machine has stopped.
func (m *Machine) Send(ev Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- envelope{ev: ev}:
		return true
	case <-m.done:
		return false
	}
}

// Dispatch queues an event and waits for the snapshot taken right after it was processed.
func (m *Machine) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	select {
	case <-m.done:
		return Snapshot{}, portalerrors.ErrMachineStopped
	default:
	}
	reply := make(chan Snapshot, 1)
	select {
	case m.events <- envelope{ev: ev, reply: reply}:
	case <-m.done:
		return Snapshot{}, portalerrors.ErrMachineStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-m.done:
		return Snapshot{}, portalerrors.ErrMachineStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Snapshot returns the latest published snapshot.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Await blocks until the machine is in one of states. Transient states never match.
func (m *Machine) Await(ctx context.Context, states ...State) (Snapshot, error) {
	m.mu.Lock()
	if slices.Contains(states, m.snap.State) {
		s := m.snap
		m.mu.Unlock()
		return s, nil
	}
	w := &waiter{states: states, ch: make(chan Snapshot, 1)}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	select {
	case s := <-w.ch:
		return s, nil
	case <-ctx.Done():
		m.dropWaiter(w)
		return Snapshot{}, ctx.Err()
	case <-m.done:
		m.dropWaiter(w)
		return m.Snapshot(), portalerrors.ErrMachineStopped
	}
}

func (m *Machine) dropWaiter(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiters = slices.DeleteFunc(m.waiters, func(x *waiter) bool { return x == w })
}

// Subscribe registers an observer and returns a function that removes it.
func (m *Machine) Subscribe(o Observer) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObs++
	id := m.nextObs
	m.observers = append(m.observers, observerEntry{id: id, obs: o})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.observers = slices.DeleteFunc(m.observers, func(e observerEntry) bool { return e.id == id })
	}
}

// publish stores the new snapshot, wakes matching waiters, notifies observers
// with the signals the event raised and then answers the dispatcher.
func (m *Machine) publish(prev State, handled bool, reply chan Snapshot) {
	snap := m.snapshot()

	signals := m.pending
	m.pending = nil
	switch {
	case prev != m.state:
		signals = append([]Signal{{Kind: SignalStateChanged}}, signals...)
	case handled:
		signals = append([]Signal{{Kind: SignalContextChanged}}, signals...)
	}

	m.mu.Lock()
	m.snap = snap
	m.waiters = slices.DeleteFunc(m.waiters, func(w *waiter) bool {
		if slices.Contains(w.states, snap.State) {
			w.ch <- snap
			return true
		}
		return false
	})
	observers := make([]Observer, len(m.observers))
	for i, e := range m.observers {
		observers[i] = e.obs
	}
	m.mu.Unlock()

	for _, sig := range signals {
		for _, o := range observers {
			o.Notify(sig, snap)
		}
	}
	if reply != nil {
		reply <- snap
	}
}

func (m *Machine) snapshot() Snapshot {
	now := m.now()
	g := m.ctx.GameState.Game(m.cfg.PortalName)
	snap := Snapshot{
		ID:          m.id,
		State:       m.state,
		Context:     m.ctx.clone(),
		At:          now,
		BestToday:   g.BestToday(now),
		BestAllTime: g.BestAllTime(),
	}
	if m.state == StateNoAttempts {
		snap.RefreshAt = attempts.NextRefresh(now)
	}
	return snap
}

func (m *Machine) emit(kind SignalKind) {
	m.pending = append(m.pending, Signal{Kind: kind})
}

func (m *Machine) emitErr(kind SignalKind, err error) {
	m.pending = append(m.pending, Signal{Kind: kind, Err: err})
}

// post delivers an internal event from a helper goroutine.
func (m *Machine) post(ev Event) {
	select {
	case m.events <- envelope{ev: ev}:
	case <-m.done:
	}
}
