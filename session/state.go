package session

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"portal-minigame-server/minigame"
)

// State is a node of the session machine.
type State string

const (
	StateInitialising State = "initialising"
	StateUnauthorised State = "unauthorised"
	StateLoading      State = "loading"
	StateError        State = "error"
	StateIntroduction State = "introduction"
	StateStarting     State = "starting"
	StateNoAttempts   State = "noAttempts"
	StateReady        State = "ready"
	StatePlaying      State = "playing"
	StateGameOver     State = "gameOver"
	StateWinner       State = "winner"
	StateLoser        State = "loser"
	StateComplete     State = "complete"
)

// Transient reports whether the state resolves immediately through its guards.
// Transient states are never observed in a Snapshot.
func (s State) Transient() bool {
	switch s {
	case StateInitialising, StateStarting, StateGameOver:
		return true
	}
	return false
}

// Delivery is an open gift request shown above an elf in the delivery variant.
type Delivery struct {
	Gifts     []string `json:"gifts"`
	Direction string   `json:"direction"`
	Position  int      `json:"position"`
}

func deliveryKey(direction string, position int) string {
	return fmt.Sprintf("%s:%d", direction, position)
}

// Context is the mutable session record. Only the machine writes it.
type Context struct {
	FarmID         int    `json:"farmId"`
	Token          string `json:"-"`
	JoystickActive bool   `json:"isJoystickActive"`

	// GameState is replaced, never mutated, by gateway calls. Treat it as read-only.
	GameState *minigame.GameState `json:"-"`

	Score     int `json:"score"`
	LastScore int `json:"lastScore"`
	Lives     int `json:"lives"`
	// EndAt is the session deadline in Unix milliseconds; 0 means not started.
	EndAt        int64           `json:"endAt"`
	AttemptsLeft int             `json:"attemptsLeft"`
	Validations  map[string]bool `json:"validations"`
	IsTraining   bool            `json:"isTraining"`

	// Puzzle hub.
	ResetAttempts int  `json:"resetAttempts"`
	HasPower      bool `json:"hasPower"`

	// Delivery game.
	Gifts       []string            `json:"gifts"`
	Streak      int                 `json:"streak"`
	Deliveries  map[string]Delivery `json:"deliveries"`
	ActiveEvent string              `json:"event"`
}

func (c Context) clone() Context {
	out := c
	out.Validations = maps.Clone(c.Validations)
	out.Gifts = slices.Clone(c.Gifts)
	if c.Deliveries != nil {
		out.Deliveries = make(map[string]Delivery, len(c.Deliveries))
		for k, d := range c.Deliveries {
			d.Gifts = slices.Clone(d.Gifts)
			out.Deliveries[k] = d
		}
	}
	return out
}

// Snapshot is a consistent copy of the machine for readers on other goroutines.
type Snapshot struct {
	ID      string    `json:"id"`
	State   State     `json:"state"`
	Context Context   `json:"context"`
	At      time.Time `json:"at"`

	BestToday   int `json:"bestToday"`
	BestAllTime int `json:"bestAllTime"`
	// RefreshAt is when the free allowance comes back; set only in noAttempts.
	RefreshAt time.Time `json:"refreshAt,omitzero"`
}

// Matches reports whether the snapshot is in one of states.
func (s Snapshot) Matches(states ...State) bool {
	return slices.Contains(states, s.State)
}

// Playing is true while score and life events are accepted.
func (s Snapshot) Playing() bool {
	return s.State == StatePlaying
}

// Deadline returns EndAt as a time; zero when no session has started.
func (s Snapshot) Deadline() time.Time {
	if s.Context.EndAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.Context.EndAt)
}
