package bot

import (
	"math/rand/v2"
	"slices"
	"sync"

	"portal-minigame-server/session"
)

// Strategy picks the events for one tick of a run from the latest snapshot.
// hit is the outcome of the tick's skill roll.
type Strategy func(snap session.Snapshot, hit bool, rng *rand.Rand) []session.Event

var (
	mu         sync.RWMutex
	strategies = make(map[string]Strategy)
)

// Register adds or overwrites a strategy.
func Register(name string, s Strategy) {
	mu.Lock()
	defer mu.Unlock()
	strategies[name] = s
}

// Lookup returns the named strategy.
func Lookup(name string) (Strategy, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := strategies[name]
	return s, ok
}

// Names lists registered strategies in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(strategies))
	for name := range strategies {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func init() {
	Register("steady", steady)
	Register("cautious", cautious)
	Register("delivery", delivery)
}

// steady scores a point on a hit and loses a life on a miss.
func steady(_ session.Snapshot, hit bool, _ *rand.Rand) []session.Event {
	if hit {
		return []session.Event{session.GainPoints{}}
	}
	return []session.Event{session.LoseLife{}}
}

// cautious plays like steady but spends the life power once when down to one life.
// HasPower marks that the power was used this run.
func cautious(snap session.Snapshot, hit bool, rng *rand.Rand) []session.Event {
	if snap.Context.Lives == 1 && !snap.Context.HasPower {
		return []session.Event{session.UsePower{Power: "life"}, session.SetPower{HasPower: true}}
	}
	return steady(snap, hit, rng)
}

// delivery collects a gift and hands it over for a streak; a miss breaks the streak.
func delivery(snap session.Snapshot, hit bool, rng *rand.Rand) []session.Event {
	if !hit {
		return []session.Event{session.Streak{Streak: -1}, session.LoseLife{}}
	}
	gifts := []string{"teddy", "candy", "sock"}
	gift := gifts[rng.IntN(len(gifts))]
	return []session.Event{
		session.CollectGift{Gift: gift},
		session.UpdateDeliveries{Delivery: []string{gift}, Direction: "left", Position: rng.IntN(4)},
		session.RemoveLastGift{},
		session.Streak{Streak: 1},
	}
}
