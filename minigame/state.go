package minigame

import (
	"time"
)

// GameState is the slice of a player's remote game state this server reads and writes.
// The session machine treats it as opaque apart from the minigame records below.
type GameState struct {
	// Balance is the player's SFL balance, spent on attempt purchases.
	Balance   int       `json:"balance"`
	Minigames Minigames `json:"minigames"`
}

// Minigames holds per-portal records and the prizes currently offered.
type Minigames struct {
	Games  map[string]*Minigame `json:"games"`
	Prizes map[string]Prize     `json:"prizes"`
}

// Minigame is one portal's persisted record for a player.
type Minigame struct {
	// History is keyed by UTC date (YYYY-MM-DD).
	History   map[string]DailyRecord `json:"history"`
	Purchases []Purchase             `json:"purchases"`
}

// DailyRecord counts one day's attempts and best score.
type DailyRecord struct {
	Attempts       int        `json:"attempts"`
	HighScore      int        `json:"highscore"`
	PrizeClaimedAt *time.Time `json:"prizeClaimedAt,omitempty"`
}

// Purchase is an attempt restock (or unlimited pass) bought with SFL.
type Purchase struct {
	ID          string         `json:"id"`
	SFL         int            `json:"sfl"`
	Items       map[string]int `json:"items,omitempty"`
	PurchasedAt time.Time      `json:"purchasedAt"`
}

// Prize is a server-defined score threshold and its reward.
// Zero StartAt/EndAt leave that side of the window open.
type Prize struct {
	Score   int            `json:"score"`
	Coins   int            `json:"coins"`
	Items   map[string]int `json:"items,omitempty"`
	StartAt time.Time      `json:"startAt,omitempty"`
	EndAt   time.Time      `json:"endAt,omitempty"`
}

// Live reports whether the prize can be won at t.
func (p Prize) Live(t time.Time) bool {
	if !p.StartAt.IsZero() && t.Before(p.StartAt) {
		return false
	}
	if !p.EndAt.IsZero() && !t.Before(p.EndAt) {
		return false
	}
	return true
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Game returns the record for portal, or nil when the player never played it.
func (s *GameState) Game(portal string) *Minigame {
	if s == nil || s.Minigames.Games == nil {
		return nil
	}
	return s.Minigames.Games[portal]
}

// Prize returns the prize configured for portal.
func (s *GameState) Prize(portal string) (Prize, bool) {
	if s == nil || s.Minigames.Prizes == nil {
		return Prize{}, false
	}
	p, ok := s.Minigames.Prizes[portal]
	return p, ok
}

// BestToday returns the highest score submitted on t's UTC day.
func (m *Minigame) BestToday(t time.Time) int {
	if m == nil {
		return 0
	}
	return m.History[DateKey(t)].HighScore
}

// BestAllTime returns the highest score across the whole history.
func (m *Minigame) BestAllTime() int {
	if m == nil {
		return 0
	}
	best := 0
	for _, rec := range m.History {
		if rec.HighScore > best {
			best = rec.HighScore
		}
	}
	return best
}

// Clone returns a deep copy so reducers never mutate a snapshot someone else holds.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := &GameState{
		Balance: s.Balance,
		Minigames: Minigames{
			Games:  make(map[string]*Minigame, len(s.Minigames.Games)),
			Prizes: make(map[string]Prize, len(s.Minigames.Prizes)),
		},
	}
	for name, g := range s.Minigames.Games {
		out.Minigames.Games[name] = g.clone()
	}
	for name, p := range s.Minigames.Prizes {
		p.Items = cloneItems(p.Items)
		out.Minigames.Prizes[name] = p
	}
	return out
}

func (m *Minigame) clone() *Minigame {
	if m == nil {
		return nil
	}
	out := &Minigame{
		History:   make(map[string]DailyRecord, len(m.History)),
		Purchases: make([]Purchase, len(m.Purchases)),
	}
	for k, rec := range m.History {
		if rec.PrizeClaimedAt != nil {
			at := *rec.PrizeClaimedAt
			rec.PrizeClaimedAt = &at
		}
		out.History[k] = rec
	}
	for i, p := range m.Purchases {
		p.Items = cloneItems(p.Items)
		out.Purchases[i] = p
	}
	return out
}

func cloneItems(items map[string]int) map[string]int {
	if items == nil {
		return nil
	}
	out := make(map[string]int, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}
