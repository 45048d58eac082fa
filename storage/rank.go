package storage

import (
	"slices"

	"portal-minigame-server/minigame"
)

// RankDay builds a day's leaderboard from whole farm states. The embedded
// stores use it; Postgres ranks in SQL.
func RankDay(farms map[int]*minigame.GameState, portal, dateKey string, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	out := []LeaderboardEntry{}
	for id, state := range farms {
		g := state.Game(portal)
		if g == nil {
			continue
		}
		if score := g.History[dateKey].HighScore; score > 0 {
			out = append(out, LeaderboardEntry{FarmID: id, Score: score})
		}
	}
	slices.SortFunc(out, func(a, b LeaderboardEntry) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.FarmID - b.FarmID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// HasPurchase reports whether g already holds a purchase with id.
func HasPurchase(g *minigame.Minigame, id string) bool {
	if g == nil || id == "" {
		return false
	}
	return slices.ContainsFunc(g.Purchases, func(p minigame.Purchase) bool { return p.ID == id })
}
