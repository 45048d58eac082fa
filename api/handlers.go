package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"portal-minigame-server/attempts"
	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/minigame"
	"portal-minigame-server/portalerrors"
	"portal-minigame-server/storage"
)

const bearerPrefix = "Bearer "

// Handler holds dependencies for API handlers.
type Handler struct {
	Config   *config.Config
	Store    storage.Store
	Verifier *auth.Verifier

	now func() time.Time
	log *slog.Logger
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.Store, verifier *auth.Verifier) *Handler {
	return &Handler{
		Config:   cfg,
		Store:    store,
		Verifier: verifier,
		now:      time.Now,
		log:      slog.Default().With("tag", "api"),
	}
}

// Routes returns the router with middleware installed. ws, if not nil, is mounted at /ws.
func (h *Handler) Routes(ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(CORS)

	if ws != nil {
		// No timeout here; the connection outlives the handler.
		r.Get("/ws", ws)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/health", h.Health)
		r.Route("/api", func(r chi.Router) {
			r.Get("/attempts", h.Attempts)
			r.Get("/leaderboard", h.Leaderboard)
			r.Get("/prize", h.Prize)
		})
	})
	return r
}

// CORS sets CORS headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// farmID validates the Authorization header and returns the farm id.
func (h *Handler) farmID(r *http.Request) (int, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return 0, portalerrors.ErrMissingToken
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	return h.Verifier.FarmID(token)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", "err", err)
	}
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AttemptsResponse is the JSON structure for /api/attempts.
type AttemptsResponse struct {
	FarmID       int                `json:"farmId"`
	AttemptsLeft int                `json:"attemptsLeft"`
	Unlimited    bool               `json:"unlimited"`
	RefreshAt    time.Time          `json:"refreshAt"`
	Restocks     []attempts.Restock `json:"restocks"`
	UnlimitedSFL int                `json:"unlimitedSfl,omitempty"`
	BestToday    int                `json:"bestToday"`
}

// Attempts returns today's remaining attempts for the authenticated farm.
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	farmID, err := h.farmID(r)
	if err != nil {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	state, err := h.Store.LoadGameState(r.Context(), farmID)
	if err != nil {
		h.log.Error("LoadGameState", "farm", farmID, "err", err)
		http.Error(w, "failed to load farm", http.StatusInternalServerError)
		return
	}

	now := h.now()
	rules := h.Config.AttemptRules()
	game := state.Game(h.Config.PortalName)
	left := attempts.Left(game, farmID, now, rules)
	resp := AttemptsResponse{
		FarmID:       farmID,
		AttemptsLeft: left,
		Unlimited:    left == attempts.Unlimited,
		RefreshAt:    attempts.NextRefresh(now),
		Restocks:     rules.Restocks,
		BestToday:    game.BestToday(now),
	}
	if resp.Unlimited {
		resp.AttemptsLeft = -1
	}
	if rules.UnlimitedEnabled() {
		resp.UnlimitedSFL = rules.UnlimitedSFL
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Portal  string                     `json:"portal"`
	Date    string                     `json:"date"`
	Entries []storage.LeaderboardEntry `json:"entries"`
}

// Leaderboard returns the day's highscores. Query: date=YYYY-MM-DD (default today), limit.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > storage.DefaultLeaderboardLimit {
		limit = storage.DefaultLeaderboardLimit
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = minigame.DateKey(h.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	entries, err := h.Store.Leaderboard(r.Context(), h.Config.PortalName, date, limit)
	if err != nil {
		h.log.Error("Leaderboard", "date", date, "err", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}
	h.writeJSON(w, http.StatusOK, LeaderboardResponse{Portal: h.Config.PortalName, Date: date, Entries: entries})
}

// PrizeResponse is the JSON structure for /api/prize.
type PrizeResponse struct {
	Prize minigame.Prize `json:"prize"`
	Live  bool           `json:"live"`
	// Claimed is only reported for authenticated requests.
	Claimed *bool `json:"claimed,omitempty"`
}

// Prize returns the portal's prize, and whether the caller claimed it today.
func (h *Handler) Prize(w http.ResponseWriter, r *http.Request) {
	farmID := 0
	authed := false
	if r.Header.Get("Authorization") != "" {
		id, err := h.farmID(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		farmID, authed = id, true
	}

	state, err := h.Store.LoadGameState(r.Context(), farmID)
	if err != nil && !errors.Is(err, portalerrors.ErrNotFound) {
		h.log.Error("LoadGameState", "farm", farmID, "err", err)
		http.Error(w, "failed to load prize", http.StatusInternalServerError)
		return
	}
	prize, ok := state.Prize(h.Config.PortalName)
	if !ok {
		http.Error(w, "no prize", http.StatusNotFound)
		return
	}

	now := h.now()
	resp := PrizeResponse{Prize: prize, Live: prize.Live(now)}
	if authed {
		claimed := minigame.PrizeClaimedToday(state, h.Config.PortalName, now)
		resp.Claimed = &claimed
	}
	h.writeJSON(w, http.StatusOK, resp)
}
