package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/minigame"
	"portal-minigame-server/storage/memory"
)

const secret = "test-secret"

var testNow = time.Date(2025, 12, 10, 15, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	v, err := auth.NewVerifier(secret, "")
	if err != nil {
		t.Fatal(err)
	}
	store := memory.New()
	h := NewHandler(config.Defaults(), store, v)
	h.now = func() time.Time { return testNow }
	return h, store
}

func get(t *testing.T, h *Handler, path string, farmID int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if farmID > 0 {
		tok, err := auth.Sign(secret, farmID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.Routes(nil).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := get(t, h, "/health", 0)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAttemptsRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := get(t, h, "/api/attempts", 0)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAttempts(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	store.RecordAttempt(ctx, 7, h.Config.PortalName, testNow)
	store.RecordScore(ctx, 7, h.Config.PortalName, 12, testNow)
	store.SetBalance(ctx, 7, 10)
	store.RecordPurchase(ctx, 7, h.Config.PortalName, minigame.Purchase{ID: "p1", SFL: 3, PurchasedAt: testNow})

	rec := get(t, h, "/api/attempts", 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp AttemptsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// 1 free + 1 restocked - 1 used.
	if resp.AttemptsLeft != 1 {
		t.Errorf("expected attemptsLeft=1, got %d", resp.AttemptsLeft)
	}
	if resp.BestToday != 12 {
		t.Errorf("expected bestToday=12, got %d", resp.BestToday)
	}
	if !resp.RefreshAt.Equal(time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected refreshAt %v", resp.RefreshAt)
	}
	if len(resp.Restocks) != 4 || resp.UnlimitedSFL != 150 {
		t.Errorf("unexpected catalogue %+v / %d", resp.Restocks, resp.UnlimitedSFL)
	}
}

func TestAttemptsUnlimited(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	store.SetBalance(ctx, 7, 500)
	store.RecordPurchase(ctx, 7, h.Config.PortalName, minigame.Purchase{ID: "p1", SFL: 150, PurchasedAt: testNow})

	var resp AttemptsResponse
	json.Unmarshal(get(t, h, "/api/attempts", 7).Body.Bytes(), &resp)
	if !resp.Unlimited || resp.AttemptsLeft != -1 {
		t.Errorf("expected unlimited, got %+v", resp)
	}
}

func TestLeaderboard(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	store.RecordScore(ctx, 1, h.Config.PortalName, 5, testNow)
	store.RecordScore(ctx, 2, h.Config.PortalName, 9, testNow)
	store.RecordScore(ctx, 3, h.Config.PortalName, 20, testNow.Add(-24*time.Hour))

	rec := get(t, h, "/api/leaderboard", 0)
	var resp LeaderboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Date != "2025-12-10" {
		t.Errorf("expected today's date, got %s", resp.Date)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].FarmID != 2 || resp.Entries[1].FarmID != 1 {
		t.Errorf("unexpected entries %+v", resp.Entries)
	}

	rec = get(t, h, "/api/leaderboard?date=2025-12-09", 0)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].Score != 20 {
		t.Errorf("unexpected entries for yesterday %+v", resp.Entries)
	}

	if rec := get(t, h, "/api/leaderboard?date=yesterday", 0); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad date, got %d", rec.Code)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := get(t, h, "/api/leaderboard", 0)
	var raw map[string]json.RawMessage
	json.Unmarshal(rec.Body.Bytes(), &raw)
	if string(raw["entries"]) != "[]" {
		t.Errorf("expected an empty array, got %s", raw["entries"])
	}
}

func TestPrize(t *testing.T) {
	h, store := newTestHandler(t)
	if rec := get(t, h, "/api/prize", 0); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a prize, got %d", rec.Code)
	}

	ctx := context.Background()
	store.SetPrize(ctx, h.Config.PortalName, minigame.Prize{Score: 10, Coins: 50})
	store.ClaimPrize(ctx, 4, h.Config.PortalName, testNow)

	var resp PrizeResponse
	json.Unmarshal(get(t, h, "/api/prize", 0).Body.Bytes(), &resp)
	if resp.Prize.Score != 10 || !resp.Live || resp.Claimed != nil {
		t.Errorf("unexpected anonymous prize response %+v", resp)
	}

	resp = PrizeResponse{}
	json.Unmarshal(get(t, h, "/api/prize", 4).Body.Bytes(), &resp)
	if resp.Claimed == nil || !*resp.Claimed {
		t.Errorf("expected claimed=true for farm 4, got %+v", resp.Claimed)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/attempts", nil)
	rec := httptest.NewRecorder()
	h.Routes(nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}
