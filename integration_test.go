package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"portal-minigame-server/api"
	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/gateway"
	"portal-minigame-server/minigame"
	"portal-minigame-server/power"
	"portal-minigame-server/puzzle"
	"portal-minigame-server/storage"
	"portal-minigame-server/storage/memory"
	"portal-minigame-server/ws"
)

const testSecret = "integration-secret"

// setupTestServer creates a test HTTP server with the full stack on an in-memory store.
func setupTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	if prize, ok := cfg.SeedPrize(); ok {
		store.SetPrize(context.Background(), cfg.PortalName, prize)
	}
	verifier, err := auth.NewVerifier(testSecret, "")
	if err != nil {
		t.Fatal(err)
	}
	gw := gateway.New(cfg, store, verifier)
	powers := power.NewRegistry()
	power.RegisterAll(powers)
	hub := ws.NewHub(cfg, gw, powers, &puzzle.Onboarding{})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go gw.Run(ctx)

	server := httptest.NewServer(api.NewHandler(cfg, store, verifier).Routes(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, store
}

func signToken(t *testing.T, farmID int) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, farmID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// connectWS creates a WebSocket connection to the test server.
func connectWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?jwt=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMsg reads a JSON message from the WebSocket and returns it as a map.
func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}
	return msg
}

// waitForState reads until a session_state in state arrives and returns its session.
func waitForState(t *testing.T, conn *websocket.Conn, state string) map[string]any {
	t.Helper()
	for {
		msg := readMsg(t, conn)
		if msg["type"] != "session_state" {
			continue
		}
		session := msg["session"].(map[string]any)
		if session["state"] == state {
			return session
		}
	}
}

// waitForSignal reads until a signal named name arrives.
func waitForSignal(t *testing.T, conn *websocket.Conn, name string) map[string]any {
	t.Helper()
	for {
		msg := readMsg(t, conn)
		if msg["type"] == "signal" && msg["signal"] == name {
			return msg
		}
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
}

func getJSON(t *testing.T, url, token string, v any) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func TestFullSessionWinsPrize(t *testing.T) {
	cfg := config.Defaults()
	cfg.Prize.Score = 3
	cfg.Prize.Coins = 20
	server, _ := setupTestServer(t, cfg)
	token := signToken(t, 9)
	conn := connectWS(t, server, token)

	intro := waitForState(t, conn, "introduction")
	ctx := intro["context"].(map[string]any)
	if ctx["farmId"].(float64) != 9 || ctx["attemptsLeft"].(float64) != 1 {
		t.Fatalf("unexpected context after load: %v", ctx)
	}

	sendMsg(t, conn, `{"type":"continue"}`)
	waitForState(t, conn, "ready")
	sendMsg(t, conn, `{"type":"start"}`)
	waitForState(t, conn, "playing")
	for range 3 {
		sendMsg(t, conn, `{"type":"gain_points"}`)
	}
	sendMsg(t, conn, `{"type":"game_over"}`)
	winner := waitForState(t, conn, "winner")
	if winner["bestToday"].(float64) != 3 {
		t.Errorf("expected bestToday=3, got %v", winner["bestToday"])
	}

	// Writes are persisted in the background; the claim is queued last.
	deadline := time.Now().Add(3 * time.Second)
	var prize api.PrizeResponse
	for time.Now().Before(deadline) {
		prize = api.PrizeResponse{}
		if code := getJSON(t, server.URL+"/api/prize", token, &prize); code != http.StatusOK {
			t.Fatalf("expected 200 from /api/prize, got %d", code)
		}
		if prize.Claimed != nil && *prize.Claimed {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if prize.Claimed == nil || !*prize.Claimed {
		t.Fatalf("expected the prize to be claimed, got %+v", prize)
	}

	var board api.LeaderboardResponse
	getJSON(t, server.URL+"/api/leaderboard", "", &board)
	if len(board.Entries) != 1 || board.Entries[0] != (storage.LeaderboardEntry{FarmID: 9, Score: 3}) {
		t.Fatalf("unexpected leaderboard %+v", board.Entries)
	}

	var left api.AttemptsResponse
	getJSON(t, server.URL+"/api/attempts", token, &left)
	if left.AttemptsLeft != 0 {
		t.Errorf("expected attemptsLeft=0, got %d", left.AttemptsLeft)
	}
}

func TestRetryWithoutAttemptsAndFailedPurchase(t *testing.T) {
	server, store := setupTestServer(t, config.Defaults())
	store.RecordAttempt(context.Background(), 5, "christmas", time.Now())
	conn := connectWS(t, server, signToken(t, 5))

	waitForState(t, conn, "introduction")
	sendMsg(t, conn, `{"type":"continue"}`)
	noAttempts := waitForState(t, conn, "noAttempts")
	if _, ok := noAttempts["refreshAt"]; !ok {
		t.Error("expected refreshAt in noAttempts")
	}

	// The farm holds no SFL.
	sendMsg(t, conn, `{"type":"purchased_restock","sfl":3}`)
	failed := waitForSignal(t, conn, "purchase_failed")
	if !strings.Contains(failed["error"].(string), "insufficient") {
		t.Errorf("unexpected purchase error %v", failed["error"])
	}

	sendMsg(t, conn, `{"type":"cancel_purchase"}`)
	waitForState(t, conn, "introduction")
}

func TestPurchaseRestock(t *testing.T) {
	server, store := setupTestServer(t, config.Defaults())
	ctx := context.Background()
	store.RecordAttempt(ctx, 6, "christmas", time.Now())
	store.SetBalance(ctx, 6, 10)
	conn := connectWS(t, server, signToken(t, 6))

	waitForState(t, conn, "introduction")
	sendMsg(t, conn, `{"type":"continue"}`)
	waitForState(t, conn, "noAttempts")
	sendMsg(t, conn, `{"type":"purchased_restock","sfl":7}`)
	intro := waitForState(t, conn, "introduction")
	if left := intro["context"].(map[string]any)["attemptsLeft"].(float64); left != 3 {
		t.Errorf("expected attemptsLeft=3 after the restock, got %v", left)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state, _ := store.LoadGameState(ctx, 6)
		if state.Balance == 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("expected the purchase to be persisted with balance 3")
}

func TestInvalidTokenIsUnauthorised(t *testing.T) {
	server, _ := setupTestServer(t, config.Defaults())
	conn := connectWS(t, server, "not-a-token")
	waitForState(t, conn, "unauthorised")
}

func TestGuestPlayIsNotPersisted(t *testing.T) {
	server, store := setupTestServer(t, config.Defaults())
	conn := connectWS(t, server, "")

	waitForState(t, conn, "introduction")
	sendMsg(t, conn, `{"type":"continue"}`)
	waitForState(t, conn, "ready")
	sendMsg(t, conn, `{"type":"start"}`)
	waitForState(t, conn, "playing")
	sendMsg(t, conn, `{"type":"gain_points","points":4}`)
	sendMsg(t, conn, `{"type":"end_game_early"}`)
	waitForState(t, conn, "introduction")

	entries, _ := store.Leaderboard(context.Background(), "christmas", minigame.DateKey(time.Now()), 10)
	if len(entries) != 0 {
		t.Errorf("expected guest scores to stay local, got %+v", entries)
	}
}
