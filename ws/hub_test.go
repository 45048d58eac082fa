package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"portal-minigame-server/auth"
	"portal-minigame-server/config"
	"portal-minigame-server/gateway"
	"portal-minigame-server/power"
	"portal-minigame-server/puzzle"
	"portal-minigame-server/session"
	"portal-minigame-server/storage/memory"
)

type outbound struct {
	Type    string            `json:"type"`
	Session *session.Snapshot `json:"session"`
	Puzzle  json.RawMessage   `json:"puzzle"`
	PointID int               `json:"pointId"`
	Solved  bool              `json:"solved"`
	Signal  string            `json:"signal"`
	Message string            `json:"message"`
}

func newTestServer(t *testing.T, cfg *config.Config) (string, *puzzle.Onboarding) {
	t.Helper()
	verifier, err := auth.NewVerifier("test-secret", "")
	if err != nil {
		t.Fatal(err)
	}
	gw := gateway.New(cfg, memory.New(), verifier)
	powers := power.NewRegistry()
	power.RegisterAll(powers)
	onboarding := &puzzle.Onboarding{}

	hub := NewHub(cfg, gw, powers, onboarding)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go gw.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), onboarding
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

// readUntil returns the first message matching match, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, match func(outbound) bool) outbound {
	t.Helper()
	for {
		msg := next(t, conn)
		if match(msg) {
			return msg
		}
	}
}

func inState(state session.State) func(outbound) bool {
	return func(m outbound) bool {
		return m.Type == "session_state" && m.Session != nil && m.Session.State == state
	}
}

func ofType(typ string) func(outbound) bool {
	return func(m outbound) bool { return m.Type == typ }
}

func TestPuzzleRunOverWebsocket(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxPuzzles = 1
	url, _ := newTestServer(t, cfg)
	conn := dial(t, url)

	readUntil(t, conn, inState(session.StateIntroduction))
	send(t, conn, `{"type":"continue"}`)
	readUntil(t, conn, inState(session.StateReady))
	send(t, conn, `{"type":"start"}`)
	playing := readUntil(t, conn, inState(session.StatePlaying))
	if playing.Session.Context.AttemptsLeft != 0 {
		t.Errorf("expected attemptsLeft=0 after the free attempt, got %d", playing.Session.Context.AttemptsLeft)
	}

	send(t, conn, `{"type":"open_puzzle","pointId":1}`)
	opened := readUntil(t, conn, ofType("puzzle_opened"))
	req, err := puzzle.Unmarshal(opened.Puzzle)
	if err != nil {
		t.Fatalf("decode puzzle: %v", err)
	}
	if req.Kind() != puzzle.KindSliding || req.PointID() != 1 {
		t.Errorf("expected sliding puzzle at point 1, got %s at %d", req.Kind(), req.PointID())
	}

	send(t, conn, `{"type":"puzzle_solved","pointId":1}`)
	closed := readUntil(t, conn, ofType("puzzle_closed"))
	if !closed.Solved || closed.PointID != 1 {
		t.Errorf("expected point 1 solved, got %+v", closed)
	}

	// One puzzle is the cap, so the run ends without a game_over from the client.
	loser := readUntil(t, conn, inState(session.StateLoser))
	if loser.Session.Context.LastScore != 1 {
		t.Errorf("expected lastScore=1, got %d", loser.Session.Context.LastScore)
	}
}

func TestGameEventsOverWebsocket(t *testing.T) {
	cfg := config.Defaults()
	url, _ := newTestServer(t, cfg)
	conn := dial(t, url)

	readUntil(t, conn, inState(session.StateIntroduction))
	send(t, conn, `{"type":"continue_training"}`)
	readUntil(t, conn, inState(session.StateReady))
	send(t, conn, `{"type":"start"}`)
	readUntil(t, conn, inState(session.StatePlaying))

	send(t, conn, `{"type":"gain_points","points":5}`)
	send(t, conn, `{"type":"lose_life"}`)
	hurt := readUntil(t, conn, ofType("signal"))
	if hurt.Signal != "player_hurt" {
		t.Errorf("expected player_hurt, got %q", hurt.Signal)
	}
	send(t, conn, `{"type":"collect_gift","gift":"teddy"}`)
	snap := readUntil(t, conn, func(m outbound) bool {
		return m.Type == "session_state" && m.Session != nil && len(m.Session.Context.Gifts) == 1
	})
	if snap.Session.Context.Score != 5 {
		t.Errorf("expected score=5, got %d", snap.Session.Context.Score)
	}
	if snap.Session.Context.Lives != cfg.GameLives-1 {
		t.Errorf("expected lives=%d, got %d", cfg.GameLives-1, snap.Session.Context.Lives)
	}

	send(t, conn, `{"type":"game_over"}`)
	readUntil(t, conn, inState(session.StateIntroduction))
}

func TestInvalidMessages(t *testing.T) {
	url, _ := newTestServer(t, config.Defaults())
	conn := dial(t, url)
	readUntil(t, conn, inState(session.StateIntroduction))

	send(t, conn, `not json`)
	if msg := readUntil(t, conn, ofType("error")); msg.Message != "Invalid message format." {
		t.Errorf("unexpected error %q", msg.Message)
	}
	send(t, conn, `{"type":"dance"}`)
	if msg := readUntil(t, conn, ofType("error")); msg.Message != "unknown message type: dance" {
		t.Errorf("unexpected error %q", msg.Message)
	}
	send(t, conn, `{"type":"open_puzzle","pointId":1}`)
	if msg := readUntil(t, conn, ofType("error")); msg.Message != "Puzzles open only while playing." {
		t.Errorf("unexpected error %q", msg.Message)
	}
}

func TestOnboardingGreetsFirstConnectionOnly(t *testing.T) {
	url, _ := newTestServer(t, config.Defaults())

	first := dial(t, url)
	if msg := next(t, first); msg.Type != "onboarding" {
		t.Errorf("expected onboarding first, got %q", msg.Type)
	}
	second := dial(t, url)
	if msg := next(t, second); msg.Type == "onboarding" {
		t.Error("expected the greeting only once per process")
	}
}

func TestInboundRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxInboundPerSecond = 1
	url, _ := newTestServer(t, cfg)
	conn := dial(t, url)
	readUntil(t, conn, inState(session.StateIntroduction))

	for range 3 {
		send(t, conn, `{"type":"set_joystick_active","isJoystickActive":true}`)
	}
	if msg := readUntil(t, conn, ofType("error")); msg.Message != "Too many messages." {
		t.Errorf("unexpected error %q", msg.Message)
	}
}

func TestDecodeEvent(t *testing.T) {
	var env InboundEnvelope
	json.Unmarshal([]byte(`{"type":"update_deliveries","delivery":["a","b"],"direction":"left","position":2}`), &env)
	ev, err := decodeEvent(env)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := ev.(session.UpdateDeliveries)
	if !ok {
		t.Fatalf("expected UpdateDeliveries, got %T", ev)
	}
	if len(d.Delivery) != 2 || d.Direction != "left" || d.Position != 2 {
		t.Errorf("unexpected event %+v", d)
	}

	json.Unmarshal([]byte(`{"type":"gain_points"}`), &env)
	ev, _ = decodeEvent(env)
	if gp := ev.(session.GainPoints); gp.Points != nil {
		t.Errorf("expected nil points when omitted, got %d", *gp.Points)
	}
}
