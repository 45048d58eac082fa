package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"portal-minigame-server/config"
	"portal-minigame-server/puzzle"
	"portal-minigame-server/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients. Each client owns one session machine.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Config     *config.Config
	Gateway    session.Gateway
	Powers     session.PowerProvider
	Onboarding *puzzle.Onboarding

	// MachineOptions are appended to every machine the hub creates.
	MachineOptions []session.Option

	done chan struct{}
	log  *slog.Logger
}

// NewHub creates a new Hub. powers and onboarding may be nil.
func NewHub(cfg *config.Config, gw session.Gateway, powers session.PowerProvider, onboarding *puzzle.Onboarding) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Config:     cfg,
		Gateway:    gw,
		Powers:     powers,
		Onboarding: onboarding,
		done:       make(chan struct{}),
		log:        slog.Default().With("tag", "ws"),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled, every client's machine is stopped and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("shutdown signal received, stopping", "clients", len(h.Clients))
			for client := range h.Clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.Clients[client] = true
			h.log.Info("client connected", "session", client.Machine.ID(), "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				h.drop(client)
				h.log.Info("client disconnected", "session", client.Machine.ID(), "clients", len(h.Clients))
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.Clients, client)
	client.unsubscribe()
	client.cancel()
	close(client.Send)
}

// machineOptions returns the options for a new connection's machine.
func (h *Hub) machineOptions() []session.Option {
	opts := []session.Option{session.WithLogger(slog.Default())}
	if h.Config.Prize.OncePerDay {
		opts = append(opts, session.WithCompletedGuard(
			session.PrizeClaimedGuard(h.Config.PortalName, h.Config.GameDuration())))
	}
	return append(opts, h.MachineOptions...)
}

func (h *Hub) limiter() *rate.Limiter {
	n := h.Config.MaxInboundPerSecond
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(n), n)
}

// ServeWS upgrades the request and starts a session for the token in the
// "jwt" query parameter. A missing token is left for the machine to judge.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("jwt")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	machine := session.NewMachine(h.Config, token, h.Gateway, h.Powers, h.machineOptions()...)
	client := &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Machine: machine,
		Board:   puzzle.NewBoard(puzzle.DefaultPoints()),
		limiter: h.limiter(),
		ctx:     ctx,
		cancel:  cancel,
		log:     h.log.With("session", machine.ID()),
	}
	client.unsubscribe = machine.Subscribe(client)

	if h.Onboarding != nil && h.Onboarding.ShouldGreet() {
		client.sendJSON(OnboardingMsg{Type: "onboarding"})
	}

	select {
	case h.Register <- client:
	case <-h.done:
		client.unsubscribe()
		cancel()
		conn.Close()
		return
	}

	go machine.Run(ctx)
	go client.WritePump()
	go client.ReadPump()
}
