package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"portal-minigame-server/portalerrors"
	"portal-minigame-server/puzzle"
	"portal-minigame-server/session"
	"portal-minigame-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between the websocket connection and its session machine.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Machine *session.Machine
	Board   *puzzle.Board

	limiter     *rate.Limiter
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	log         *slog.Logger
}

// ReadPump pumps messages from the websocket connection to the machine.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "err", err)
			}
			break
		}
		if !c.limiter.Allow() {
			c.sendError("Too many messages.")
			continue
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Notify forwards machine signals to the peer. It runs on the machine goroutine.
func (c *Client) Notify(sig session.Signal, snap session.Snapshot) {
	switch sig.Kind {
	case session.SignalStateChanged:
		if snap.State == session.StatePlaying {
			c.Board.Reset()
		}
		c.sendJSON(SessionStateMsg{Type: "session_state", Session: snap})
	case session.SignalContextChanged:
		c.sendJSON(SessionStateMsg{Type: "session_state", Session: snap})
	default:
		msg := SignalMsg{Type: "signal", Signal: sig.Kind.String()}
		if sig.Err != nil {
			msg.Error = sig.Err.Error()
		}
		c.sendJSON(msg)
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case "open_puzzle":
		c.handleOpenPuzzle(envelope.Raw)
	case "puzzle_solved":
		c.handlePuzzleSolved(envelope.Raw)
	case "retry_puzzle":
		c.handleRetryPuzzle(envelope.Raw)
	default:
		ev, err := decodeEvent(envelope)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.Machine.Send(ev)
	}
}

func (c *Client) handleOpenPuzzle(raw json.RawMessage) {
	var msg PuzzlePointMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid open_puzzle message.")
		return
	}
	if !c.Machine.Snapshot().Playing() {
		c.sendError("Puzzles open only while playing.")
		return
	}
	req, err := c.Board.Open(msg.PointID)
	if err != nil {
		switch {
		case errors.Is(err, portalerrors.ErrNotFound):
			c.sendError("Unknown puzzle point.")
		case errors.Is(err, puzzle.ErrAlreadyOpen):
			c.sendError("Puzzle already opened.")
		default:
			c.sendError("Cannot open puzzle.")
		}
		return
	}
	data, err := puzzle.Marshal(req)
	if err != nil {
		c.log.Error("marshaling puzzle", "err", err)
		return
	}
	c.sendJSON(PuzzleOpenedMsg{Type: "puzzle_opened", Puzzle: data})
}

// handlePuzzleSolved scores the puzzle and ends the run once the configured
// number of puzzles is reached.
func (c *Client) handlePuzzleSolved(raw json.RawMessage) {
	var msg PuzzlePointMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid puzzle_solved message.")
		return
	}
	if !c.Board.Solve(msg.PointID) {
		c.sendError("Puzzle is not open.")
		return
	}
	c.sendJSON(PuzzleClosedMsg{Type: "puzzle_closed", PointID: msg.PointID, Solved: true})

	snap, err := c.Machine.Dispatch(c.ctx, session.GainPoints{})
	if err != nil {
		return
	}
	if limit := c.Hub.Config.MaxPuzzles; limit > 0 && snap.Playing() && snap.Context.Score >= limit {
		c.log.Debug("puzzle cap reached", "score", snap.Context.Score)
		c.Machine.Send(session.GameOver{})
	}
}

func (c *Client) handleRetryPuzzle(raw json.RawMessage) {
	var msg PuzzlePointMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid retry_puzzle message.")
		return
	}
	c.Board.Retry(msg.PointID)
	c.sendJSON(PuzzleClosedMsg{Type: "puzzle_closed", PointID: msg.PointID})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshaling message", "err", err)
		return
	}
	if !wsutil.SafeSend(c.Send, data) {
		c.log.Debug("outbound message dropped")
	}
}

func (c *Client) sendError(message string) {
	c.sendJSON(ErrorMsg{Type: "error", Message: message})
}
