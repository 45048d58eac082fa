package ws

import (
	"encoding/json"
	"fmt"

	"portal-minigame-server/session"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// --- Client-to-Server message payloads ---

type SetJoystickActiveMsg struct {
	IsJoystickActive bool `json:"isJoystickActive"`
}

type PurchasedRestockMsg struct {
	SFL int `json:"sfl"`
}

// GainPointsMsg adds Points, or 1 when points is omitted.
type GainPointsMsg struct {
	Points *int `json:"points"`
}

type SetValidationsMsg struct {
	Validation string `json:"validation"`
}

type UsePowerMsg struct {
	Power string `json:"power"`
}

type SetPowerMsg struct {
	HasPower bool `json:"hasPower"`
}

type CollectGiftMsg struct {
	Gift string `json:"gift"`
}

type StreakMsg struct {
	Streak int `json:"streak"`
}

type UpdateDeliveriesMsg struct {
	Delivery  []string `json:"delivery"`
	Direction string   `json:"direction"`
	Position  int      `json:"position"`
}

type UpdateEventMsg struct {
	Event string `json:"event"`
}

// PuzzlePointMsg is used by open_puzzle, puzzle_solved and retry_puzzle.
type PuzzlePointMsg struct {
	PointID int `json:"pointId"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client message is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SessionStateMsg carries the latest snapshot after every change.
type SessionStateMsg struct {
	Type    string           `json:"type"`
	Session session.Snapshot `json:"session"`
}

// SignalMsg forwards a machine signal other than a plain state or context change.
type SignalMsg struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
	Error  string `json:"error,omitempty"`
}

// PuzzleOpenedMsg carries the puzzle for a trigger point; Puzzle has a "kind" field.
type PuzzleOpenedMsg struct {
	Type   string          `json:"type"`
	Puzzle json.RawMessage `json:"puzzle"`
}

type PuzzleClosedMsg struct {
	Type    string `json:"type"`
	PointID int    `json:"pointId"`
	Solved  bool   `json:"solved"`
}

// OnboardingMsg asks the client to show the puzzle-hub greeting.
type OnboardingMsg struct {
	Type string `json:"type"`
}

// bare maps payloadless message types to their events.
var bare = map[string]session.Event{
	"start":               session.Start{},
	"retry":               session.Retry{},
	"continue":            session.Continue{},
	"continue_training":   session.ContinueTraining{},
	"cancel_purchase":     session.CancelPurchase{},
	"purchased_unlimited": session.PurchasedUnlimited{},
	"lose_life":           session.LoseLife{},
	"use_reset":           session.UseReset{},
	"end_game_early":      session.EndGameEarly{},
	"game_over":           session.GameOver{},
	"remove_last_gift":    session.RemoveLastGift{},
	"clear_inventory":     session.ClearInventory{},
}

// decodeEvent converts a machine-bound message into its typed event.
func decodeEvent(env InboundEnvelope) (session.Event, error) {
	if ev, ok := bare[env.Type]; ok {
		return ev, nil
	}
	var ev session.Event
	var err error
	switch env.Type {
	case "set_joystick_active":
		var m SetJoystickActiveMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.SetJoystickActive{Active: m.IsJoystickActive}
	case "purchased_restock":
		var m PurchasedRestockMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.PurchasedRestock{SFL: m.SFL}
	case "gain_points":
		var m GainPointsMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.GainPoints{Points: m.Points}
	case "set_validations":
		var m SetValidationsMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.SetValidations{Validation: m.Validation}
	case "use_power":
		var m UsePowerMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.UsePower{Power: m.Power}
	case "set_power":
		var m SetPowerMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.SetPower{HasPower: m.HasPower}
	case "collect_gift":
		var m CollectGiftMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.CollectGift{Gift: m.Gift}
	case "streak":
		var m StreakMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.Streak{Streak: m.Streak}
	case "update_deliveries":
		var m UpdateDeliveriesMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.UpdateDeliveries{Delivery: m.Delivery, Direction: m.Direction, Position: m.Position}
	case "update_event":
		var m UpdateEventMsg
		err = json.Unmarshal(env.Raw, &m)
		ev = session.UpdateEvent{Event: m.Event}
	default:
		return nil, fmt.Errorf("unknown message type: %s", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s message", env.Type)
	}
	return ev, nil
}
