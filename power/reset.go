package power

import (
	"fmt"

	"portal-minigame-server/session"
)

// ResetPower gives back puzzle resets.
type ResetPower struct {
	Amount int
}

func (p *ResetPower) ID() string   { return "reset" }
func (p *ResetPower) Name() string { return "Second thoughts" }
func (p *ResetPower) Description() string {
	return fmt.Sprintf("Restores %d puzzle reset(s).", p.amount())
}

func (p *ResetPower) Apply(c *session.Context) {
	c.ResetAttempts += p.amount()
}

func (p *ResetPower) amount() int {
	if p.Amount <= 0 {
		return 1
	}
	return p.Amount
}
