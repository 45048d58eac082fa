package power

import (
	"fmt"

	"portal-minigame-server/session"
)

// LifePower restores lives lost during the run.
type LifePower struct {
	Amount int
}

func (p *LifePower) ID() string   { return "life" }
func (p *LifePower) Name() string { return "Warm cocoa" }
func (p *LifePower) Description() string {
	return fmt.Sprintf("Restores %d life.", max(p.Amount, 1))
}

func (p *LifePower) Apply(c *session.Context) {
	c.Lives += max(p.Amount, 1)
}
