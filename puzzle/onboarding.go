package puzzle

import "sync"

// Onboarding remembers whether the puzzle greeting was shown. It starts
// unshown; one value is shared by everything in a process.
type Onboarding struct {
	mu    sync.Mutex
	shown bool
}

// ShouldGreet reports true exactly once, then false until Reset.
func (o *Onboarding) ShouldGreet() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shown {
		return false
	}
	o.shown = true
	return true
}

// Reset forgets that the greeting was shown.
func (o *Onboarding) Reset() {
	o.mu.Lock()
	o.shown = false
	o.mu.Unlock()
}
