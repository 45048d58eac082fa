package session

// SignalKind enumerates the notifications a machine emits to observers.
type SignalKind int

const (
	SignalStateChanged SignalKind = iota
	SignalContextChanged
	SignalPlayerHurt     // a life was lost; the scene plays its hurt animation
	SignalRetried        // the run was reset by RETRY
	SignalScoreSubmitted // lastScore was recorded through the gateway
	SignalPurchaseFailed // the purchase was rejected; still in noAttempts
)

// String returns the protocol string for a SignalKind.
func (k SignalKind) String() string {
	switch k {
	case SignalStateChanged:
		return "state_changed"
	case SignalContextChanged:
		return "context_changed"
	case SignalPlayerHurt:
		return "player_hurt"
	case SignalRetried:
		return "retried"
	case SignalScoreSubmitted:
		return "score_submitted"
	case SignalPurchaseFailed:
		return "purchase_failed"
	default:
		return "unknown"
	}
}

// Signal is one notification. Err is set for SignalPurchaseFailed.
type Signal struct {
	Kind SignalKind
	Err  error
}

// Observer receives signals on the machine goroutine, in order.
// Implementations must not block and must not call Dispatch.
type Observer interface {
	Notify(sig Signal, snap Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(sig Signal, snap Snapshot)

func (f ObserverFunc) Notify(sig Signal, snap Snapshot) { f(sig, snap) }
