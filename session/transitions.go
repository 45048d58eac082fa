package session

import (
	"errors"
	"fmt"

	"portal-minigame-server/attempts"
	"portal-minigame-server/minigame"
	"portal-minigame-server/portalerrors"
)

// transition enters to and follows eventless guards until a stable state.
func (m *Machine) transition(to State) {
	for {
		m.state = to
		next, ok := m.always()
		if !ok {
			break
		}
		to = next
	}
	if m.state == StateLoading {
		m.startLoad()
	}
}

// always evaluates the guards of transient states.
func (m *Machine) always() (State, bool) {
	switch m.state {
	case StateInitialising:
		if m.cfg.RequireToken && m.ctx.Token == "" {
			return StateUnauthorised, true
		}
		return StateLoading, true

	case StateStarting:
		if !m.ctx.IsTraining && m.remaining() <= 0 {
			return StateNoAttempts, true
		}
		return StateReady, true

	case StateGameOver:
		switch {
		case m.ctx.IsTraining:
			return StateIntroduction, true
		case m.completed(m.ctx.clone()):
			return StateComplete, true
		case m.wonPrize():
			return StateWinner, true
		default:
			return StateLoser, true
		}
	}
	return "", false
}

// handle applies one event. It reports false when the current state does not accept it.
func (m *Machine) handle(ev Event) bool {
	if e, ok := ev.(SetJoystickActive); ok {
		m.ctx.JoystickActive = e.Active
		return true
	}

	switch m.state {
	case StateLoading:
		if e, ok := ev.(loadDone); ok {
			return m.handleLoaded(e)
		}

	case StateIntroduction:
		switch ev.(type) {
		case Continue:
			m.ctx.IsTraining = false
			m.transition(StateStarting)
			return true
		case ContinueTraining:
			m.ctx.IsTraining = true
			m.transition(StateStarting)
			return true
		}

	case StateNoAttempts:
		switch e := ev.(type) {
		case CancelPurchase:
			m.transition(StateIntroduction)
			return true
		case PurchasedRestock:
			m.purchase(e.SFL)
			return true
		case PurchasedUnlimited:
			if !m.rules.UnlimitedEnabled() {
				m.log.Warn("unlimited purchase rejected", "err", portalerrors.ErrUnlimitedDisabled)
				m.emitErr(SignalPurchaseFailed, portalerrors.ErrUnlimitedDisabled)
				return true
			}
			m.purchase(m.rules.UnlimitedSFL)
			return true
		}

	case StateReady:
		if _, ok := ev.(Start); ok {
			m.start()
			return true
		}

	case StatePlaying:
		return m.handlePlaying(ev)

	case StateWinner, StateLoser, StateComplete:
		if _, ok := ev.(Retry); ok {
			m.resetRun()
			m.emit(SignalRetried)
			m.transition(StateStarting)
			return true
		}

	case StateError:
		if _, ok := ev.(Retry); ok {
			m.transition(StateInitialising)
			return true
		}
	}
	return false
}

func (m *Machine) handleLoaded(e loadDone) bool {
	if e.epoch != m.epoch {
		m.log.Debug("stale load result dropped", "epoch", e.epoch, "current", m.epoch)
		return false
	}
	if e.err != nil {
		if errors.Is(e.err, portalerrors.ErrUnauthorised) || errors.Is(e.err, portalerrors.ErrMissingToken) {
			m.log.Info("session unauthorised", "err", e.err)
			m.transition(StateUnauthorised)
			return true
		}
		m.log.Warn("failed to load game state", "err", e.err)
		m.transition(StateError)
		return true
	}
	m.ctx.GameState = e.result.State
	m.ctx.FarmID = e.result.FarmID
	m.ctx.AttemptsLeft = e.result.AttemptsLeft
	m.log.Info("game state loaded", "farm", e.result.FarmID, "attemptsLeft", e.result.AttemptsLeft)
	m.transition(StateIntroduction)
	return true
}

func (m *Machine) handlePlaying(ev Event) bool {
	switch e := ev.(type) {
	case GainPoints:
		points := 1
		if e.Points != nil {
			points = *e.Points
		}
		if points <= 0 {
			return false
		}
		m.ctx.Score += points

	case LoseLife:
		// The renderer decides when zero lives ends the run.
		m.ctx.Lives = max(m.ctx.Lives-1, 0)
		m.emit(SignalPlayerHurt)

	case SetValidations:
		if m.ctx.Validations == nil {
			m.ctx.Validations = map[string]bool{}
		}
		m.ctx.Validations[e.Validation] = true

	case UseReset:
		m.ctx.ResetAttempts--

	case UsePower:
		if m.powers == nil {
			return false
		}
		def, ok := m.powers.GetPower(e.Power)
		if !ok {
			m.log.Debug("unknown power", "power", e.Power)
			return false
		}
		def.Apply(&m.ctx)

	case SetPower:
		m.ctx.HasPower = e.HasPower

	case EndGameEarly:
		m.ctx.EndAt = m.now().UnixMilli()
		m.submit()
		m.transition(StateIntroduction)

	case GameOver:
		m.submit()
		m.transition(StateGameOver)

	case CollectGift:
		if len(m.ctx.Gifts) >= m.cfg.MaxPlayerGifts {
			return false
		}
		m.ctx.Gifts = append(m.ctx.Gifts, e.Gift)

	case RemoveLastGift:
		if len(m.ctx.Gifts) == 0 {
			return false
		}
		m.ctx.Gifts = m.ctx.Gifts[:len(m.ctx.Gifts)-1]

	case ClearInventory:
		m.ctx.Gifts = nil

	case Streak:
		m.applyStreak(e.Streak)

	case UpdateDeliveries:
		if m.ctx.Deliveries == nil {
			m.ctx.Deliveries = map[string]Delivery{}
		}
		key := deliveryKey(e.Direction, e.Position)
		if len(e.Delivery) == 0 {
			delete(m.ctx.Deliveries, key)
		} else {
			m.ctx.Deliveries[key] = Delivery{
				Gifts:     append([]string(nil), e.Delivery...),
				Direction: e.Direction,
				Position:  e.Position,
			}
		}

	case UpdateEvent:
		m.ctx.ActiveEvent = e.Event

	default:
		return false
	}
	return true
}

// applyStreak grows a positive streak and adds it to the score.
// A negative step breaks the streak without touching the score.
func (m *Machine) applyStreak(step int) {
	switch {
	case step > 0:
		if m.ctx.Streak < 0 {
			m.ctx.Streak = 0
		}
		m.ctx.Streak += step
		m.ctx.Score += m.ctx.Streak
	case step < 0:
		m.ctx.Streak = step
	}
}

func (m *Machine) start() {
	now := m.now()
	m.resetRound()
	m.ctx.EndAt = now.Add(m.cfg.GameDuration()).UnixMilli()
	if !m.ctx.IsTraining {
		m.ctx.GameState = m.gateway.StartAttempt(m.ctx.FarmID, m.ctx.GameState)
		m.ctx.AttemptsLeft = attempts.Consume(m.ctx.AttemptsLeft)
	}
	m.log.Info("session started", "training", m.ctx.IsTraining, "attemptsLeft", m.ctx.AttemptsLeft)
	m.transition(StatePlaying)
}

// submit records the score of a real run. Training runs leave no trace.
func (m *Machine) submit() {
	if m.ctx.IsTraining {
		return
	}
	m.ctx.LastScore = m.ctx.Score
	m.ctx.GameState = m.gateway.SubmitScore(m.ctx.FarmID, m.ctx.GameState, m.ctx.Score)
	m.emit(SignalScoreSubmitted)
	m.log.Info("score submitted", "score", m.ctx.Score)
}

func (m *Machine) purchase(sfl int) {
	next, err := m.gateway.Purchase(m.ctx.FarmID, m.ctx.GameState, sfl, nil)
	if err != nil {
		err = fmt.Errorf("purchase %d SFL: %w", sfl, err)
		m.log.Warn("purchase failed", "err", err)
		m.emitErr(SignalPurchaseFailed, err)
		return
	}
	m.ctx.GameState = next
	m.ctx.AttemptsLeft = m.remaining()
	m.log.Info("attempts purchased", "sfl", sfl, "attemptsLeft", m.ctx.AttemptsLeft)
	m.transition(StateIntroduction)
}

// remaining recomputes today's attempts from the persisted record.
func (m *Machine) remaining() int {
	return attempts.Left(m.ctx.GameState.Game(m.cfg.PortalName), m.ctx.FarmID, m.now(), m.rules)
}

func (m *Machine) wonPrize() bool {
	prize, ok := m.ctx.GameState.Prize(m.cfg.PortalName)
	if !ok || !prize.Live(m.now()) {
		return false
	}
	return m.ctx.Score >= prize.Score
}

// resetRound clears the per-run fields START and RETRY share.
func (m *Machine) resetRound() {
	m.ctx.Score = 0
	m.ctx.Lives = m.cfg.GameLives
	m.ctx.Validations = map[string]bool{}
	m.ctx.ResetAttempts = m.cfg.ResetAttempts
	m.ctx.HasPower = false
	m.ctx.Gifts = nil
	m.ctx.Streak = 0
	m.ctx.Deliveries = map[string]Delivery{}
	m.ctx.ActiveEvent = ""
}

func (m *Machine) resetRun() {
	m.resetRound()
	m.ctx.EndAt = 0
}

func (m *Machine) startLoad() {
	m.epoch++
	epoch := m.epoch
	token := m.ctx.Token
	ctx := m.runCtx
	go func() {
		res, err := m.gateway.Load(ctx, token)
		if res.State == nil && err == nil {
			res.State = minigame.OfflineFarm()
		}
		m.post(loadDone{epoch: epoch, result: res, err: err})
	}()
}
