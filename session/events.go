package session

// EventName is the wire name of an event.
type EventName string

const (
	EventSetJoystickActive  EventName = "SET_JOYSTICK_ACTIVE"
	EventStart              EventName = "START"
	EventRetry              EventName = "RETRY"
	EventContinue           EventName = "CONTINUE"
	EventContinueTraining   EventName = "CONTINUE_TRAINING"
	EventCancelPurchase     EventName = "CANCEL_PURCHASE"
	EventPurchasedRestock   EventName = "PURCHASED_RESTOCK"
	EventPurchasedUnlimited EventName = "PURCHASED_UNLIMITED"
	EventGainPoints         EventName = "GAIN_POINTS"
	EventLoseLife           EventName = "LOSE_LIFE"
	EventSetValidations     EventName = "SET_VALIDATIONS"
	EventUseReset           EventName = "USE_RESET"
	EventUsePower           EventName = "USE_POWER"
	EventSetPower           EventName = "SET_POWER"
	EventEndGameEarly       EventName = "END_GAME_EARLY"
	EventGameOver           EventName = "GAME_OVER"

	EventCollectGift      EventName = "COLLECT_GIFT"
	EventRemoveLastGift   EventName = "REMOVE_LAST_GIFT_INVENTORY"
	EventClearInventory   EventName = "CLEAR_INVENTORY"
	EventStreak           EventName = "STREAK"
	EventUpdateDeliveries EventName = "UPDATE_DELIVERIES"
	EventUpdateEvent      EventName = "UPDATE_EVENT"
)

// Event is the closed set of inputs the machine accepts.
// Only types declared in this package implement it.
type Event interface {
	Name() EventName
	sessionEvent()
}

type (
	SetJoystickActive struct{ Active bool }
	Start             struct{}
	Retry             struct{}
	Continue          struct{}
	ContinueTraining  struct{}
	CancelPurchase    struct{}
	PurchasedRestock  struct{ SFL int }
	PurchasedUnlimited struct{}
	// GainPoints adds Points to the score; nil means 1. Non-positive amounts are ignored.
	GainPoints     struct{ Points *int }
	LoseLife       struct{}
	SetValidations struct{ Validation string }
	UseReset       struct{}
	UsePower       struct{ Power string }
	SetPower       struct{ HasPower bool }
	EndGameEarly   struct{}
	GameOver       struct{}

	CollectGift      struct{ Gift string }
	RemoveLastGift   struct{}
	ClearInventory   struct{}
	Streak           struct{ Streak int }
	UpdateDeliveries struct {
		Delivery  []string
		Direction string
		Position  int
	}
	UpdateEvent struct{ Event string }
)

// Points is shorthand for a GainPoints with an explicit amount.
func Points(n int) GainPoints { return GainPoints{Points: &n} }

func (SetJoystickActive) Name() EventName  { return EventSetJoystickActive }
func (Start) Name() EventName              { return EventStart }
func (Retry) Name() EventName              { return EventRetry }
func (Continue) Name() EventName           { return EventContinue }
func (ContinueTraining) Name() EventName   { return EventContinueTraining }
func (CancelPurchase) Name() EventName     { return EventCancelPurchase }
func (PurchasedRestock) Name() EventName   { return EventPurchasedRestock }
func (PurchasedUnlimited) Name() EventName { return EventPurchasedUnlimited }
func (GainPoints) Name() EventName         { return EventGainPoints }
func (LoseLife) Name() EventName           { return EventLoseLife }
func (SetValidations) Name() EventName     { return EventSetValidations }
func (UseReset) Name() EventName           { return EventUseReset }
func (UsePower) Name() EventName           { return EventUsePower }
func (SetPower) Name() EventName           { return EventSetPower }
func (EndGameEarly) Name() EventName       { return EventEndGameEarly }
func (GameOver) Name() EventName           { return EventGameOver }
func (CollectGift) Name() EventName        { return EventCollectGift }
func (RemoveLastGift) Name() EventName     { return EventRemoveLastGift }
func (ClearInventory) Name() EventName     { return EventClearInventory }
func (Streak) Name() EventName             { return EventStreak }
func (UpdateDeliveries) Name() EventName   { return EventUpdateDeliveries }
func (UpdateEvent) Name() EventName        { return EventUpdateEvent }

func (SetJoystickActive) sessionEvent()  {}
func (Start) sessionEvent()              {}
func (Retry) sessionEvent()              {}
func (Continue) sessionEvent()           {}
func (ContinueTraining) sessionEvent()   {}
func (CancelPurchase) sessionEvent()     {}
func (PurchasedRestock) sessionEvent()   {}
func (PurchasedUnlimited) sessionEvent() {}
func (GainPoints) sessionEvent()         {}
func (LoseLife) sessionEvent()           {}
func (SetValidations) sessionEvent()     {}
func (UseReset) sessionEvent()           {}
func (UsePower) sessionEvent()           {}
func (SetPower) sessionEvent()           {}
func (EndGameEarly) sessionEvent()       {}
func (GameOver) sessionEvent()           {}
func (CollectGift) sessionEvent()        {}
func (RemoveLastGift) sessionEvent()     {}
func (ClearInventory) sessionEvent()     {}
func (Streak) sessionEvent()             {}
func (UpdateDeliveries) sessionEvent()   {}
func (UpdateEvent) sessionEvent()        {}

// loadDone carries the result of the loading fetch back into the event loop.
type loadDone struct {
	epoch  uint64
	result LoadResult
	err    error
}

func (loadDone) Name() EventName { return "done.loading" }
func (loadDone) sessionEvent()   {}
