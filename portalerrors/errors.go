package portalerrors

import "errors"

// Sentinel errors shared by the session, gateway, storage and transport packages.
// Kept in their own package so none of those packages import each other for errors.
var (
	ErrMissingToken        = errors.New("token is required")
	ErrUnauthorised        = errors.New("unauthorised")
	ErrInvalidFarmID       = errors.New("token has no valid farm id")
	ErrInsufficientBalance = errors.New("insufficient SFL")
	ErrUnknownRestock      = errors.New("no restock offered at this price")
	ErrUnlimitedDisabled   = errors.New("unlimited attempts are not on sale")
	ErrMachineStopped      = errors.New("session machine stopped")
	ErrWriteQueueFull      = errors.New("gateway write queue full")
	ErrNotFound            = errors.New("not found")
)
