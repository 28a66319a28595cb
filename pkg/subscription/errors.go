package subscription

import "errors"

var (
	ErrInvalidTier          = errors.New("invalid subscription tier")
	ErrInvalidStatus        = errors.New("invalid subscription status")
	ErrInvalidCatalog       = errors.New("plan entitlement missing from catalog")
	ErrInvalidEntitlement   = errors.New("invalid plan entitlement")
	ErrWrongDirection       = errors.New("plan change direction does not match the requested operation")
	ErrInvalidTransition    = errors.New("subscription status transition not allowed")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionCanceled = errors.New("subscription is cancelled")
	ErrStatusChanged        = errors.New("subscription status changed concurrently")

	// ErrNotProcessed signals that a conditional update matched no rows
	// because another run already handled it. It is not a failure.
	ErrNotProcessed = errors.New("scheduled change already processed")

	ErrFailedToLoadCatalog = errors.New("failed to load plan catalog")
	ErrStoreFailure        = errors.New("subscription store failure")
)
