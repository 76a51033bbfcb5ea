package reconciliation

import "errors"

var (
	// ErrMismatchNotFound indicates the mismatch does not exist or belongs to
	// another shop.
	ErrMismatchNotFound = errors.New("mismatch not found")
	// ErrAlreadyResolved indicates the mismatch was resolved earlier.
	ErrAlreadyResolved = errors.New("mismatch already resolved")
	// ErrInvalidResolution indicates an unknown resolution action.
	ErrInvalidResolution = errors.New("invalid resolution action")
	// ErrMissingListing indicates push_internal needs a bound listing.
	ErrMissingListing = errors.New("mismatch has no channel listing to push to")
	// ErrMissingLot indicates pull_channel needs a resolved internal lot.
	ErrMissingLot = errors.New("mismatch has no internal lot to adjust")
)
