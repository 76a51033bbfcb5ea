package inventory

import "errors"

var (
	// ErrLotNotFound is returned when the target lot does not exist or is not
	// visible in the caller's shop scope.
	ErrLotNotFound = errors.New("inventory lot not found")
	// ErrInvalidDelta is returned for a zero or malformed quantity delta.
	ErrInvalidDelta = errors.New("invalid quantity delta")
	// ErrInvalidKind is returned for an unknown event type.
	ErrInvalidKind = errors.New("invalid event type")
	// ErrInsufficientQuantity is returned when a mutation would drive a
	// quantity negative and the policy (or the operation) forbids that.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrInvalidStatus is returned when a lot is not in the status an
	// operation requires.
	ErrInvalidStatus = errors.New("lot is not in the required status")
)
