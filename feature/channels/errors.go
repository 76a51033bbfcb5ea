package channels

import "errors"

var (
	// ErrIntegrationNotFound is returned when the integration does not exist.
	ErrIntegrationNotFound = errors.New("channel integration not found")
	// ErrIntegrationInactive is returned when an operation requires an active
	// integration.
	ErrIntegrationInactive = errors.New("channel integration is not active")
	// ErrListingNotFound is returned when the listing does not exist.
	ErrListingNotFound = errors.New("channel listing not found")
	// ErrJobNotFound is returned when the sync job does not exist.
	ErrJobNotFound = errors.New("sync job not found")
	// ErrAuthExpired is returned when credentials are invalid or expired and
	// cannot be refreshed. Retrying without re-authorization is pointless.
	ErrAuthExpired = errors.New("channel credentials expired")
	// ErrRateLimited is returned when the channel signaled backoff (HTTP 429).
	ErrRateLimited = errors.New("channel rate limited")
	// ErrChannelFailure is returned for any other non-2xx channel response.
	ErrChannelFailure = errors.New("channel request failed")
	// ErrUnresolvedLine marks an order line item whose SKU matched no listing
	// and no lot. It is logged and skipped, never retried: guessing the wrong
	// lot would corrupt the ledger irreversibly.
	ErrUnresolvedLine = errors.New("order line item could not be resolved to a lot")
	// ErrUnknownProvider is returned when no factory is registered for an
	// integration's provider name.
	ErrUnknownProvider = errors.New("unknown channel provider")
)
