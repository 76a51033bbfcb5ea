package inventory

// Oversell policies applied when a sale would drive a lot's quantity below zero.
const (
	// PolicyClamp reduces the applied delta so the quantity lands on zero.
	// The sale already happened in reality, so the event is recorded rather
	// than rejected.
	PolicyClamp = "clamp"
	// PolicyReject fails the mutation outright.
	PolicyReject = "reject"
	// PolicyAllowNegative applies the full delta and lets the quantity go
	// negative.
	PolicyAllowNegative = "allow_negative"
)

// Config holds configuration for the inventory ledger.
type Config struct {
	// OversellPolicy is one of clamp, reject, allow_negative.
	OversellPolicy string `mapstructure:"oversell_policy" default:"clamp"`
}
