package channels

// Config holds configuration for channel integrations and outbound sync.
type Config struct {
	// Environment selects the channel API environment (sandbox or production).
	Environment string `mapstructure:"environment" default:"sandbox"`
	// MaxRetries is the retry ceiling; a job failing past it becomes dead.
	MaxRetries int `mapstructure:"max_retries" default:"5"`
	// BackoffBaseSeconds is the base of the exponential retry delay
	// (delay = base * 2^attempt).
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds" default:"2"`
	// PollIntervalMinutes is how often active integrations are polled for orders.
	PollIntervalMinutes int `mapstructure:"poll_interval_minutes" default:"5"`
	// PollLookbackHours bounds the first poll window when no cursor exists.
	PollLookbackHours int `mapstructure:"poll_lookback_hours" default:"1"`
	// ReconcileIntervalHours is how often the reconciliation sweep runs.
	ReconcileIntervalHours int `mapstructure:"reconcile_interval_hours" default:"1"`
}
