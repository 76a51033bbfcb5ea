package queue

// Config holds configuration for the worker pool and job runner.
type Config struct {
	// Workers is the number of concurrent job workers.
	Workers int `mapstructure:"workers" default:"4"`
	// Depth is the buffer size of the task channel feeding the workers.
	Depth int `mapstructure:"depth" default:"64"`
	// ClaimIntervalSeconds is how often the runner claims due jobs from the database.
	ClaimIntervalSeconds int `mapstructure:"claim_interval_seconds" default:"5"`
}
