package relayer

import "time"

// RelayerConfig configures the reconciliation loop.
type RelayerConfig struct {
	// PollInterval schedules ticks. A tick that runs longer than the
	// interval delays the next tick; ticks never overlap.
	PollInterval time.Duration

	// Completion retry backoff, doubled per failed attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultBaseBackoff  = 2 * time.Second
	DefaultMaxBackoff   = 5 * time.Minute
)

func (cfg *RelayerConfig) withDefaults() *RelayerConfig {
	out := *cfg
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.BaseBackoff <= 0 {
		out.BaseBackoff = DefaultBaseBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = DefaultMaxBackoff
	}
	return &out
}
