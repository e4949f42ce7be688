package pipeline

import (
	"time"

	"trend-signals/internal/aggregate"
	"trend-signals/internal/dsp"
	"trend-signals/internal/fusion"
	"trend-signals/internal/indicator"
	"trend-signals/internal/scanner"
)

// Config bundles the configuration of every layer.
type Config struct {
	// Indicator.Periods are the display periods. Hierarchy periods are
	// merged in by New.
	Indicator indicator.Config
	Filter    dsp.Config
	Aggregate aggregate.Config
	Fusion    fusion.Config
	Scanner   scanner.Config

	// IdleTimeout evicts a symbol that has seen no event for this long.
	IdleTimeout time.Duration
}

// DefaultConfig returns the configuration used by the hosted service.
func DefaultConfig() Config {
	return Config{
		Indicator:   indicator.DefaultConfig(),
		Filter:      dsp.DefaultConfig(),
		Aggregate:   aggregate.DefaultConfig(),
		Fusion:      fusion.DefaultConfig(),
		Scanner:     scanner.DefaultConfig(),
		IdleTimeout: 2 * time.Hour,
	}
}
