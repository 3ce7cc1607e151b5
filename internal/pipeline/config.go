// Package pipeline orchestrates the daily run: normalize, aggregate, classify
// against the baseline, commit atomically, then emit to the report sink.
package pipeline

import (
	"fmt"
	"time"

	"github.com/kirenlabs/opspulse/internal/common"
)

// Config holds the engine's tunables. Validate runs before any record
// processing so a bad configuration can never produce partial output.
type Config struct {
	// WindowSize is the rolling baseline capacity in recorded days.
	WindowSize int
	// MinWindow is the minimum window size required for a verdict; smaller
	// windows yield INSUFFICIENT_DATA.
	MinWindow int
	// WatchThreshold and AnomalyThreshold are absolute z-score cutoffs.
	WatchThreshold   float64
	AnomalyThreshold float64
	// Timezone is the IANA name of the fixed reporting timezone.
	Timezone string
	// RunTimeout bounds one daily run end to end. Zero means no deadline.
	RunTimeout time.Duration
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:       7,
		MinWindow:        3,
		WatchThreshold:   1.5,
		AnomalyThreshold: 3.0,
		Timezone:         "UTC",
		RunTimeout:       5 * time.Minute,
	}
}

// Validate checks the configuration, failing fast on anything that would
// make a run meaningless.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", common.ErrInvalidConfig, c.WindowSize)
	}
	if c.MinWindow <= 0 {
		return fmt.Errorf("%w: minimum window must be positive, got %d", common.ErrInvalidConfig, c.MinWindow)
	}
	if c.MinWindow > c.WindowSize {
		return fmt.Errorf("%w: minimum window %d exceeds window size %d", common.ErrInvalidConfig, c.MinWindow, c.WindowSize)
	}
	if c.WatchThreshold <= 0 || c.AnomalyThreshold <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", common.ErrInvalidConfig)
	}
	if c.WatchThreshold >= c.AnomalyThreshold {
		return fmt.Errorf("%w: watch threshold %.2f must be below anomaly threshold %.2f",
			common.ErrInvalidConfig, c.WatchThreshold, c.AnomalyThreshold)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run timeout cannot be negative", common.ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", common.ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// Location returns the reporting timezone. Validate must have passed.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
