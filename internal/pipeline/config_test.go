package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirenlabs/opspulse/internal/common"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "zero window size",
			mutate:  func(c *Config) { c.WindowSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative window size",
			mutate:  func(c *Config) { c.WindowSize = -7 },
			wantErr: true,
		},
		{
			name:    "zero minimum window",
			mutate:  func(c *Config) { c.MinWindow = 0 },
			wantErr: true,
		},
		{
			name:    "minimum window exceeds window size",
			mutate:  func(c *Config) { c.MinWindow = 10 },
			wantErr: true,
		},
		{
			name:   "minimum window equals window size",
			mutate: func(c *Config) { c.MinWindow = 7 },
		},
		{
			name:    "zero watch threshold",
			mutate:  func(c *Config) { c.WatchThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "watch threshold at anomaly threshold",
			mutate:  func(c *Config) { c.WatchThreshold = 3.0 },
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus_Mons" },
			wantErr: true,
		},
		{
			name:   "named timezone",
			mutate: func(c *Config) { c.Timezone = "America/Sao_Paulo" },
		},
		{
			name:    "negative run timeout",
			mutate:  func(c *Config) { c.RunTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:   "zero run timeout means no deadline",
			mutate: func(c *Config) { c.RunTimeout = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "America/Sao_Paulo"
	require.NoError(t, cfg.Validate())

	loc := cfg.Location()
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}
