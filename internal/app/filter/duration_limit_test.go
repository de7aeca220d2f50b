package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akira-bot/deejay/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		minSeconds    int
		maxMinutes    float64
		trackDuration time.Duration
		shouldReject  bool
		description   string
	}{
		{
			name:          "Within limits",
			minSeconds:    30,
			maxMinutes:    5.0,
			trackDuration: 3 * time.Minute,
			shouldReject:  false,
			description:   "Should accept track within min/max limits",
		},
		{
			name:          "Too short",
			minSeconds:    30,
			maxMinutes:    0,
			trackDuration: 20 * time.Second,
			shouldReject:  true,
			description:   "Should reject track shorter than min",
		},
		{
			name:          "Too long",
			minSeconds:    0,
			maxMinutes:    5.0,
			trackDuration: 6 * time.Minute,
			shouldReject:  true,
			description:   "Should reject track longer than max",
		},
		{
			name:          "Exact max",
			minSeconds:    0,
			maxMinutes:    5.0,
			trackDuration: 5 * time.Minute,
			shouldReject:  false,
			description:   "Should accept track exactly at max",
		},
		{
			name:          "No upper limit",
			minSeconds:    0,
			maxMinutes:    0,
			trackDuration: 10 * time.Hour,
			shouldReject:  false,
			description:   "Should accept any length when max is 0",
		},
		{
			name:          "Unknown duration",
			minSeconds:    0,
			maxMinutes:    5.0,
			trackDuration: 0,
			shouldReject:  false,
			description:   "Should accept live streams reporting no duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			// Manually configuring for test by setting config directly
			f.config = &DurationLimitConfig{
				MinSeconds: tt.minSeconds,
				MaxMinutes: tt.maxMinutes,
			}

			result := f.Check(context.Background(), Request{}, track.Track{Duration: tt.trackDuration})

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestDurationLimitFilter_Unconfigured(t *testing.T) {
	f := NewDurationLimitFilter()
	result := f.Check(context.Background(), Request{}, track.Track{Duration: 100 * time.Hour})
	assert.True(t, result.Accepted)
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		wantErr  bool
	}{
		{
			name: "Valid config",
			settings: map[string]interface{}{
				"min_seconds": 10,
				"max_minutes": 5.0,
			},
			wantErr: false,
		},
		{
			name: "Valid strings",
			settings: map[string]interface{}{
				"min_seconds": "10",
				"max_minutes": "5",
			},
			wantErr: false,
		},
		{
			name: "Invalid min > max",
			settings: map[string]interface{}{
				"min_seconds": 600,
				"max_minutes": 5.0,
			},
			wantErr: true,
		},
		{
			name: "Invalid negative min",
			settings: map[string]interface{}{
				"min_seconds": -1,
			},
			wantErr: true,
		},
		{
			name: "Invalid negative max",
			settings: map[string]interface{}{
				"max_minutes": -1.0,
			},
			wantErr: true,
		},
		{
			name:     "Empty settings (uses defaults)",
			settings: map[string]interface{}{},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			err := f.ValidateConfig(tt.settings)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationLimitFilter_Defaults(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.NoError(t, f.ValidateConfig(map[string]any{}))
	assert.Equal(t, 60.0, f.config.MaxMinutes)
	assert.Equal(t, 0, f.config.MinSeconds)
}

func TestDurationLimitFilter_ExplicitZeroMaxIsUnlimited(t *testing.T) {
	f := NewDurationLimitFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{"max_minutes": 0}))
	assert.Equal(t, 0.0, f.config.MaxMinutes)

	result := f.Check(context.Background(), Request{}, track.Track{Duration: 3 * time.Hour})
	assert.True(t, result.Accepted)
}
