package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
discord:
  token: file-token
youtube:
  api_key: file-key
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, 15, cfg.YouTube.TimeoutSec)
	assert.Equal(t, 3, cfg.YouTube.MaxRetries)
	assert.Equal(t, 600, cfg.Playback.IdleTimeoutSec)
	assert.Equal(t, 10*time.Minute, cfg.Playback.IdleTimeout())
	assert.Equal(t, 3, cfg.Playback.VoteDivisor)
	assert.Equal(t, 3, cfg.Playback.SummaryTitles)
	assert.Equal(t, 1500, cfg.Playback.QueueViewBudget)
	assert.Equal(t, 96, cfg.Audio.Bitrate)
	assert.Equal(t, "audio", cfg.Audio.Application)
	assert.Equal(t, "Nothing is playing", cfg.Messages.NotPlaying)
}

func TestParse_FileValuesKept(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
playback:
  idle_timeout_sec: 30
  vote_divisor: 2
messages:
  not_playing: "Silence"
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_minutes: 15
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Playback.IdleTimeout())
	assert.Equal(t, 2, cfg.Playback.VoteDivisor)
	assert.Equal(t, "Silence", cfg.GetMessage("not_playing"))
	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("request_rate_filter"))
	assert.Equal(t, 15, cfg.Filters["duration_limit_filter"].Settings["max_minutes"])
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("YOUTUBE_API_KEY", "env-key")
	t.Setenv("YOUTUBE_PROXY", "socks5://127.0.0.1:1080")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, "env-key", cfg.YouTube.APIKey)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.YouTube.Proxy)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{name: "valid", yaml: minimalYAML, wantErr: false},
		{name: "missing token", yaml: "youtube:\n  api_key: k\n", wantErr: true},
		{name: "missing api key", yaml: "discord:\n  token: t\n", wantErr: true},
		{name: "bad frame duration", yaml: minimalYAML + "audio:\n  frame_duration: 25\n", wantErr: true},
		{name: "bad application", yaml: minimalYAML + "audio:\n  application: music\n", wantErr: true},
		{name: "budget too small", yaml: minimalYAML + "playback:\n  queue_view_budget: 10\n", wantErr: true},
		{name: "bad proxy", yaml: "discord:\n  token: t\nyoutube:\n  api_key: k\n  proxy: not a url\n", wantErr: true},
		{name: "malformed yaml", yaml: "discord: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deejay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Discord.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, cfg.Messages.DefaultError, cfg.GetMessage("unknown_code"))
	assert.Equal(t, cfg.Messages.RateLimited, cfg.GetMessage("rate_limited"))
	assert.Equal(t, cfg.Messages.QueueShareExceeded, cfg.GetMessage("queue_share_exceeded"))
}
