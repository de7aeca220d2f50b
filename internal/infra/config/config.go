// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	YouTube  YouTubeConfig           `yaml:"youtube"`
	Playback PlaybackConfig          `yaml:"playback"`
	Audio    AudioConfig             `yaml:"audio"`
	Hooks    HooksConfig             `yaml:"hooks"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
}

// DiscordConfig represents bot account configuration.
type DiscordConfig struct {
	Token  string `yaml:"token" validate:"required"`
	Prefix string `yaml:"prefix" default:"!" validate:"required,max=3"`
	Status string `yaml:"status" default:"!play"`
}

// YouTubeConfig represents track resolution configuration.
type YouTubeConfig struct {
	APIKey     string `yaml:"api_key" validate:"required"`
	Proxy      string `yaml:"proxy" validate:"omitempty,url"` // e.g. socks5://127.0.0.1:1080
	TimeoutSec int    `yaml:"timeout_sec" default:"15" validate:"gte=1,lte=120"`
	MaxRetries int    `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
}

// PlaybackConfig represents queue and vote configuration.
type PlaybackConfig struct {
	IdleTimeoutSec  int `yaml:"idle_timeout_sec" default:"600" validate:"gte=1"`
	VoteDivisor     int `yaml:"vote_divisor" default:"3" validate:"gte=1"`
	SummaryTitles   int `yaml:"summary_titles" default:"3" validate:"gte=1,lte=10"`
	QueueViewBudget int `yaml:"queue_view_budget" default:"1500" validate:"gte=100,lte=4000"`
}

// IdleTimeout returns the idle grace period.
func (p PlaybackConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSec) * time.Second
}

// AudioConfig represents Opus encoder configuration.
type AudioConfig struct {
	Bitrate         int    `yaml:"bitrate" default:"96" validate:"gte=8,lte=512"` // kb/s
	FrameDuration   int    `yaml:"frame_duration" default:"20" validate:"oneof=20 40 60"`
	BufferedFrames  int    `yaml:"buffered_frames" default:"100" validate:"gte=1"`
	Application     string `yaml:"application" default:"audio" validate:"oneof=audio voip lowdelay"`
	ConstantBitrate bool   `yaml:"constant_bitrate"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages. Some contain fmt verbs.
type MessagesConfig struct {
	Queued             string `yaml:"queued" default:"Added to the queue"`
	QueuedMany         string `yaml:"queued_many" default:"Added %d tracks to the queue"`
	NowPlaying         string `yaml:"now_playing" default:"Now playing"`
	Skipped            string `yaml:"skipped" default:"Skipped %s"`
	VotesNeeded        string `yaml:"votes_needed" default:"%d more vote(s) needed to skip"`
	QueueCleared       string `yaml:"queue_cleared" default:"Queue cleared"`
	VolumeCurrent      string `yaml:"volume_current" default:"Volume is %d"`
	VolumeUp           string `yaml:"volume_up" default:"Volume increased by %d"`
	VolumeDown         string `yaml:"volume_down" default:"Volume decreased by %d"`
	VolumeUnchanged    string `yaml:"volume_unchanged" default:"Volume unchanged"`
	Disconnected       string `yaml:"disconnected" default:"Left the voice channel after being idle"`
	DefaultError       string `yaml:"default_error" default:"Something went wrong"`
	NoVoiceChannel     string `yaml:"no_voice_channel" default:"Join a voice channel first"`
	WrongChannel       string `yaml:"wrong_channel" default:"You are not in my voice channel"`
	InvalidQuery       string `yaml:"invalid_query" default:"That link is not a playable video or playlist"`
	NoResultsFound     string `yaml:"no_results_found" default:"No results found"`
	NotPlaying         string `yaml:"not_playing" default:"Nothing is playing"`
	InvalidPosition    string `yaml:"invalid_position" default:"There is no track at that position"`
	VolumeNotInteger   string `yaml:"volume_not_integer" default:"Volume must be a whole number"`
	TooLoud            string `yaml:"too_loud" default:"That is louder than 11"`
	TooLow             string `yaml:"too_low" default:"Volume cannot go below 0"`
	DurationLimit      string `yaml:"duration_limit_exceeded" default:"Track length is outside the allowed range"`
	DuplicateTrack     string `yaml:"duplicate_track" default:"That track is already in the queue"`
	QueueShareExceeded string `yaml:"queue_share_exceeded" default:"You already have too many tracks waiting"`
	RateLimited        string `yaml:"rate_limited" default:"Slow down, try again in a moment"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML data, applying environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.YouTube.APIKey = v
	}
	if v := os.Getenv("YOUTUBE_PROXY"); v != "" {
		c.YouTube.Proxy = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "queued":
		return c.Messages.Queued
	case "queued_many":
		return c.Messages.QueuedMany
	case "now_playing":
		return c.Messages.NowPlaying
	case "skipped":
		return c.Messages.Skipped
	case "votes_needed":
		return c.Messages.VotesNeeded
	case "queue_cleared":
		return c.Messages.QueueCleared
	case "volume_current":
		return c.Messages.VolumeCurrent
	case "volume_up":
		return c.Messages.VolumeUp
	case "volume_down":
		return c.Messages.VolumeDown
	case "volume_unchanged":
		return c.Messages.VolumeUnchanged
	case "disconnected":
		return c.Messages.Disconnected
	case "no_voice_channel":
		return c.Messages.NoVoiceChannel
	case "wrong_channel":
		return c.Messages.WrongChannel
	case "invalid_query":
		return c.Messages.InvalidQuery
	case "no_results_found":
		return c.Messages.NoResultsFound
	case "not_playing":
		return c.Messages.NotPlaying
	case "invalid_position":
		return c.Messages.InvalidPosition
	case "volume_not_integer":
		return c.Messages.VolumeNotInteger
	case "too_loud":
		return c.Messages.TooLoud
	case "too_low":
		return c.Messages.TooLow
	case "duration_limit_exceeded":
		return c.Messages.DurationLimit
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "queue_share_exceeded":
		return c.Messages.QueueShareExceeded
	case "rate_limited":
		return c.Messages.RateLimited
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
