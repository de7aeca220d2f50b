package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/akira-bot/deejay/internal/domain/track"
)

// QueueShareConfig represents the configuration for QueueShareFilter.
type QueueShareConfig struct {
	MaxPending int `mapstructure:"max_pending" default:"10" validate:"gte=1"`
}

// QueueShareFilter caps the number of tracks a single member may have waiting.
type QueueShareFilter struct {
	config *QueueShareConfig
}

func (f *QueueShareFilter) Name() string {
	return "queue_share_filter"
}

func (f *QueueShareFilter) Description() string {
	return "Limits how many tracks one member can have waiting in the queue"
}

func (f *QueueShareFilter) ReturnCodes() []string {
	return []string{"queue_share_exceeded"}
}

func (f *QueueShareFilter) ValidateConfig(settings map[string]any) error {
	var config QueueShareConfig
	// Explicit values, zero included, override the defaults
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = &config
	return nil
}

func (f *QueueShareFilter) Check(ctx context.Context, req Request, t track.Track) Result {
	if f.config == nil {
		return Accept()
	}
	if req.Pending >= f.config.MaxPending {
		return Reject("queue_share_exceeded")
	}
	return Accept()
}

func init() {
	Register("queue_share_filter", func() Filter {
		return &QueueShareFilter{}
	})
}
