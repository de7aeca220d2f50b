package filter

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"
)

// RequestRateConfig represents the configuration for RequestRateFilter.
type RequestRateConfig struct {
	PerMinute float64 `mapstructure:"per_minute" default:"6" validate:"gt=0"`
	Burst     int     `mapstructure:"burst" default:"3" validate:"gte=1"`
}

// RequestRateFilter throttles play commands per member with a token bucket.
// A bucket idle long enough to refill completely is dropped; a fresh one behaves the same.
type RequestRateFilter struct {
	config *RequestRateConfig
	now    func() time.Time

	mu        sync.Mutex
	limiters  map[string]*rateEntry
	lastSweep time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (f *RequestRateFilter) Name() string {
	return "request_rate_filter"
}

func (f *RequestRateFilter) Description() string {
	return "Limits how often one member can issue requests"
}

func (f *RequestRateFilter) ReturnCodes() []string {
	return []string{"rate_limited"}
}

func (f *RequestRateFilter) ValidateConfig(settings map[string]any) error {
	var config RequestRateConfig
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
	f.mu.Lock()
	f.config = &config
	f.limiters = make(map[string]*rateEntry)
	f.mu.Unlock()
	return nil
}

func (f *RequestRateFilter) CheckRequest(ctx context.Context, req Request) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.config == nil {
		return Accept()
	}
	now := time.Now()
	if f.now != nil {
		now = f.now()
	}
	f.sweepLocked(now)

	key := req.GuildID + "/" + req.RequesterID
	entry, ok := f.limiters[key]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(f.config.PerMinute/60), f.config.Burst)}
		f.limiters[key] = entry
	}
	entry.lastSeen = now
	if !entry.limiter.AllowN(now, 1) {
		return Reject("rate_limited")
	}
	return Accept()
}

// refillTime is how long an unused bucket takes to fill up again.
func (f *RequestRateFilter) refillTime() time.Duration {
	return time.Duration(float64(f.config.Burst) / (f.config.PerMinute / 60) * float64(time.Second))
}

// sweepLocked drops buckets that have been idle for a full refill, at most once per refill period.
func (f *RequestRateFilter) sweepLocked(now time.Time) {
	idle := f.refillTime()
	if now.Sub(f.lastSweep) < idle {
		return
	}
	f.lastSweep = now
	for key, entry := range f.limiters {
		if now.Sub(entry.lastSeen) >= idle {
			delete(f.limiters, key)
		}
	}
}

func init() {
	Register("request_rate_filter", func() Filter {
		return &RequestRateFilter{}
	})
}
