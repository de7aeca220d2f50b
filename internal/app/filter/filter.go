// Package filter provides the admission chain for song requests.
package filter

import (
	"context"
	"fmt"

	"github.com/akira-bot/deejay/internal/domain/track"
)

// Request describes a song request being admitted.
type Request struct {
	GuildID     string
	RequesterID string
	Pending     int           // Tracks the requester already has queued, including ones admitted earlier in this request
	Queued      []track.Track // Current and queued tracks of the guild
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duration_limit_exceeded", "rate_limited"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// RejectedError is returned to the front end when a request is refused by a filter.
type RejectedError struct {
	Code string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request rejected: %s", e.Code)
}

// Filter is the common interface of request filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
}

// TrackFilter is checked once for every resolved track.
type TrackFilter interface {
	Filter
	Check(ctx context.Context, req Request, t track.Track) Result
}

// RequestFilter is checked once per request, before resolution results are admitted.
type RequestFilter interface {
	Filter
	CheckRequest(ctx context.Context, req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
