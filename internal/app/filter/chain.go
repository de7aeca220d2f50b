package filter

import (
	"context"

	"github.com/akira-bot/deejay/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// ExecuteRequest runs every RequestFilter. Returns immediately on the first rejection.
func (c *Chain) ExecuteRequest(ctx context.Context, req Request) Result {
	if c == nil {
		return Accept()
	}
	for _, f := range c.filters {
		rf, ok := f.(RequestFilter)
		if !ok {
			continue
		}
		if result := rf.CheckRequest(ctx, req); !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Execute runs every TrackFilter against t. Returns immediately on the first rejection.
func (c *Chain) Execute(ctx context.Context, req Request, t track.Track) Result {
	if c == nil {
		return Accept()
	}
	for _, f := range c.filters {
		tf, ok := f.(TrackFilter)
		if !ok {
			continue
		}
		if result := tf.Check(ctx, req, t); !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
