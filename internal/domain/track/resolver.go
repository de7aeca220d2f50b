package track

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Resolution errors surfaced to users. Resolvers wrap them; callers match with errors.Is.
var (
	ErrInvalidQuery   = errors.New("invalid query")
	ErrNoResultsFound = errors.New("no results found")
)

// Resolver turns a user query (URL or free text) into one or more playable tracks.
type Resolver interface {
	// Resolve returns tracks in playback order. Never returns an empty slice with a nil error.
	Resolve(ctx context.Context, query string) ([]Track, error)
}
