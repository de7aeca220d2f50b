package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/akira-bot/deejay/internal/domain/track"
)

// DuplicateTrackFilter rejects tracks that are already playing or queued in the guild.
// Detects:
// - Same page URL
// - Alternate uploads of the same video (normalized title match)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the queue, including lyric and official-video uploads of the same song"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request, requested track.Track) Result {
	name := normalizeTitle(requested.Title)
	for _, queued := range req.Queued {
		if queued.WebpageURL != "" && queued.WebpageURL == requested.WebpageURL {
			return Reject("duplicate_track")
		}
		if name != "" && normalizeTitle(queued.Title) == name {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	// "(Official Music Video)", "[Official Audio]", "(Lyric Video)", "[HD]", "(4K Remaster)"
	bracketPattern = regexp.MustCompile(`\s*[\(\[][^\)\]]*(official|video|audio|lyric|lyrics|hd|hq|4k|remaster(ed)?|visualizer|mv)[^\)\]]*[\)\]]`)
	// "- Official Video", "- Lyrics"
	suffixPattern = regexp.MustCompile(`\s+-\s+(official\s+(music\s+)?(video|audio)|lyrics?|audio)$`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// normalizeTitle strips upload decorations so that re-uploads of the same song compare equal.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = bracketPattern.ReplaceAllString(normalized, "")
	normalized = suffixPattern.ReplaceAllString(normalized, "")

	normalized = strings.TrimSpace(normalized)
	normalized = spacePattern.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
