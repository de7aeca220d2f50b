// Package view builds human-readable summaries of a guild setlist for the command front end.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"

	"github.com/akira-bot/deejay/internal/app/setlist"
	"github.com/akira-bot/deejay/internal/domain/track"
)

const (
	// MaxTitleWidth is the display width titles are cut to in listings.
	MaxTitleWidth = 80
	// DefaultQueueBudget is the character budget for the upcoming list.
	DefaultQueueBudget = 1500
	// DefaultSummaryTitles is the number of titles in a request summary footer.
	DefaultSummaryTitles = 3
)

// Entry is the display form of a single track.
type Entry struct {
	Title        string
	URL          string
	ThumbnailURL string
	Duration     time.Duration
	RequesterID  string
}

// RequestSummary describes a fulfilled request.
type RequestSummary struct {
	Track  Entry  // First resolved track
	Added  int    // Number of tracks added by the request
	Footer string // Leading setlist titles, current first
}

// QueueView describes what is playing and what comes next.
type QueueView struct {
	Current       Entry
	TotalDuration time.Duration
	Upcoming      []string // "N. [title](url)" lines within the budget
	Remaining     int      // Upcoming tracks left out of Upcoming
}

// NewEntry converts a queued track.
func NewEntry(qt *track.QueuedTrack) Entry {
	return Entry{
		Title:        qt.Track.Title,
		URL:          qt.Track.WebpageURL,
		ThumbnailURL: qt.Track.ThumbnailURL,
		Duration:     qt.Track.Duration,
		RequesterID:  qt.RequesterID,
	}
}

// BuildRequestSummary summarises a request for first, listing up to n setlist titles.
func BuildRequestSummary(s *setlist.Setlist, first *track.QueuedTrack, added, n int) RequestSummary {
	if n <= 0 {
		n = DefaultSummaryTitles
	}

	titles := make([]string, 0, n)
	for title := range s.PeekTitles(true, n) {
		titles = append(titles, Truncate(title, MaxTitleWidth))
	}

	total := s.Len()
	if _, ok := s.Current(); ok {
		total++
	}

	footer := strings.Join(titles, ", ")
	if total > n {
		footer += "..."
	}

	return RequestSummary{
		Track:  NewEntry(first),
		Added:  added,
		Footer: footer,
	}
}

// BuildQueueView renders the setlist. Returns false when nothing is playing.
// Upcoming lines are added until their combined length exceeds budget.
func BuildQueueView(s *setlist.Setlist, budget int) (QueueView, bool) {
	current, ok := s.Current()
	if !ok {
		return QueueView{}, false
	}
	if budget <= 0 {
		budget = DefaultQueueBudget
	}

	lines := lo.Map(s.Tracks(), func(qt *track.QueuedTrack, i int) string {
		return fmt.Sprintf("%d. [%s](%s)", i+1, Truncate(qt.Track.Title, MaxTitleWidth), qt.Track.WebpageURL)
	})

	included := make([]string, 0, len(lines))
	size := 0
	for _, line := range lines {
		if size > budget {
			break
		}
		size += len(line)
		included = append(included, line)
	}

	return QueueView{
		Current:       NewEntry(current),
		TotalDuration: s.TotalDuration(),
		Upcoming:      included,
		Remaining:     len(lines) - len(included),
	}, true
}

// HumanDuration formats d as "1h 2m 3s", dropping leading zero units.
func HumanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, sec := total/3600, (total%3600)/60, total%60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// Truncate cuts s to width display cells, ending in an ellipsis when shortened.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
