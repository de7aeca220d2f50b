// Package setlist provides the per-guild queue of requested tracks.
package setlist

import (
	"iter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/akira-bot/deejay/internal/domain/track"
)

// Errors
var (
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrInvalidPosition = errors.New("invalid queue position")
)

// Setlist holds the pending queue, the current track and the idle marker of one guild.
// It is not safe for concurrent use; callers serialize access per guild.
type Setlist struct {
	queue     []*track.QueuedTrack // Tracks waiting to be played, request order
	current   *track.QueuedTrack   // Track presently streaming
	idleSince *time.Time           // Set while nothing plays and no play attempt is in flight
}

// New creates an empty setlist.
func New() *Setlist {
	return &Setlist{
		queue: make([]*track.QueuedTrack, 0),
	}
}

// Enqueue appends a track to the tail of the queue.
func (s *Setlist) Enqueue(qt *track.QueuedTrack) {
	s.queue = append(s.queue, qt)
}

// Requeue puts a track back at the head of the queue.
func (s *Setlist) Requeue(qt *track.QueuedTrack) {
	s.queue = append([]*track.QueuedTrack{qt}, s.queue...)
}

// DequeueNext removes and returns the head of the queue.
func (s *Setlist) DequeueNext() (*track.QueuedTrack, error) {
	if len(s.queue) == 0 {
		return nil, ErrEmptyQueue
	}
	qt := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return qt, nil
}

// PeekTitles yields display titles: the current track first when includeCurrent is set and
// a track is playing, then the queue in order. limit <= 0 yields every title.
// The sequence may be ranged over repeatedly; each pass reflects the setlist at that moment.
func (s *Setlist) PeekTitles(includeCurrent bool, limit int) iter.Seq[string] {
	return func(yield func(string) bool) {
		n := 0
		emit := func(title string) bool {
			if limit > 0 && n >= limit {
				return false
			}
			n++
			return yield(title)
		}
		if includeCurrent && s.current != nil {
			if !emit(s.current.Track.Title) {
				return
			}
		}
		for _, qt := range s.queue {
			if !emit(qt.Track.Title) {
				return
			}
		}
	}
}

// TotalDuration sums the current track and every queued track. Zero when idle.
func (s *Setlist) TotalDuration() time.Duration {
	if s.current == nil {
		return 0
	}
	total := s.current.Track.Duration
	for _, qt := range s.queue {
		total += qt.Track.Duration
	}
	return total
}

// At returns the queued track at the 1-indexed position.
func (s *Setlist) At(position int) (*track.QueuedTrack, error) {
	if position < 1 || position > len(s.queue) {
		return nil, errors.Wrapf(ErrInvalidPosition, "position %d of %d", position, len(s.queue))
	}
	return s.queue[position-1], nil
}

// RemoveAt removes the queued track at the 1-indexed position.
func (s *Setlist) RemoveAt(position int) (*track.QueuedTrack, error) {
	qt, err := s.At(position)
	if err != nil {
		return nil, err
	}
	s.queue = append(s.queue[:position-1], s.queue[position:]...)
	return qt, nil
}

// Clear empties the queue and returns the removed tracks. The current track is untouched.
func (s *Setlist) Clear() []*track.QueuedTrack {
	removed := s.queue
	s.queue = make([]*track.QueuedTrack, 0)
	return removed
}

// Len returns the number of queued tracks, excluding the current one.
func (s *Setlist) Len() int {
	return len(s.queue)
}

// IsEmpty returns true if nothing is queued.
func (s *Setlist) IsEmpty() bool {
	return len(s.queue) == 0
}

// Current returns the track presently streaming.
func (s *Setlist) Current() (*track.QueuedTrack, bool) {
	return s.current, s.current != nil
}

// SetCurrent marks qt as streaming and clears the idle marker. nil marks nothing as current.
func (s *Setlist) SetCurrent(qt *track.QueuedTrack) {
	s.current = qt
	if qt != nil {
		s.idleSince = nil
	}
}

// MarkIdle records the moment playback stopped and clears the current track.
func (s *Setlist) MarkIdle(now time.Time) {
	s.current = nil
	s.idleSince = &now
}

// ClearIdle removes the idle marker.
func (s *Setlist) ClearIdle() {
	s.idleSince = nil
}

// IdleSince returns when playback stopped, if idle.
func (s *Setlist) IdleSince() (time.Time, bool) {
	if s.idleSince == nil {
		return time.Time{}, false
	}
	return *s.idleSince, true
}

// Tracks returns a copy of the queued tracks.
func (s *Setlist) Tracks() []*track.QueuedTrack {
	result := make([]*track.QueuedTrack, len(s.queue))
	copy(result, s.queue)
	return result
}

// CountByRequester returns how many queued tracks requesterID is waiting on.
func (s *Setlist) CountByRequester(requesterID string) int {
	return lo.CountBy(s.queue, func(qt *track.QueuedTrack) bool {
		return qt.RequesterID == requesterID
	})
}
