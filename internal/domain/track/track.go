// Package track provides the Track domain entity.
package track

import "time"

// Track is a resolved, playable unit. Contains only information returned by a Resolver.
type Track struct {
	Title        string        // Display title
	Duration     time.Duration // Whole seconds, never negative
	StreamURL    string        // Direct audio stream URL handed to the player
	WebpageURL   string        // Human-facing page URL
	ThumbnailURL string        // Thumbnail image URL
}

// QueuedTrack represents a track in a guild setlist.
type QueuedTrack struct {
	Track       Track     // Resolved track info
	RequesterID string    // User who requested the track
	AddedAt     time.Time // Time when added to the setlist

	votes map[string]struct{}
}

// NewQueuedTrack stamps t with its requester and an empty skip vote set.
func NewQueuedTrack(t Track, requesterID string, addedAt time.Time) *QueuedTrack {
	if t.Duration < 0 {
		t.Duration = 0
	}
	t.Duration = t.Duration.Truncate(time.Second)
	return &QueuedTrack{
		Track:       t,
		RequesterID: requesterID,
		AddedAt:     addedAt,
		votes:       make(map[string]struct{}),
	}
}

// AddVote records a skip vote. Returns false if userID had already voted.
func (q *QueuedTrack) AddVote(userID string) bool {
	if q.votes == nil {
		q.votes = make(map[string]struct{})
	}
	if _, ok := q.votes[userID]; ok {
		return false
	}
	q.votes[userID] = struct{}{}
	return true
}

// VoteCount returns the number of distinct skip votes.
func (q *QueuedTrack) VoteCount() int {
	return len(q.votes)
}

// IsRequestedBy reports whether userID requested the track.
func (q *QueuedTrack) IsRequestedBy(userID string) bool {
	return userID != "" && q.RequesterID == userID
}
