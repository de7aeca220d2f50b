package playback

import "github.com/akira-bot/deejay/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track started playing
	EventTrackSkipped                  // Track was skipped by vote or by its requester
	EventQueueEmpty                    // Queue ran dry, idle timer armed
	EventDisconnected                  // Voice connection closed after the idle timeout
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackSkipped:
		return "track_skipped"
	case EventQueueEmpty:
		return "queue_empty"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type        EventType
	GuildID     string
	Track       track.Track // Track concerned (zero for queue_empty and disconnected)
	RequesterID string      // Requester of Track
	ChannelID   string      // Voice channel the guild is connected to
	State       State       // Guild state after the event
	SequenceNo  uint64      // Assigned by the publisher
}

// Publisher receives playback events in order from a single goroutine, never with a guild lock held.
type Publisher interface {
	Publish(e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
