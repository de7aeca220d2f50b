// Package playback coordinates per-guild queues, playback and skip votes.
package playback

// State represents the playback state of a guild.
type State int

const (
	StateIdle                  State = iota // Not connected, or between dequeue and play start
	StatePlaying                            // Track is streaming
	StateIdlePendingDisconnect              // Queue empty, idle timer armed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateIdlePendingDisconnect:
		return "idle_pending_disconnect"
	default:
		return "unknown"
	}
}
