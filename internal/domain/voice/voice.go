// Package voice defines the ports for voice connections and audio playback.
package voice

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAlreadyPlaying is returned by Player.Play while a previous source is still streaming.
	ErrAlreadyPlaying = errors.New("already playing audio")
	// ErrNotConnected is returned when the underlying voice connection is gone.
	ErrNotConnected = errors.New("not connected to a voice channel")
)

// Player is a single voice connection able to stream one source at a time.
type Player interface {
	// Play starts streaming streamURL. onFinished is called at most once, when the source ends
	// or fails, and may be called from any goroutine. It is not called for a source stopped by Pause.
	Play(streamURL string, onFinished func(err error)) error
	// Pause stops the current source and discards its pending onFinished callback.
	Pause()
	// IsPlaying reports whether a source is streaming.
	IsPlaying() bool
	// Gain returns the linear gain (0.0-2.0) applied to sources.
	Gain() float64
	// SetGain changes the linear gain, including for the current source where supported.
	SetGain(gain float64)
	// Disconnect leaves the voice channel.
	Disconnect() error
	// ChannelID returns the voice channel the player is connected to.
	ChannelID() string
	// ChannelMemberCount returns the number of members in the channel, the bot included.
	ChannelMemberCount() int
}

// Connector opens voice connections.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Player, error)
}
