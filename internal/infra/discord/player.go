package discord

import (
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/jonas747/dca"
	zlog "github.com/rs/zerolog/log"

	"github.com/akira-bot/deejay/internal/domain/voice"
)

// unityVolume is the dca volume for a gain of 1.0.
const unityVolume = 256

// Player streams audio into one voice connection. Gain changes restart the encoder at the
// current playback position.
type Player struct {
	vc      *discordgo.VoiceConnection
	members memberCounter
	opts    dca.EncodeOptions

	mu         sync.Mutex
	gain       float64
	playing    bool
	streamURL  string
	offset     time.Duration // Start position of the current encoder
	encoder    *dca.EncodeSession
	stream     *dca.StreamingSession
	onFinished func(err error)
	generation uint64 // Tags encoders; superseded encoders finish silently
}

func newPlayer(vc *discordgo.VoiceConnection, members memberCounter, opts dca.EncodeOptions) *Player {
	return &Player{
		vc:      vc,
		members: members,
		opts:    opts,
		gain:    1.0,
	}
}

// Play starts streaming streamURL. onFinished is called once when the track ends on its own.
func (p *Player) Play(streamURL string, onFinished func(err error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return voice.ErrAlreadyPlaying
	}
	if err := p.startLocked(streamURL, 0); err != nil {
		return err
	}
	p.onFinished = onFinished
	return nil
}

// startLocked starts an encoder for streamURL at offset.
func (p *Player) startLocked(streamURL string, offset time.Duration) error {
	opts := p.opts
	opts.Volume = gainToVolume(p.gain)
	opts.StartTime = int(offset.Seconds())

	encoder, err := dca.EncodeFile(streamURL, &opts)
	if err != nil {
		return errors.Wrap(err, "failed to start encoder")
	}

	p.generation++
	done := make(chan error, 1)
	if err := p.vc.Speaking(true); err != nil {
		zlog.Debug().Err(err).Msg("failed to set speaking")
	}
	p.encoder = encoder
	p.stream = dca.NewStream(encoder, p.vc, done)
	p.streamURL = streamURL
	p.offset = offset
	p.playing = true

	go p.wait(p.generation, encoder, done)
	return nil
}

// wait reports the end of the encoder started under generation.
func (p *Player) wait(generation uint64, encoder *dca.EncodeSession, done chan error) {
	err := <-done
	encoder.Cleanup()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		return
	}
	cb := p.finishLocked()
	p.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// finishLocked resets the stream state and returns the pending completion callback.
func (p *Player) finishLocked() func(error) {
	p.playing = false
	p.encoder = nil
	p.stream = nil
	cb := p.onFinished
	p.onFinished = nil
	if err := p.vc.Speaking(false); err != nil {
		zlog.Debug().Err(err).Msg("failed to clear speaking")
	}
	return cb
}

// stopLocked stops the current encoder without reporting completion.
func (p *Player) stopLocked() {
	p.generation++
	if p.encoder != nil {
		if err := p.encoder.Stop(); err != nil {
			zlog.Debug().Err(err).Msg("encoder already stopped")
		}
	}
}

// Pause stops the current track. Its completion callback is discarded.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return
	}
	p.stopLocked()
	p.finishLocked()
}

// IsPlaying reports whether a track is streaming.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Gain returns the linear gain.
func (p *Player) Gain() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gain
}

// SetGain changes the linear gain, re-encoding the current track from its playback position.
func (p *Player) SetGain(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gain = gain
	if !p.playing || p.stream == nil {
		return
	}

	position := p.offset + p.stream.PlaybackPosition()
	p.stopLocked()
	if err := p.startLocked(p.streamURL, position); err != nil {
		zlog.Error().Err(err).Msg("failed to restart stream after gain change")
		if cb := p.finishLocked(); cb != nil {
			go cb(err)
		}
	}
}

// Disconnect stops playback and leaves the voice channel.
func (p *Player) Disconnect() error {
	p.mu.Lock()
	if p.playing {
		p.stopLocked()
		p.finishLocked()
	}
	p.mu.Unlock()

	if err := p.vc.Disconnect(); err != nil {
		return errors.Wrap(err, "failed to leave voice channel")
	}
	return nil
}

// ChannelID returns the connected voice channel.
func (p *Player) ChannelID() string {
	return p.vc.ChannelID
}

// ChannelMemberCount counts the users in the voice channel, the bot included.
func (p *Player) ChannelMemberCount() int {
	return p.members.count(p.vc.GuildID, p.vc.ChannelID)
}

// gainToVolume maps a linear gain to the dca volume scale.
func gainToVolume(gain float64) int {
	if gain < 0 {
		return 0
	}
	return int(gain*unityVolume + 0.5)
}

var _ voice.Player = (*Player)(nil)
