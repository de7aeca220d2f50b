// Package discord connects guild voice channels to the playback coordinator.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/jonas747/dca"
	zlog "github.com/rs/zerolog/log"

	"github.com/akira-bot/deejay/internal/domain/voice"
)

// AudioConfig represents Opus encoder configuration.
type AudioConfig struct {
	Bitrate         int // kb/s
	FrameDuration   int // ms
	BufferedFrames  int
	Application     string // "audio", "voip" or "lowdelay"
	ConstantBitrate bool
}

// encodeOptions derives encoder options from the standard dca options.
func encodeOptions(cfg AudioConfig) dca.EncodeOptions {
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	if cfg.Bitrate > 0 {
		opts.Bitrate = cfg.Bitrate
	}
	if cfg.FrameDuration > 0 {
		opts.FrameDuration = cfg.FrameDuration
	}
	if cfg.BufferedFrames > 0 {
		opts.BufferedFrames = cfg.BufferedFrames
	}
	switch cfg.Application {
	case "voip":
		opts.Application = dca.AudioApplicationVoip
	case "lowdelay":
		opts.Application = dca.AudioApplicationLowDelay
	default:
		opts.Application = dca.AudioApplicationAudio
	}
	opts.VBR = !cfg.ConstantBitrate
	return opts
}

// Connector joins voice channels through a bot session.
type Connector struct {
	session *discordgo.Session
	opts    dca.EncodeOptions
}

// NewConnector creates a connector for session.
func NewConnector(session *discordgo.Session, cfg AudioConfig) *Connector {
	return &Connector{
		session: session,
		opts:    encodeOptions(cfg),
	}
}

// Connect implements voice.Connector. The bot joins deafened.
func (c *Connector) Connect(ctx context.Context, guildID, channelID string) (voice.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}
	zlog.Debug().Msgf("voice connection ready: guild=%s channel=%s", guildID, channelID)

	return newPlayer(vc, &stateMembers{state: c.session.State}, c.opts), nil
}

// memberCounter counts users connected to a voice channel.
type memberCounter interface {
	count(guildID, channelID string) int
}

// stateMembers counts voice states from the session's state cache.
type stateMembers struct {
	state *discordgo.State
}

func (m *stateMembers) count(guildID, channelID string) int {
	g, err := m.state.Guild(guildID)
	if err != nil {
		return 0
	}
	m.state.RLock()
	defer m.state.RUnlock()
	return countInChannel(g.VoiceStates, channelID)
}

func countInChannel(states []*discordgo.VoiceState, channelID string) int {
	n := 0
	for _, vs := range states {
		if vs != nil && vs.ChannelID == channelID {
			n++
		}
	}
	return n
}

var _ voice.Connector = (*Connector)(nil)
