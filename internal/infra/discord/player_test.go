package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"
	"github.com/stretchr/testify/assert"
)

func TestGainToVolume(t *testing.T) {
	tests := []struct {
		gain   float64
		volume int
	}{
		{0, 0},
		{-1, 0},
		{0.5, 128},
		{0.7, 179},
		{1.0, 256},
		{2.0, 512},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.volume, gainToVolume(tt.gain), "gain=%v", tt.gain)
	}
}

func TestEncodeOptions(t *testing.T) {
	opts := encodeOptions(AudioConfig{
		Bitrate:         128,
		FrameDuration:   40,
		BufferedFrames:  200,
		Application:     "lowdelay",
		ConstantBitrate: true,
	})
	assert.Equal(t, 128, opts.Bitrate)
	assert.Equal(t, 40, opts.FrameDuration)
	assert.Equal(t, 200, opts.BufferedFrames)
	assert.Equal(t, dca.AudioApplicationLowDelay, opts.Application)
	assert.False(t, opts.VBR)
	assert.True(t, opts.RawOutput)

	// The package defaults are never mutated
	defaults := encodeOptions(AudioConfig{})
	assert.Equal(t, dca.StdEncodeOptions.Bitrate, defaults.Bitrate)
	assert.Equal(t, dca.AudioApplicationAudio, defaults.Application)
	assert.True(t, defaults.VBR)
}

func TestCountInChannel(t *testing.T) {
	states := []*discordgo.VoiceState{
		{UserID: "bot", ChannelID: "v1"},
		{UserID: "alice", ChannelID: "v1"},
		{UserID: "bob", ChannelID: "v2"},
		nil,
		{UserID: "carol", ChannelID: "v1"},
	}
	assert.Equal(t, 3, countInChannel(states, "v1"))
	assert.Equal(t, 1, countInChannel(states, "v2"))
	assert.Equal(t, 0, countInChannel(states, "v3"))
}

type fixedMembers int

func (f fixedMembers) count(guildID, channelID string) int { return int(f) }

func TestPlayer_IdleState(t *testing.T) {
	vc := &discordgo.VoiceConnection{GuildID: "g", ChannelID: "v1"}
	p := newPlayer(vc, fixedMembers(4), encodeOptions(AudioConfig{}))

	assert.False(t, p.IsPlaying())
	assert.Equal(t, 1.0, p.Gain())
	assert.Equal(t, "v1", p.ChannelID())
	assert.Equal(t, 4, p.ChannelMemberCount())

	// Gain changes while idle only update the stored gain
	p.SetGain(0.5)
	assert.Equal(t, 0.5, p.Gain())

	// Pausing an idle player is a no-op
	p.Pause()
	assert.False(t, p.IsPlaying())
}

func TestPlayer_PauseDiscardsCallback(t *testing.T) {
	vc := &discordgo.VoiceConnection{GuildID: "g", ChannelID: "v1"}
	p := newPlayer(vc, fixedMembers(2), encodeOptions(AudioConfig{}))

	called := false
	p.playing = true
	p.generation = 1
	p.onFinished = func(error) { called = true }

	p.Pause()

	assert.False(t, p.IsPlaying())
	assert.Nil(t, p.onFinished)
	// The encoder started under generation 1 now finishes silently
	assert.Equal(t, uint64(2), p.generation)
	assert.False(t, called)
}
