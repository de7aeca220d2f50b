package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/akira-bot/deejay/internal/app/playback"
	"github.com/akira-bot/deejay/internal/app/view"
)

// Bot binds a Handler to a discordgo session.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	ctx     context.Context
}

// NewBot registers the message handlers on session. Commands run under ctx.
func NewBot(ctx context.Context, session *discordgo.Session, handler *Handler) *Bot {
	b := &Bot{
		session: session,
		handler: handler,
		ctx:     ctx,
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b
}

// SessionVoiceLookup resolves voice channels from the session state cache.
func SessionVoiceLookup(s *discordgo.Session) VoiceLookup {
	return func(guildID, userID string) string {
		vs, err := s.State.VoiceState(guildID, userID)
		if err != nil || vs == nil {
			return ""
		}
		return vs.ChannelID
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("logged in as %s#%s", r.User.Username, r.User.Discriminator)
	if status := b.handler.config.Discord.Status; status != "" {
		if err := s.UpdateListeningStatus(status); err != nil {
			zlog.Warn().Err(err).Msg("failed to update status")
		}
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}

	reply := b.handler.Handle(b.ctx, Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	})
	if reply.Empty() {
		return
	}
	if err := b.send(m.ChannelID, reply); err != nil {
		zlog.Warn().Err(err).Str("channel", m.ChannelID).Msg("failed to send reply")
	}
}

// Send posts playback events to the text channel the guild last used. Implements notification.Sink.
func (b *Bot) Send(ctx context.Context, e playback.Event) error {
	channelID, ok := b.handler.TextChannel(e.GuildID)
	if !ok {
		return nil
	}

	var reply Reply
	switch e.Type {
	case playback.EventTrackStarted:
		reply.Embed = nowPlayingEmbed(b.handler.config.GetMessage("now_playing"), view.Entry{
			Title:        e.Track.Title,
			URL:          e.Track.WebpageURL,
			ThumbnailURL: e.Track.ThumbnailURL,
			Duration:     e.Track.Duration,
			RequesterID:  e.RequesterID,
		})
	case playback.EventDisconnected:
		reply.Content = b.handler.config.GetMessage("disconnected")
	default:
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return b.send(channelID, reply)
}

func (b *Bot) send(channelID string, r Reply) error {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: r.Content,
		Embed:   r.Embed,
	})
	if err != nil {
		return errors.Wrapf(err, "send to channel %s", channelID)
	}
	return nil
}
