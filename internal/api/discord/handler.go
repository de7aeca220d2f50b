// Package discord maps chat commands to playback coordinator operations.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/akira-bot/deejay/internal/app/filter"
	"github.com/akira-bot/deejay/internal/app/playback"
	"github.com/akira-bot/deejay/internal/app/setlist"
	"github.com/akira-bot/deejay/internal/app/view"
	"github.com/akira-bot/deejay/internal/app/volume"
	"github.com/akira-bot/deejay/internal/domain/track"
	"github.com/akira-bot/deejay/internal/infra/config"
	"github.com/akira-bot/deejay/internal/infra/logger"
)

const requestTimeout = 2 * time.Minute

// Coordinator is the part of playback.Coordinator the front end drives.
type Coordinator interface {
	Request(ctx context.Context, in playback.RequestInput) (playback.RequestResult, error)
	VoteSkip(in playback.VoteInput) (playback.VoteResult, error)
	ClearQueue(guildID string) int
	QueueView(guildID string) (view.QueueView, error)
	SetVolume(guildID, requested string) (playback.VolumeReport, error)
}

// VoiceLookup returns the voice channel a member is in, or "" when none.
type VoiceLookup func(guildID, userID string) string

// Message is an incoming chat message.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
}

// Reply is what the bot answers with. A zero Reply sends nothing.
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// Empty reports whether r has nothing to send.
func (r Reply) Empty() bool {
	return r.Content == "" && r.Embed == nil
}

// Handler executes prefix commands.
type Handler struct {
	coordinator Coordinator
	config      *config.Config
	voice       VoiceLookup

	mu           sync.Mutex
	textChannels map[string]string // guildID -> text channel of the last command
}

// NewHandler creates a new Handler.
func NewHandler(coordinator Coordinator, cfg *config.Config, voice VoiceLookup) *Handler {
	return &Handler{
		coordinator:  coordinator,
		config:       cfg,
		voice:        voice,
		textChannels: make(map[string]string),
	}
}

// Handle runs the command in msg, if any, and returns the reply.
func (h *Handler) Handle(ctx context.Context, msg Message) Reply {
	name, args, ok := parseCommand(h.config.Discord.Prefix, msg.Content)
	if !ok || msg.GuildID == "" {
		return Reply{}
	}

	log := logger.ForGuild(msg.GuildID)
	var (
		reply Reply
		err   error
	)
	switch name {
	case "play", "p":
		reply, err = h.play(ctx, msg, args)
	case "skip", "s":
		reply, err = h.skip(msg, args)
	case "queue", "q":
		reply, err = h.queue(msg)
	case "clear":
		reply, err = h.clear(msg)
	case "volume", "vol", "v":
		reply, err = h.volume(msg, args)
	default:
		return Reply{}
	}

	h.rememberChannel(msg.GuildID, msg.ChannelID)

	if err != nil {
		code := codeFor(err)
		if code == "default_error" {
			log.Error().Err(err).Str("command", name).Str("user", msg.AuthorID).Msg("command failed")
		} else {
			log.Debug().Err(err).Str("command", name).Str("code", code).Msg("command refused")
		}
		return Reply{Embed: errorEmbed(h.config.GetMessage(code))}
	}
	return reply
}

func (h *Handler) play(ctx context.Context, msg Message, query string) (Reply, error) {
	if query == "" {
		return Reply{}, track.ErrInvalidQuery
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	result, err := h.coordinator.Request(ctx, playback.RequestInput{
		GuildID:     msg.GuildID,
		RequesterID: msg.AuthorID,
		ChannelID:   h.voice(msg.GuildID, msg.AuthorID),
		Query:       query,
	})
	if err != nil {
		return Reply{}, err
	}

	heading := h.config.GetMessage("queued")
	if result.Summary.Added > 1 {
		heading = fmt.Sprintf(h.config.GetMessage("queued_many"), result.Summary.Added)
	}
	return Reply{Embed: requestEmbed(heading, result.Summary)}, nil
}

func (h *Handler) skip(msg Message, args string) (Reply, error) {
	position := 0
	if args != "" {
		p, err := strconv.Atoi(args)
		if err != nil || p < 0 {
			return Reply{}, setlist.ErrInvalidPosition
		}
		position = p
	}

	result, err := h.coordinator.VoteSkip(playback.VoteInput{
		GuildID:   msg.GuildID,
		VoterID:   msg.AuthorID,
		ChannelID: h.voice(msg.GuildID, msg.AuthorID),
		Position:  position,
	})
	if err != nil {
		return Reply{}, err
	}

	if !result.Skipped {
		return Reply{Content: fmt.Sprintf(h.config.GetMessage("votes_needed"), result.VotesNeeded)}, nil
	}
	return Reply{Content: fmt.Sprintf(h.config.GetMessage("skipped"), result.Track.Title)}, nil
}

func (h *Handler) queue(msg Message) (Reply, error) {
	qv, err := h.coordinator.QueueView(msg.GuildID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Embed: queueEmbed(h.config.GetMessage("now_playing"), qv)}, nil
}

func (h *Handler) clear(msg Message) (Reply, error) {
	removed := h.coordinator.ClearQueue(msg.GuildID)
	zlog.Debug().Str("guild", msg.GuildID).Int("removed", removed).Msg("queue cleared")
	return Reply{Content: h.config.GetMessage("queue_cleared")}, nil
}

func (h *Handler) volume(msg Message, args string) (Reply, error) {
	report, err := h.coordinator.SetVolume(msg.GuildID, args)
	if err != nil {
		return Reply{}, err
	}

	switch {
	case !report.Changed:
		return Reply{Content: fmt.Sprintf(h.config.GetMessage("volume_current"), report.Display)}, nil
	case report.Diff > 0:
		return Reply{Content: fmt.Sprintf(h.config.GetMessage("volume_up"), report.Diff)}, nil
	case report.Diff < 0:
		return Reply{Content: fmt.Sprintf(h.config.GetMessage("volume_down"), -report.Diff)}, nil
	default:
		return Reply{Content: h.config.GetMessage("volume_unchanged")}, nil
	}
}

func (h *Handler) rememberChannel(guildID, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.textChannels[guildID] = channelID
}

// TextChannel returns the text channel the guild last issued a command in.
func (h *Handler) TextChannel(guildID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.textChannels[guildID]
	return ch, ok
}

// parseCommand splits "<prefix>name args" into a lowercased name and trimmed args.
func parseCommand(prefix, content string) (string, string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, prefix)

	name, args, _ := strings.Cut(content, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// codeFor maps an operation error to a message code.
func codeFor(err error) string {
	var rejected *filter.RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Code
	case errors.Is(err, playback.ErrNoVoiceChannel):
		return "no_voice_channel"
	case errors.Is(err, playback.ErrWrongChannel):
		return "wrong_channel"
	case errors.Is(err, playback.ErrNotPlaying):
		return "not_playing"
	case errors.Is(err, track.ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, track.ErrNoResultsFound):
		return "no_results_found"
	case errors.Is(err, setlist.ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, volume.ErrVolumeNotInteger):
		return "volume_not_integer"
	case errors.Is(err, volume.ErrTooLoud):
		return "too_loud"
	case errors.Is(err, volume.ErrTooLow):
		return "too_low"
	default:
		return "default_error"
	}
}
