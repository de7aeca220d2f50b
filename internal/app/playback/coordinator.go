package playback

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/akira-bot/deejay/internal/app/filter"
	"github.com/akira-bot/deejay/internal/app/guild"
	"github.com/akira-bot/deejay/internal/app/view"
	"github.com/akira-bot/deejay/internal/app/volume"
	"github.com/akira-bot/deejay/internal/domain/track"
	"github.com/akira-bot/deejay/internal/domain/voice"
	"github.com/akira-bot/deejay/internal/infra/logger"
)

// Errors
var (
	ErrNoVoiceChannel = errors.New("requester is not in a voice channel")
	ErrWrongChannel   = errors.New("requester is not in the bot's voice channel")
	ErrNotPlaying     = errors.New("nothing is playing")
)

const (
	DefaultIdleTimeout = 10 * time.Minute
	DefaultVoteDivisor = 3

	maxConnectAttempts = 2
	completionBuffer   = 64
	eventBuffer        = 256
)

// Config holds coordinator configuration.
type Config struct {
	IdleTimeout     time.Duration // Grace period before an idle voice connection is closed
	VoteDivisor     int           // Required votes = (members - 1) / VoteDivisor
	SummaryTitles   int           // Titles listed in a request summary footer
	QueueViewBudget int           // Character budget for upcoming queue lines
}

// RequestInput describes a play command.
type RequestInput struct {
	GuildID     string
	RequesterID string
	ChannelID   string // Requester's voice channel, empty when not in one
	Query       string
}

// RequestResult describes what a request added.
type RequestResult struct {
	Summary  view.RequestSummary
	Rejected int // Resolved tracks dropped by filters
}

// VoteInput describes a skip vote.
type VoteInput struct {
	GuildID   string
	VoterID   string
	ChannelID string // Voter's voice channel, empty when not in one
	Position  int    // 0 is the current track, 1.. the queued tracks
}

// VoteResult reports the outcome of a skip vote.
type VoteResult struct {
	Skipped     bool
	Forced      bool // Skipped by the track's requester
	Track       track.Track
	Votes       int
	Required    int
	VotesNeeded int // Additional votes needed when not skipped
}

// VolumeReport reports the volume after a volume command.
type VolumeReport struct {
	Display int
	Diff    int
	Changed bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFilters sets the admission filter chain.
func WithFilters(chain *filter.Chain) Option {
	return func(c *Coordinator) {
		c.filters = chain
	}
}

// WithPublisher sets the receiver of playback events.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) {
		c.publisher = p
	}
}

// WithClock replaces the wall clock and the timer scheduler. afterFunc must run f once after d
// and return a function that stops it.
func WithClock(now func() time.Time, afterFunc func(d time.Duration, f func()) func() bool) Option {
	return func(c *Coordinator) {
		c.now = now
		c.afterFunc = afterFunc
	}
}

// completion is posted by a player when the track started under generation ends.
type completion struct {
	guildID    string
	generation uint64
	err        error
}

// Coordinator drives the per-guild playback state machine.
type Coordinator struct {
	guilds    *guild.Registry
	resolver  track.Resolver
	connector voice.Connector
	filters   *filter.Chain
	publisher Publisher
	config    Config

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) func() bool

	completions chan completion
	events      chan Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	delivered chan struct{}
}

// NewCoordinator creates a coordinator and starts its completion dispatcher.
func NewCoordinator(resolver track.Resolver, connector voice.Connector, config Config, opts ...Option) *Coordinator {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.VoteDivisor <= 0 {
		config.VoteDivisor = DefaultVoteDivisor
	}
	if config.SummaryTitles <= 0 {
		config.SummaryTitles = view.DefaultSummaryTitles
	}
	if config.QueueViewBudget <= 0 {
		config.QueueViewBudget = view.DefaultQueueBudget
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		guilds:      guild.NewRegistry(),
		resolver:    resolver,
		connector:   connector,
		publisher:   nopPublisher{},
		config:      config,
		now:         time.Now,
		afterFunc:   afterFunc,
		completions: make(chan completion, completionBuffer),
		events:      make(chan Event, eventBuffer),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		delivered:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.dispatch()
	go c.deliver()
	return c
}

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Request resolves query and appends the results to the guild's setlist, joining the
// requester's voice channel first if needed. Playback starts immediately when idle.
func (c *Coordinator) Request(ctx context.Context, in RequestInput) (RequestResult, error) {
	g := c.guilds.Get(in.GuildID)
	log := logger.ForGuild(in.GuildID).With().
		Str("request_id", uuid.NewString()).
		Str("requester_id", in.RequesterID).
		Logger()

	if err := c.checkRequesterChannel(g, in.ChannelID); err != nil {
		return RequestResult{}, err
	}

	if result := c.filters.ExecuteRequest(ctx, filter.Request{GuildID: in.GuildID, RequesterID: in.RequesterID}); !result.Accepted {
		log.Info().Msgf("request rejected: %s", result.Code)
		return RequestResult{}, &filter.RejectedError{Code: result.Code}
	}

	log.Debug().Msgf("resolving %q", in.Query)
	resolved, err := c.resolver.Resolve(ctx, in.Query)
	if err != nil {
		return RequestResult{}, errors.Wrapf(err, "failed to resolve %q", in.Query)
	}
	if len(resolved) == 0 {
		return RequestResult{}, errors.Wrapf(track.ErrNoResultsFound, "query %q", in.Query)
	}

	accepted, rejection := c.admit(ctx, g, in.RequesterID, resolved)
	if len(accepted) == 0 {
		log.Info().Msgf("all %d resolved tracks rejected: %s", len(resolved), rejection.Code)
		return RequestResult{}, &filter.RejectedError{Code: rejection.Code}
	}

	g.LockJoin()
	defer g.UnlockJoin()

	if err := c.ensureConnected(ctx, g, in.ChannelID, log); err != nil {
		return RequestResult{}, err
	}

	g.Lock()
	if g.Player == nil {
		g.Unlock()
		return RequestResult{}, errors.Wrap(voice.ErrNotConnected, "voice connection lost")
	}
	if g.Player.ChannelID() != in.ChannelID {
		g.Unlock()
		return RequestResult{}, ErrWrongChannel
	}

	// The setlist may have changed while resolving or joining
	accepted, rejection = c.filterTracks(ctx, c.admissionLocked(g, in.RequesterID), accepted)
	if len(accepted) == 0 {
		g.Unlock()
		log.Info().Msgf("all %d resolved tracks rejected on enqueue: %s", len(resolved), rejection.Code)
		return RequestResult{}, &filter.RejectedError{Code: rejection.Code}
	}

	now := c.now()
	queued := lo.Map(accepted, func(t track.Track, _ int) *track.QueuedTrack {
		return track.NewQueuedTrack(t, in.RequesterID, now)
	})
	for _, qt := range queued {
		g.Setlist.Enqueue(qt)
	}
	log.Info().Msgf("queued %d track(s), %d rejected", len(queued), len(resolved)-len(accepted))

	var events []Event
	if _, playing := g.Setlist.Current(); !playing {
		events = c.advanceLocked(g)
	}
	summary := view.BuildRequestSummary(g.Setlist, queued[0], len(queued), c.config.SummaryTitles)
	g.Unlock()

	c.publish(events)
	return RequestResult{
		Summary:  summary,
		Rejected: len(resolved) - len(accepted),
	}, nil
}

// checkRequesterChannel validates the requester's voice channel against the connection.
func (c *Coordinator) checkRequesterChannel(g *guild.State, channelID string) error {
	g.Lock()
	player := g.Player
	g.Unlock()

	if player == nil {
		if channelID == "" {
			return ErrNoVoiceChannel
		}
		return nil
	}
	if player.ChannelID() != channelID {
		return ErrWrongChannel
	}
	return nil
}

// admit runs the track filters over resolved against the current setlist.
// Returns the accepted tracks and the first rejection.
func (c *Coordinator) admit(ctx context.Context, g *guild.State, requesterID string, resolved []track.Track) ([]track.Track, filter.Result) {
	g.Lock()
	req := c.admissionLocked(g, requesterID)
	g.Unlock()
	return c.filterTracks(ctx, req, resolved)
}

// admissionLocked describes the guild's setlist to the filters. Requires the guild lock.
func (c *Coordinator) admissionLocked(g *guild.State, requesterID string) filter.Request {
	req := filter.Request{
		GuildID:     g.ID,
		RequesterID: requesterID,
		Pending:     g.Setlist.CountByRequester(requesterID),
		Queued:      lo.Map(g.Setlist.Tracks(), func(qt *track.QueuedTrack, _ int) track.Track { return qt.Track }),
	}
	if current, ok := g.Setlist.Current(); ok {
		req.Queued = append(req.Queued, current.Track)
	}
	return req
}

// filterTracks runs the track filters, counting each accepted track against the following ones.
func (c *Coordinator) filterTracks(ctx context.Context, req filter.Request, tracks []track.Track) ([]track.Track, filter.Result) {
	accepted := make([]track.Track, 0, len(tracks))
	rejection := filter.Accept()
	for _, t := range tracks {
		result := c.filters.Execute(ctx, req, t)
		if !result.Accepted {
			if rejection.Accepted {
				rejection = result
			}
			continue
		}
		accepted = append(accepted, t)
		req.Pending++
		req.Queued = append(req.Queued, t)
	}
	return accepted, rejection
}

// ensureConnected joins channelID unless a connection exists. Requires the join lock.
func (c *Coordinator) ensureConnected(ctx context.Context, g *guild.State, channelID string, log zerolog.Logger) error {
	g.Lock()
	connected := g.Player != nil
	g.Unlock()
	if connected {
		return nil
	}

	var err error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		var player voice.Player
		player, err = c.connector.Connect(ctx, g.ID, channelID)
		if err == nil {
			g.Lock()
			g.Player = player
			g.Unlock()
			log.Info().Msgf("joined voice channel %s", channelID)
			return nil
		}
		log.Warn().Err(err).Msgf("failed to join voice channel (attempt %d/%d)", attempt, maxConnectAttempts)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Wrapf(err, "failed to join voice channel %s", channelID)
}

// advanceLocked starts the next queued track, or goes idle when the queue is empty.
// Requires the guild lock. Returns the events to publish once the lock is released.
func (c *Coordinator) advanceLocked(g *guild.State) []Event {
	log := logger.ForGuild(g.ID)
	g.StopIdleTimer()

	if g.Player == nil {
		log.Warn().Msg("advance without a voice connection, clearing setlist")
		g.Setlist.Clear()
		g.Setlist.SetCurrent(nil)
		g.Setlist.ClearIdle()
		return nil
	}

	for {
		next, err := g.Setlist.DequeueNext()
		if err != nil {
			g.Setlist.MarkIdle(c.now())
			c.armIdleTimerLocked(g)
			log.Debug().Msgf("queue empty, disconnecting in %s unless a request arrives", c.config.IdleTimeout)
			return []Event{{
				Type:      EventQueueEmpty,
				GuildID:   g.ID,
				ChannelID: g.Player.ChannelID(),
				State:     StateIdlePendingDisconnect,
			}}
		}

		// The generation only moves on a successful start, so the completion of a track that
		// is still winding down can pick up a requeued head.
		generation := g.Generation() + 1
		err = g.Player.Play(next.Track.StreamURL, c.onFinished(g.ID, generation))
		if errors.Is(err, voice.ErrAlreadyPlaying) {
			log.Warn().Msgf("player still busy, %q waits for the previous completion", next.Track.Title)
			g.Setlist.Requeue(next)
			g.Setlist.SetCurrent(nil)
			return nil
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to play %q, moving on", next.Track.Title)
			continue
		}

		g.NextGeneration()
		g.Setlist.SetCurrent(next)
		log.Info().Msgf("now playing %q", next.Track.Title)
		return []Event{{
			Type:        EventTrackStarted,
			GuildID:     g.ID,
			Track:       next.Track,
			RequesterID: next.RequesterID,
			ChannelID:   g.Player.ChannelID(),
			State:       StatePlaying,
		}}
	}
}

func (c *Coordinator) armIdleTimerLocked(g *guild.State) {
	guildID := g.ID
	g.ArmIdleTimer(c.afterFunc(c.config.IdleTimeout, func() {
		c.IdleTimeoutCheck(guildID)
	}))
}

// onFinished returns the player callback for the track started under generation.
func (c *Coordinator) onFinished(guildID string, generation uint64) func(err error) {
	return func(err error) {
		select {
		case c.completions <- completion{guildID: guildID, generation: generation, err: err}:
		case <-c.ctx.Done():
		}
	}
}

// dispatch drains completions until the coordinator is closed.
func (c *Coordinator) dispatch() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case comp := <-c.completions:
			c.handleCompletion(comp)
		}
	}
}

func (c *Coordinator) handleCompletion(comp completion) {
	g, ok := c.guilds.Lookup(comp.guildID)
	if !ok {
		return
	}
	log := logger.ForGuild(comp.guildID)
	if comp.err != nil {
		log.Warn().Err(comp.err).Msg("playback ended with error")
	}

	g.Lock()
	if comp.generation != g.Generation() {
		g.Unlock()
		log.Debug().Msgf("dropping stale completion %d (current %d)", comp.generation, g.Generation())
		return
	}
	if g.Player == nil {
		g.Unlock()
		return
	}
	// Already idle after a skip emptied the queue
	if _, playing := g.Setlist.Current(); !playing && g.Setlist.IsEmpty() {
		g.Unlock()
		return
	}
	events := c.advanceLocked(g)
	g.Unlock()

	c.publish(events)
}

// VoteSkip registers a skip vote for the track at in.Position and skips it once enough members
// agree. The requester of the targeted track skips it unconditionally.
func (c *Coordinator) VoteSkip(in VoteInput) (VoteResult, error) {
	g, ok := c.guilds.Lookup(in.GuildID)
	if !ok {
		return VoteResult{}, ErrNotPlaying
	}

	g.Lock()
	current, playing := g.Setlist.Current()
	if !playing || g.Player == nil {
		g.Unlock()
		return VoteResult{}, ErrNotPlaying
	}

	target := current
	if in.Position != 0 {
		var err error
		if target, err = g.Setlist.At(in.Position); err != nil {
			g.Unlock()
			return VoteResult{}, err
		}
	}

	forced := target.IsRequestedBy(in.VoterID)
	if !forced && in.ChannelID != g.Player.ChannelID() {
		g.Unlock()
		return VoteResult{}, ErrWrongChannel
	}

	target.AddVote(in.VoterID)
	result := VoteResult{
		Forced:   forced,
		Track:    target.Track,
		Votes:    target.VoteCount(),
		Required: c.RequiredVotes(g.Player.ChannelMemberCount()),
	}
	if !forced && result.Votes < result.Required {
		result.VotesNeeded = result.Required - result.Votes
		g.Unlock()
		return result, nil
	}

	result.Skipped = true
	events := []Event{{
		Type:        EventTrackSkipped,
		GuildID:     g.ID,
		Track:       target.Track,
		RequesterID: target.RequesterID,
		ChannelID:   g.Player.ChannelID(),
		State:       StatePlaying,
	}}
	if in.Position == 0 {
		g.Player.Pause()
		events = append(events, c.advanceLocked(g)...)
		events[0].State = c.stateLocked(g)
	} else if _, err := g.Setlist.RemoveAt(in.Position); err != nil {
		g.Unlock()
		return VoteResult{}, err
	}
	g.Unlock()

	log := logger.ForGuild(in.GuildID)
	log.Info().Msgf("skipped %q at position %d (forced=%t)", target.Track.Title, in.Position, forced)
	c.publish(events)
	return result, nil
}

// RequiredVotes returns the votes needed to skip with members in the channel, the bot included.
func (c *Coordinator) RequiredVotes(members int) int {
	if members <= 1 {
		return 0
	}
	return (members - 1) / c.config.VoteDivisor
}

// ClearQueue empties the guild's queue. The current track keeps playing.
// Returns the number of tracks removed.
func (c *Coordinator) ClearQueue(guildID string) int {
	g, ok := c.guilds.Lookup(guildID)
	if !ok {
		return 0
	}
	g.Lock()
	removed := g.Setlist.Clear()
	g.Unlock()

	log := logger.ForGuild(guildID)
	log.Info().Msgf("cleared %d queued track(s)", len(removed))
	return len(removed)
}

// IdleTimeoutCheck closes the voice connection once the guild has been idle for the grace
// period. It re-validates the setlist, so a stale check is a no-op.
func (c *Coordinator) IdleTimeoutCheck(guildID string) {
	g, ok := c.guilds.Lookup(guildID)
	if !ok {
		return
	}

	g.LockJoin()
	defer g.UnlockJoin()

	g.Lock()
	if !g.Setlist.IsEmpty() {
		g.Unlock()
		return
	}
	since, idle := g.Setlist.IdleSince()
	if !idle {
		g.Unlock()
		return
	}
	if c.now().Sub(since) < c.config.IdleTimeout {
		g.Unlock()
		return
	}

	player := g.Player
	g.Player = nil
	g.Setlist.ClearIdle()
	g.StopIdleTimer()
	g.Unlock()

	log := logger.ForGuild(guildID)
	channelID := ""
	if player != nil {
		channelID = player.ChannelID()
		if err := player.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("failed to disconnect from voice")
		}
	}
	log.Info().Msgf("idle since %s, left voice channel", since.Format(time.TimeOnly))

	c.publish([]Event{{
		Type:      EventDisconnected,
		GuildID:   guildID,
		ChannelID: channelID,
		State:     StateIdle,
	}})
}

// QueueView renders the guild's setlist.
func (c *Coordinator) QueueView(guildID string) (view.QueueView, error) {
	g, ok := c.guilds.Lookup(guildID)
	if !ok {
		return view.QueueView{}, ErrNotPlaying
	}
	g.Lock()
	defer g.Unlock()

	qv, ok := view.BuildQueueView(g.Setlist, c.config.QueueViewBudget)
	if !ok {
		return view.QueueView{}, ErrNotPlaying
	}
	return qv, nil
}

// SetVolume changes the playback volume. An empty request reports the current volume.
func (c *Coordinator) SetVolume(guildID, requested string) (VolumeReport, error) {
	g, ok := c.guilds.Lookup(guildID)
	if !ok {
		return VolumeReport{}, ErrNotPlaying
	}
	g.Lock()
	defer g.Unlock()

	if _, playing := g.Setlist.Current(); !playing || g.Player == nil {
		return VolumeReport{}, ErrNotPlaying
	}

	gain := g.Player.Gain()
	if strings.TrimSpace(requested) == "" {
		display, err := volume.ToDisplay(gain)
		if err != nil {
			return VolumeReport{}, err
		}
		return VolumeReport{Display: display}, nil
	}

	value, relative, err := volume.ParseRequest(requested)
	if err != nil {
		return VolumeReport{}, err
	}
	change, err := volume.ApplyChange(gain, value, relative)
	if err != nil {
		return VolumeReport{}, err
	}
	g.Player.SetGain(change.Gain)

	log := logger.ForGuild(guildID)
	log.Debug().Msgf("volume %d (%+d), gain %.1f", change.Display, change.Diff, change.Gain)
	return VolumeReport{
		Display: change.Display,
		Diff:    change.Diff,
		Changed: true,
	}, nil
}

// State returns the guild's playback state.
func (c *Coordinator) State(guildID string) State {
	g, ok := c.guilds.Lookup(guildID)
	if !ok {
		return StateIdle
	}
	g.Lock()
	defer g.Unlock()
	return c.stateLocked(g)
}

func (c *Coordinator) stateLocked(g *guild.State) State {
	if g.Player == nil {
		return StateIdle
	}
	if _, playing := g.Setlist.Current(); playing {
		return StatePlaying
	}
	if _, idle := g.Setlist.IdleSince(); idle {
		return StateIdlePendingDisconnect
	}
	return StateIdle
}

// Close stops the dispatcher and leaves every voice channel.
func (c *Coordinator) Close() {
	c.cancel()
	<-c.done
	<-c.delivered

	for _, g := range c.guilds.All() {
		g.Lock()
		g.StopIdleTimer()
		player := g.Player
		g.Player = nil
		g.Setlist.Clear()
		g.Setlist.SetCurrent(nil)
		g.Setlist.ClearIdle()
		g.Unlock()

		if player == nil {
			continue
		}
		player.Pause()
		if err := player.Disconnect(); err != nil {
			log := logger.ForGuild(g.ID)
			log.Warn().Err(err).Msg("failed to disconnect from voice")
		}
	}
}

// publish queues events for delivery. It never waits on the publisher.
func (c *Coordinator) publish(events []Event) {
	for _, e := range events {
		select {
		case c.events <- e:
		case <-c.ctx.Done():
		default:
			log := logger.ForGuild(e.GuildID)
			log.Warn().Msgf("event queue full, dropping %s", e.Type)
		}
	}
}

// deliver hands queued events to the publisher in order until the coordinator is closed.
func (c *Coordinator) deliver() {
	defer close(c.delivered)
	for {
		select {
		case <-c.ctx.Done():
			return
		case e := <-c.events:
			c.publisher.Publish(e)
		}
	}
}
