// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	apidiscord "github.com/akira-bot/deejay/internal/api/discord"
	"github.com/akira-bot/deejay/internal/app/filter"
	"github.com/akira-bot/deejay/internal/app/notification"
	"github.com/akira-bot/deejay/internal/app/playback"
	"github.com/akira-bot/deejay/internal/infra/config"
	"github.com/akira-bot/deejay/internal/infra/discord"
	"github.com/akira-bot/deejay/internal/infra/logger"
	"github.com/akira-bot/deejay/internal/infra/youtube"
)

var (
	app        = kingpin.New("deejay", "Discord voice channel music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/deejay.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run wires the bot and blocks until a shutdown signal arrives.
func run(cfg *config.Config) error {
	chain, err := buildFilterChain(cfg)
	if err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver, err := youtube.New(ctx, youtube.Config{
		APIKey:     cfg.YouTube.APIKey,
		Proxy:      cfg.YouTube.Proxy,
		Timeout:    time.Duration(cfg.YouTube.TimeoutSec) * time.Second,
		MaxRetries: cfg.YouTube.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create YouTube client: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}

	connector := discord.NewConnector(session, discord.AudioConfig{
		Bitrate:         cfg.Audio.Bitrate,
		FrameDuration:   cfg.Audio.FrameDuration,
		BufferedFrames:  cfg.Audio.BufferedFrames,
		Application:     cfg.Audio.Application,
		ConstantBitrate: cfg.Audio.ConstantBitrate,
	})

	notifications := notification.NewManager()
	defer notifications.Close()

	coordinator := playback.NewCoordinator(resolver, connector, playback.Config{
		IdleTimeout:     cfg.Playback.IdleTimeout(),
		VoteDivisor:     cfg.Playback.VoteDivisor,
		SummaryTitles:   cfg.Playback.SummaryTitles,
		QueueViewBudget: cfg.Playback.QueueViewBudget,
	}, playback.WithFilters(chain), playback.WithPublisher(notifications))

	handler := apidiscord.NewHandler(coordinator, cfg, apidiscord.SessionVoiceLookup(session))
	bot := apidiscord.NewBot(ctx, session, handler)
	notifications.Subscribe(bot)

	if err := session.Open(); err != nil {
		coordinator.Close()
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	zlog.Info().Msg("Bot is running")

	executeHooks(cfg.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	// Stop command handling before the coordinator disconnects voice
	cancel()
	coordinator.Close()
	if err := session.Close(); err != nil {
		zlog.Error().Msgf("Failed to close Discord session: %v", err)
	}

	zlog.Info().Msg("Bot stopped")

	executeHooks(cfg.Hooks.OnStopped, "on_stopped")

	return nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	names := lo.Keys(registry)
	sort.Strings(names)
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// buildFilterChain creates and configures the enabled filters in name order.
func buildFilterChain(cfg *config.Config) (*filter.Chain, error) {
	registry := filter.GetRegistered()
	chain := filter.NewChain()

	names := lo.Keys(cfg.Filters)
	sort.Strings(names)
	for _, name := range names {
		filterCfg := cfg.Filters[name]
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[name]
		if !exists {
			return nil, fmt.Errorf("unknown filter %s", name)
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		chain.Add(f)
		zlog.Info().Msgf("Filter enabled: %s", name)
	}

	return chain, nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
