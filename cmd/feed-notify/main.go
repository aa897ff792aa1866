package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fvckgrimm/discord-feed-notify/api/twitch"
	"github.com/fvckgrimm/discord-feed-notify/api/youtube"
	"github.com/fvckgrimm/discord-feed-notify/internal/bot"
	"github.com/fvckgrimm/discord-feed-notify/internal/config"
	"github.com/fvckgrimm/discord-feed-notify/internal/database"
	"github.com/fvckgrimm/discord-feed-notify/internal/metrics"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"github.com/fvckgrimm/discord-feed-notify/internal/notify"
	"github.com/fvckgrimm/discord-feed-notify/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseType, cfg.GetDatabaseConnectionString())
	if err != nil {
		return err
	}
	defer database.Close(db)
	repo := database.NewRepository(db)

	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		return err
	}
	tw := twitch.NewClient(cfg.TwitchClientID, twitch.NewAppTokenSource(cfg.TwitchClientID, cfg.TwitchClientSecret))

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(prometheus.DefaultRegisterer)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, prometheus.DefaultGatherer); err != nil {
				slog.Error("metrics server stopped", slog.Any("err", err))
			}
		}()
	}

	discordBot, err := bot.New(cfg, repo, yt, tw)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(discordBot.Session)

	videos := &poller.Reconciler[string]{
		Platform:      models.PlatformYouTube,
		Fetcher:       yt,
		Store:         database.VideoStateStore{Repo: repo},
		Subscriptions: repo,
		Announcer:     notify.VideoAnnouncer{Channels: yt},
		Dispatcher:    dispatcher,
		ShouldNotify:  poller.NotifyOnUpload,
		KeepGoing:     cfg.ContinueOnFetchError,
		Metrics:       m,
	}
	streams := &poller.Reconciler[bool]{
		Platform:      models.PlatformTwitch,
		Fetcher:       tw,
		Store:         database.LiveStateStore{Repo: repo},
		Subscriptions: repo,
		Announcer:     notify.LiveAnnouncer{Users: tw},
		Dispatcher:    dispatcher,
		ShouldNotify:  poller.NotifyOnLive,
		KeepGoing:     cfg.ContinueOnFetchError,
		Metrics:       m,
	}

	if err := discordBot.Start(ctx); err != nil {
		return err
	}
	defer discordBot.Stop()
	slog.Info("bot started")

	go videos.Run(ctx, cfg.YouTubePollInterval)
	go streams.Run(ctx, cfg.TwitchPollInterval)

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}
