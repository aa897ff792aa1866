package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/fvckgrimm/discord-feed-notify/internal/config"
	"github.com/fvckgrimm/discord-feed-notify/internal/database"
	"github.com/fvckgrimm/discord-feed-notify/internal/subscriptions"
)

const statusInterval = 120 * time.Minute

type Bot struct {
	Session *discordgo.Session
	Config  *config.Config
	Repo    *database.Repository
	Subs    *subscriptions.Service

	startedAt time.Time
	ctx       context.Context

	mu              sync.Mutex
	commandMentions map[string]string
}

// New creates the Discord session and the subscription service that backs the
// track and untrack commands. The gateway is not opened until Start.
func New(cfg *config.Config, repo *database.Repository, yt subscriptions.VideoPlatform, tw subscriptions.LivePlatform) (*Bot, error) {
	discord, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	discord.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		Session: discord,
		Config:  cfg,
		Repo:    repo,
		Subs: &subscriptions.Service{
			Store:    repo,
			YouTube:  yt,
			Twitch:   tw,
			Channels: sessionInspector{s: discord},
		},
		startedAt: time.Now(),
		ctx:       context.Background(),
	}

	bot.registerHandlers()

	return bot, nil
}

// Start opens the gateway. Background work stops when ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.Session.Open(); err != nil {
		return err
	}

	go b.updateStatusPeriodically(ctx)

	return nil
}

func (b *Bot) Stop() {
	if err := b.Session.Close(); err != nil {
		slog.Warn("error closing discord session", slog.Any("err", err))
	}
}

func (b *Bot) registerHandlers() {
	b.Session.AddHandler(b.ready)
	b.Session.AddHandler(b.interactionCreate)
	b.Session.AddHandler(b.guildCreate)
	b.Session.AddHandler(b.guildDelete)
}

func (b *Bot) guildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	slog.Debug("guild available", slog.String("guild_id", event.ID), slog.String("name", event.Name))
	b.updateBotStatus()
}

// guildDelete drops the guild's subscriptions when the bot is removed. An
// outage also arrives as a delete, flagged unavailable, and keeps them.
func (b *Bot) guildDelete(s *discordgo.Session, event *discordgo.GuildDelete) {
	log := slog.Default().With(slog.String("guild_id", event.ID))
	if event.Unavailable {
		log.Warn("guild became unavailable")
		return
	}

	removed, err := b.Repo.DeleteGuildSubscriptions(b.ctx, event.ID)
	if err != nil {
		log.Error("failed to delete subscriptions for removed guild", slog.Any("err", err))
	} else {
		log.Info("bot left a server", slog.Int64("subscriptions_removed", removed))
	}
	b.updateBotStatus()
}

func (b *Bot) updateStatusPeriodically(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.updateBotStatus()
		}
	}
}

func (b *Bot) updateBotStatus() {
	b.Session.State.RLock()
	status := presenceText(b.Session.State.Guilds)
	b.Session.State.RUnlock()

	err := b.Session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{
			{
				Name:  status,
				State: status,
				Type:  discordgo.ActivityTypeCustom,
			},
		},
	})
	if err != nil {
		slog.Warn("error updating status", slog.Any("err", err))
	}
}

func presenceText(guilds []*discordgo.Guild) string {
	var members int64
	for _, g := range guilds {
		members += int64(g.MemberCount)
	}
	return fmt.Sprintf("Notifying %s servers [%s members]", humanize.Comma(int64(len(guilds))), humanize.Comma(members))
}

func (b *Bot) mentions() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commandMentions
}
