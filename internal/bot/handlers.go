package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/fvckgrimm/discord-feed-notify/api/twitch"
	"github.com/fvckgrimm/discord-feed-notify/api/youtube"
	"github.com/fvckgrimm/discord-feed-notify/internal/embed"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"github.com/fvckgrimm/discord-feed-notify/internal/subscriptions"
)

const (
	interactionTimeout = 30 * time.Second
	sourceCodeURL      = "https://github.com/fvckgrimm/discord-feed-notify"
	listTitle          = "Tracked Channels"
)

const dmNotSupported = "This command is not supported in DMs currently!"

func (b *Bot) ready(s *discordgo.Session, event *discordgo.Ready) {
	slog.Info("bot is ready", slog.String("user", event.User.Username), slog.Int("guilds", len(event.Guilds)))
	b.registerCommands()
	b.updateBotStatus()
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Button presses are handled by the pagination collector.
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmd, err := parseCommand(i.ApplicationCommandData())
	if err != nil {
		slog.Warn("rejected command", slog.String("guild_id", i.GuildID), slog.Any("err", err))
		b.respondToInteraction(s, i, "Unknown command or invalid options.", true)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()
	b.handleCommand(ctx, s, i, cmd)
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cmd command) {
	switch c := cmd.(type) {
	case trackCommand:
		b.handleTrackCommand(ctx, s, i, c)
	case untrackCommand:
		b.handleUntrackCommand(ctx, s, i, c)
	case listCommand:
		b.handleListCommand(ctx, s, i, c)
	case pingCommand:
		b.respondToInteraction(s, i, fmt.Sprintf("Ping: %dms", s.HeartbeatLatency().Milliseconds()), false)
	case helpCommand:
		b.respondWithEmbed(s, i, embed.CreateHelpEmbed(commandDescriptions(), commandOrder(), b.mentions()))
	case sourceCodeCommand:
		b.respondToInteraction(s, i, fmt.Sprintf("[Github repository](%s)", sourceCodeURL), true)
	case uptimeCommand:
		b.respondToInteraction(s, i, uptimeText(b.startedAt, time.Now()), false)
	case usageCommand:
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		b.respondToInteraction(s, i, usageText(&mem, runtime.NumGoroutine(), b.databaseSize()), false)
	default:
		slog.Error("unhandled command", slog.String("command", cmd.commandName()))
	}
}

func (b *Bot) handleTrackCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, c trackCommand) {
	if i.GuildID == "" || i.Member == nil {
		b.respondToInteraction(s, i, dmNotSupported, true)
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	b.logTrackRequest(s, i, c)

	res, err := b.Subs.Track(ctx, subscriptions.TrackRequest{
		GuildID:         i.GuildID,
		Requester:       b.requester(s, i),
		Platform:        c.platform,
		RawID:           c.id,
		TargetChannelID: c.channelID,
		MentionRoleID:   c.roleID,
	})
	if err != nil {
		b.logCommandError(i, cmdTrack, err)
		b.editInteractionResponse(s, i, errorReply(err))
		return
	}

	channelName := res.ChannelName
	if channelName == "" {
		channelName = fmt.Sprintf("<#%s>", c.channelID)
	}
	b.editInteractionResponse(s, i, fmt.Sprintf("Started tracking the channel %s in %s!", res.DisplayName, channelName))
}

func (b *Bot) handleUntrackCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, c untrackCommand) {
	if i.GuildID == "" || i.Member == nil {
		b.respondToInteraction(s, i, dmNotSupported, true)
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	err := b.Subs.Untrack(ctx, subscriptions.UntrackRequest{
		GuildID:   i.GuildID,
		Requester: b.requester(s, i),
		Platform:  c.platform,
		RawID:     c.id,
	})
	if err != nil {
		b.logCommandError(i, cmdUntrack, err)
		b.editInteractionResponse(s, i, errorReply(err))
		return
	}
	b.editInteractionResponse(s, i, "Successfully stopped tracking the channel!")
}

func (b *Bot) handleListCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, c listCommand) {
	if i.GuildID == "" || i.Member == nil {
		b.respondToInteraction(s, i, dmNotSupported, true)
		return
	}

	subs, err := b.Repo.SubscriptionsForGuild(ctx, i.GuildID)
	if err != nil {
		b.logCommandError(i, cmdList, err)
		b.respondToInteraction(s, i, "An error occurred while fetching the tracked channels.", true)
		return
	}
	if len(subs) == 0 {
		b.respondToInteraction(s, i, "No channels are currently being tracked in this guild.", false)
		return
	}

	items := make([]string, 0, len(subs))
	for _, sub := range subs {
		items = append(items, formatSubscription(sub, getRoleName(s, i.GuildID, sub.MentionRole())))
	}

	b.sendPaginatedList(s, i, items, c.page)
}

// errorReply maps a command failure to the message shown to the user.
func errorReply(err error) string {
	switch {
	case errors.Is(err, subscriptions.ErrNotAuthorized):
		return "You do not have the permission to manage channels!"
	case errors.Is(err, subscriptions.ErrNotTextChannel):
		return "The target channel is not a text channel!"
	case errors.Is(err, subscriptions.ErrMissingPermissions):
		return "The bot does not have the required permissions for the target channel!"
	case errors.Is(err, subscriptions.ErrInvalidChannelID):
		return "Invalid YouTube channel ID!"
	case errors.Is(err, subscriptions.ErrNotFound):
		return "Could not find that YouTube channel or Twitch streamer!"
	case errors.Is(err, subscriptions.ErrAlreadyTracked):
		return "This channel is already being tracked!"
	case errors.Is(err, subscriptions.ErrNotTracked):
		return "This channel is not being tracked in this guild!"
	case errors.Is(err, subscriptions.ErrUnknownPlatform):
		return "Unknown platform!"
	}
	return "An error occurred while processing the request! Please report this error!"
}

func formatSubscription(sub models.Subscription, roleName string) string {
	lines := []string{fmt.Sprintf("- **%s** `%s`", sub.Platform.Label(), sub.CanonicalID)}
	if sub.Platform == models.PlatformYouTube {
		lines = append(lines, "  • Link: "+youtube.ChannelURL(sub.CanonicalID))
	}
	lines = append(lines,
		fmt.Sprintf("  • Channel: <#%s>", sub.TargetChannelID),
		"  • Role: "+roleName,
	)
	return strings.Join(lines, "\n")
}

func uptimeText(startedAt, now time.Time) string {
	days := now.Sub(startedAt).Hours() / 24
	return fmt.Sprintf("Uptime: %.2f days (started %s)", days, humanize.RelTime(startedAt, now, "ago", "from now"))
}

func usageText(mem *runtime.MemStats, goroutines int, dbSize int64) string {
	lines := []string{
		fmt.Sprintf("Heap size: %s / %s (%s objects, %d goroutines)",
			humanize.Bytes(mem.HeapAlloc),
			humanize.Bytes(mem.HeapSys),
			humanize.Comma(int64(mem.HeapObjects)),
			goroutines),
	}
	if dbSize >= 0 {
		lines = append(lines, fmt.Sprintf("Database size: %s", humanize.Bytes(uint64(dbSize))))
	}
	return strings.Join(lines, "\n")
}

// databaseSize returns the SQLite file size, or -1 when not applicable.
func (b *Bot) databaseSize() int64 {
	if b.Config == nil || b.Config.DatabaseType == "postgres" {
		return -1
	}
	info, err := os.Stat(b.Config.SqlitePath)
	if err != nil {
		return -1
	}
	return info.Size()
}

func (b *Bot) requester(s *discordgo.Session, i *discordgo.InteractionCreate) subscriptions.Requester {
	r := subscriptions.Requester{Permissions: i.Member.Permissions}
	if i.Member.User != nil {
		r.IsOwner = isGuildOwner(s, i.GuildID, i.Member.User.ID)
	}
	return r
}

func isGuildOwner(s *discordgo.Session, guildID, userID string) bool {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
	}
	return err == nil && guild.OwnerID == userID
}

// logTrackRequest echoes the request to the configured log channel.
func (b *Bot) logTrackRequest(s *discordgo.Session, i *discordgo.InteractionCreate, c trackCommand) {
	if b.Config == nil || b.Config.LogChannelID == "" || i.Member.User == nil {
		return
	}
	_, err := s.ChannelMessageSend(b.Config.LogChannelID, trackLogMessage(time.Now(), i.Member.User.Username, c))
	if err != nil {
		slog.Warn("failed to send log message", slog.Any("err", err))
	}
}

func trackLogMessage(now time.Time, username string, c trackCommand) string {
	return fmt.Sprintf("`[ %s ]` %s:\n`Requested %s Channel:` **%s**\n----------",
		now.Format("2006-01-02 15:04:05"),
		username,
		c.platform.Label(),
		c.id,
	)
}

func (b *Bot) logCommandError(i *discordgo.InteractionCreate, name string, err error) {
	log := slog.Default().With(slog.String("command", name), slog.String("guild_id", i.GuildID))
	switch {
	case errors.Is(err, subscriptions.ErrNotAuthorized),
		errors.Is(err, subscriptions.ErrAlreadyTracked),
		errors.Is(err, subscriptions.ErrNotTracked),
		errors.Is(err, subscriptions.ErrInvalidChannelID):
		log.Debug("command rejected", slog.Any("err", err))
	case errors.Is(err, youtube.ErrFetch), errors.Is(err, twitch.ErrFetch):
		log.Warn("upstream request failed", slog.Any("err", err))
	default:
		log.Info("command failed", slog.Any("err", err))
	}
}

func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Error("error acknowledging interaction", slog.Any("err", err))
		return false
	}
	return true
}

func (b *Bot) respondToInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		slog.Error("error responding to interaction", slog.Any("err", err))
	}
}

func (b *Bot) respondWithEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{e},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("error responding to interaction", slog.Any("err", err))
	}
}

func (b *Bot) editInteractionResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	if err != nil {
		slog.Error("error editing interaction response", slog.Any("err", err))
	}
}

func getRoleName(s *discordgo.Session, guildID, roleID string) string {
	if roleID == "" {
		return "No role"
	}
	role, err := s.State.Role(guildID, roleID)
	if err != nil {
		return "Unknown role"
	}
	return role.Name
}
