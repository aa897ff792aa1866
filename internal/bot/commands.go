package bot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
)

const (
	cmdTrack      = "track"
	cmdUntrack    = "untrack"
	cmdList       = "list"
	cmdPing       = "ping"
	cmdHelp       = "help"
	cmdSourceCode = "sourcecode"
	cmdUptime     = "uptime"
	cmdUsage      = "usage"

	optPlatform = "platform"
	optID       = "user_id"
	optChannel  = "updates_channel"
	optRole     = "role"
	optPage     = "page"
)

var platformChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: models.PlatformYouTube.Label(), Value: string(models.PlatformYouTube)},
	{Name: models.PlatformTwitch.Label(), Value: string(models.PlatformTwitch)},
}

var dmAllowed = false

// commandDefinitions is the full command set, in help order.
var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:         cmdTrack,
		Description:  "Track a channel to get notified when they upload a video or go live!",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optPlatform,
				Description: "Platform the channel is on",
				Required:    true,
				Choices:     platformChoices,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optID,
				Description: "YouTube channel ID (UC...) or Twitch username",
				Required:    true,
			},
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         optChannel,
				Description:  "Channel to receive updates in",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
			},
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        optRole,
				Description: "Role to mention (optional)",
				Required:    false,
			},
		},
	},
	{
		Name:         cmdUntrack,
		Description:  "Stop a channel from being tracked in this guild!",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optPlatform,
				Description: "Platform the channel is on",
				Required:    true,
				Choices:     platformChoices,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optID,
				Description: "YouTube channel ID or Twitch username to stop tracking",
				Required:    true,
			},
		},
	},
	{
		Name:         cmdList,
		Description:  "List the channels tracked in this guild",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        optPage,
				Description: "Page to open",
				Required:    false,
			},
		},
	},
	{Name: cmdPing, Description: "Check the ping of the bot!"},
	{Name: cmdHelp, Description: "Get help on what each command does!"},
	{Name: cmdSourceCode, Description: "Get the link of the app's source code."},
	{Name: cmdUptime, Description: "Check the uptime of the bot!"},
	{Name: cmdUsage, Description: "Check the memory usage of the bot!"},
}

func commandOrder() []string {
	names := make([]string, len(commandDefinitions))
	for i, c := range commandDefinitions {
		names[i] = c.Name
	}
	return names
}

func commandDescriptions() map[string]string {
	desc := make(map[string]string, len(commandDefinitions))
	for _, c := range commandDefinitions {
		desc[c.Name] = c.Description
	}
	return desc
}

// registerCommands overwrites the global command set and remembers the ids
// Discord assigned, for clickable mentions in help.
func (b *Bot) registerCommands() {
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, "", commandDefinitions)
	if err != nil {
		slog.Error("failed to register commands", slog.Any("err", err))
		return
	}

	mentions := make(map[string]string, len(registered))
	for _, c := range registered {
		mentions[c.Name] = "</" + c.Name + ":" + c.ID + ">"
	}

	b.mu.Lock()
	b.commandMentions = mentions
	b.mu.Unlock()
	slog.Info("registered commands", slog.Int("count", len(registered)))
}
