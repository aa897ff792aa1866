package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/internal/embed"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
)

var ErrUnsupportedChannel = errors.New("target channel is not a text or announcement channel")

// Messenger is the part of *discordgo.Session the dispatcher needs.
type Messenger interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Dispatcher sends one message per subscription. It does not retry.
type Dispatcher struct {
	Session Messenger
}

func NewDispatcher(session Messenger) *Dispatcher {
	return &Dispatcher{Session: session}
}

// Dispatch delivers ann to the subscription's target channel.
func (d *Dispatcher) Dispatch(ctx context.Context, sub models.Subscription, ann Announcement) error {
	channel, err := d.Session.Channel(sub.TargetChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolve channel %s: %w", sub.TargetChannelID, err)
	}
	if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, sub.TargetChannelID)
	}

	_, err = d.Session.ChannelMessageSendComplex(sub.TargetChannelID, Message(sub, ann), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to channel %s: %w", sub.TargetChannelID, err)
	}
	return nil
}

// Message builds the full payload for one subscription. Only the
// subscription's own role may be pinged.
func Message(sub models.Subscription, ann Announcement) *discordgo.MessageSend {
	allowed := &discordgo.MessageAllowedMentions{}
	if role := sub.MentionRole(); role != "" {
		allowed.Roles = []string{role}
	}

	return &discordgo.MessageSend{
		Content:         Content(sub, ann),
		Embeds:          []*discordgo.MessageEmbed{Embed(ann)},
		AllowedMentions: allowed,
	}
}

func Embed(ann Announcement) *discordgo.MessageEmbed {
	profile := ann.ProfileURL
	if profile == "" {
		profile = ann.URL
	}
	switch ann.Platform {
	case models.PlatformYouTube:
		return embed.CreateUploadEmbed(ann.DisplayName, profile, ann.AvatarURL, ann.URL, ann.ContentID)
	default:
		return embed.CreateLiveEmbed(ann.DisplayName, profile, ann.AvatarURL)
	}
}
