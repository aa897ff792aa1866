// Package notify builds announcements for changed identities and delivers them
// to subscribed Discord channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fvckgrimm/discord-feed-notify/api/twitch"
	"github.com/fvckgrimm/discord-feed-notify/api/youtube"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
)

// Announcement is what every subscriber of one changed identity receives.
// It is built once per change and shared across subscriptions.
type Announcement struct {
	Platform    models.Platform
	CanonicalID string
	DisplayName string
	// URL points at the new content: the video for uploads, the channel for
	// streams. It is empty when the streamer's login is unknown.
	URL        string
	ProfileURL string
	AvatarURL  string
	// ContentID is the upload id for videos, empty for streams.
	ContentID string
	Headline  string
}

// ChannelLookup fetches YouTube channel metadata.
type ChannelLookup interface {
	Channel(ctx context.Context, id string) (*youtube.Channel, error)
}

// VideoAnnouncer announces new uploads.
type VideoAnnouncer struct {
	Channels ChannelLookup
}

func (a VideoAnnouncer) Announce(ctx context.Context, channelID, videoID string) Announcement {
	ann := Announcement{
		Platform:    models.PlatformYouTube,
		CanonicalID: channelID,
		DisplayName: channelID,
		URL:         youtube.WatchURL(videoID),
		ProfileURL:  youtube.ChannelURL(channelID),
		ContentID:   videoID,
	}

	if a.Channels != nil {
		ch, err := a.Channels.Channel(ctx, channelID)
		if err != nil {
			slog.Warn("channel metadata unavailable, announcing by id",
				slog.String("platform", string(models.PlatformYouTube)),
				slog.String("channel_id", channelID),
				slog.Any("err", err))
		} else {
			if ch.Title != "" {
				ann.DisplayName = ch.Title
			}
			ann.AvatarURL = ch.AvatarURL
		}
	}

	ann.Headline = fmt.Sprintf("New video uploaded for %s! %s", ann.DisplayName, ann.URL)
	return ann
}

// UserLookup fetches Twitch user metadata.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (*twitch.User, error)
}

// LiveAnnouncer announces streams going live.
type LiveAnnouncer struct {
	Users UserLookup
}

func (a LiveAnnouncer) Announce(ctx context.Context, userID string, _ bool) Announcement {
	ann := Announcement{
		Platform:    models.PlatformTwitch,
		CanonicalID: userID,
		DisplayName: userID,
	}

	if a.Users != nil {
		u, err := a.Users.UserByID(ctx, userID)
		if err != nil {
			slog.Warn("user metadata unavailable, announcing by id",
				slog.String("platform", string(models.PlatformTwitch)),
				slog.String("user_id", userID),
				slog.Any("err", err))
		} else {
			if u.DisplayName != "" {
				ann.DisplayName = u.DisplayName
			}
			if u.Login != "" {
				ann.URL = twitch.ChannelURL(u.Login)
			}
			ann.AvatarURL = u.ProfileImageURL
		}
	}

	// Channel pages are keyed by login; without one there is no link to give.
	ann.ProfileURL = ann.URL
	ann.Headline = fmt.Sprintf("%s is now live on Twitch!", ann.DisplayName)
	if ann.URL != "" {
		ann.Headline += " " + ann.URL
	}
	return ann
}

// Content is the plain-text message body for one subscription.
func Content(sub models.Subscription, ann Announcement) string {
	if role := sub.MentionRole(); role != "" {
		return fmt.Sprintf("<@&%s> %s", role, ann.Headline)
	}
	return ann.Headline
}
