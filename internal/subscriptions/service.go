// Package subscriptions validates and applies track/untrack requests coming
// from guild administrators.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/api/twitch"
	"github.com/fvckgrimm/discord-feed-notify/api/youtube"
	"github.com/fvckgrimm/discord-feed-notify/internal/database"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
)

var (
	ErrUnknownPlatform    = errors.New("unknown platform")
	ErrNotAuthorized      = errors.New("requester cannot manage channels in this guild")
	ErrNotTextChannel     = errors.New("target channel is not a text channel")
	ErrMissingPermissions = errors.New("bot lacks required permissions in the target channel")
	ErrInvalidChannelID   = errors.New("invalid YouTube channel id")
	ErrNotFound           = errors.New("channel or streamer not found")
	ErrAlreadyTracked     = errors.New("already tracked in this guild")
	ErrNotTracked         = errors.New("not tracked in this guild")
)

// RequiredBotPermissions must all be granted to the bot in a target channel.
const RequiredBotPermissions int64 = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionSendMessagesInThreads |
	discordgo.PermissionEmbedLinks |
	discordgo.PermissionAttachFiles |
	discordgo.PermissionAddReactions

// Any one of these lets a member manage subscriptions.
const managePermissions int64 = discordgo.PermissionManageChannels |
	discordgo.PermissionAdministrator |
	discordgo.PermissionManageServer

type VideoPlatform interface {
	Channel(ctx context.Context, id string) (*youtube.Channel, error)
	FetchStates(ctx context.Context, ids []string) (map[string]string, error)
}

type LivePlatform interface {
	UserByLogin(ctx context.Context, login string) (*twitch.User, error)
	FetchStates(ctx context.Context, ids []string) (map[string]bool, error)
}

// ChannelInspector reports what the bot can see of a Discord channel.
type ChannelInspector interface {
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	BotPermissions(ctx context.Context, channelID string) (int64, error)
}

type Store interface {
	IdentityExists(ctx context.Context, platform models.Platform, id string) (bool, error)
	SubscriptionExists(ctx context.Context, guildID string, platform models.Platform, id string) (bool, error)
	Subscribe(ctx context.Context, sub models.Subscription, identity models.Identity) error
	Unsubscribe(ctx context.Context, guildID string, platform models.Platform, id string) error
}

// Requester is the guild member issuing a command.
type Requester struct {
	Permissions int64
	IsOwner     bool
}

func (r Requester) CanManage() bool {
	return r.IsOwner || r.Permissions&managePermissions != 0
}

type TrackRequest struct {
	GuildID         string
	Requester       Requester
	Platform        models.Platform
	RawID           string
	TargetChannelID string
	MentionRoleID   string
}

type TrackResult struct {
	CanonicalID string
	DisplayName string
	ChannelName string
	// NewIdentity is set when this request started global tracking.
	NewIdentity bool
}

type UntrackRequest struct {
	GuildID   string
	Requester Requester
	Platform  models.Platform
	RawID     string
}

type Service struct {
	Store    Store
	YouTube  VideoPlatform
	Twitch   LivePlatform
	Channels ChannelInspector
}

type resolved struct {
	id   string
	name string
}

// Track subscribes the guild to an identity. Checks run in order: requester
// authority, target channel, identifier, duplicate. A rejected request leaves
// no rows behind.
func (s *Service) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, req.Platform)
	}
	if !req.Requester.CanManage() {
		return nil, ErrNotAuthorized
	}

	channel, err := s.checkTargetChannel(ctx, req.GuildID, req.TargetChannelID)
	if err != nil {
		return nil, err
	}

	ident, err := s.resolve(ctx, req.Platform, req.RawID)
	if err != nil {
		return nil, err
	}

	exists, err := s.Store.SubscriptionExists(ctx, req.GuildID, req.Platform, ident.id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyTracked
	}

	known, err := s.Store.IdentityExists(ctx, req.Platform, ident.id)
	if err != nil {
		return nil, err
	}
	var identity models.Identity
	if !known {
		identity = s.initialIdentity(ctx, req.Platform, ident.id)
	}

	sub := models.Subscription{
		DestinationID:   req.GuildID,
		Platform:        req.Platform,
		CanonicalID:     ident.id,
		TargetChannelID: req.TargetChannelID,
	}
	if req.MentionRoleID != "" {
		role := req.MentionRoleID
		sub.MentionRoleID = &role
	}

	if err := s.Store.Subscribe(ctx, sub, identity); err != nil {
		if errors.Is(err, database.ErrAlreadySubscribed) {
			return nil, ErrAlreadyTracked
		}
		return nil, fmt.Errorf("store subscription: %w", err)
	}

	slog.Info("guild started tracking",
		slog.String("platform", string(req.Platform)),
		slog.String("guild_id", req.GuildID),
		slog.String("id", ident.id),
		slog.Bool("new_identity", !known))

	return &TrackResult{
		CanonicalID: ident.id,
		DisplayName: ident.name,
		ChannelName: channel.Name,
		NewIdentity: !known,
	}, nil
}

// Untrack removes the guild's subscription. The tracked identity is kept.
func (s *Service) Untrack(ctx context.Context, req UntrackRequest) error {
	if !req.Platform.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, req.Platform)
	}
	if !req.Requester.CanManage() {
		return ErrNotAuthorized
	}

	id := strings.TrimSpace(req.RawID)
	if req.Platform == models.PlatformTwitch {
		// Accept either the login or the numeric id that is stored.
		if u, err := s.Twitch.UserByLogin(ctx, id); err == nil {
			id = u.ID
		}
	}

	if err := s.Store.Unsubscribe(ctx, req.GuildID, req.Platform, id); err != nil {
		if errors.Is(err, database.ErrSubscriptionNotFound) {
			return ErrNotTracked
		}
		return err
	}

	slog.Info("guild stopped tracking",
		slog.String("platform", string(req.Platform)),
		slog.String("guild_id", req.GuildID),
		slog.String("id", id))
	return nil
}

func (s *Service) checkTargetChannel(ctx context.Context, guildID, channelID string) (*discordgo.Channel, error) {
	channel, err := s.Channels.Channel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotTextChannel, err)
	}
	if channel.GuildID != guildID {
		return nil, fmt.Errorf("%w: channel %s belongs to another guild", ErrNotTextChannel, channelID)
	}
	if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
		return nil, ErrNotTextChannel
	}

	perms, err := s.Channels.BotPermissions(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingPermissions, err)
	}
	if perms&RequiredBotPermissions != RequiredBotPermissions {
		return nil, ErrMissingPermissions
	}
	return channel, nil
}

func (s *Service) resolve(ctx context.Context, platform models.Platform, raw string) (resolved, error) {
	raw = strings.TrimSpace(raw)

	switch platform {
	case models.PlatformYouTube:
		if !youtube.ValidChannelID(raw) {
			return resolved{}, ErrInvalidChannelID
		}
		ch, err := s.YouTube.Channel(ctx, raw)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		r := resolved{id: raw, name: ch.Title}
		if ch.ID != "" {
			r.id = ch.ID
		}
		if r.name == "" {
			r.name = r.id
		}
		return r, nil

	case models.PlatformTwitch:
		u, err := s.Twitch.UserByLogin(ctx, raw)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		name := u.DisplayName
		if name == "" {
			name = u.Login
		}
		return resolved{id: u.ID, name: name}, nil
	}
	return resolved{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
}

// initialIdentity records the current upstream state so that the first poll
// only announces changes made after tracking started. If the state cannot be
// read the identity starts empty.
func (s *Service) initialIdentity(ctx context.Context, platform models.Platform, id string) models.Identity {
	log := slog.Default().With(slog.String("platform", string(platform)), slog.String("id", id))

	switch platform {
	case models.PlatformYouTube:
		identity := &models.VideoIdentity{CanonicalID: id}
		states, err := s.YouTube.FetchStates(ctx, []string{id})
		if err != nil {
			log.Warn("could not read initial upload", slog.Any("err", err))
			return identity
		}
		if upload := states[id]; upload != "" {
			identity.LatestUploadID = &upload
		}
		return identity

	default:
		identity := &models.LiveIdentity{CanonicalID: id}
		states, err := s.Twitch.FetchStates(ctx, []string{id})
		if err != nil {
			log.Warn("could not read initial live state", slog.Any("err", err))
			return identity
		}
		identity.IsLive = states[id]
		return identity
	}
}
