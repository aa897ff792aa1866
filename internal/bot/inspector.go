package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// sessionInspector answers channel checks from the state cache, falling back
// to REST.
type sessionInspector struct {
	s *discordgo.Session
}

func (si sessionInspector) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := si.s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return si.s.Channel(channelID, discordgo.WithContext(ctx))
}

func (si sessionInspector) BotPermissions(ctx context.Context, channelID string) (int64, error) {
	return si.s.UserChannelPermissions(si.s.State.User.ID, channelID, discordgo.WithContext(ctx))
}
