package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/api/twitch"
	"github.com/fvckgrimm/discord-feed-notify/api/youtube"
	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannels struct {
	ch  *youtube.Channel
	err error
}

func (f fakeChannels) Channel(context.Context, string) (*youtube.Channel, error) { return f.ch, f.err }

type fakeUsers struct {
	u   *twitch.User
	err error
}

func (f fakeUsers) UserByID(context.Context, string) (*twitch.User, error) { return f.u, f.err }

type sentMessage struct {
	channelID string
	msg       *discordgo.MessageSend
}

type fakeMessenger struct {
	channels map[string]*discordgo.Channel
	sendErr  error
	sent     []sentMessage
}

func (f *fakeMessenger) Channel(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, errors.New("HTTP 404 Not Found")
	}
	return ch, nil
}

func (f *fakeMessenger) ChannelMessageSendComplex(id string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{channelID: id, msg: data})
	return &discordgo.Message{ID: "m1", ChannelID: id}, nil
}

func role(s string) *string { return &s }

func TestVideoAnnouncer(t *testing.T) {
	a := VideoAnnouncer{Channels: fakeChannels{ch: &youtube.Channel{Title: "Some Channel", AvatarURL: "https://img/a.jpg"}}}
	ann := a.Announce(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx", "xyz")

	assert.Equal(t, "Some Channel", ann.DisplayName)
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz", ann.URL)
	assert.Equal(t, "New video uploaded for Some Channel! https://www.youtube.com/watch?v=xyz", ann.Headline)
}

func TestVideoAnnouncerFallsBackToID(t *testing.T) {
	a := VideoAnnouncer{Channels: fakeChannels{err: youtube.ErrNotFound}}
	ann := a.Announce(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx", "xyz")

	assert.Equal(t, "UCxxxxxxxxxxxxxxxxxxxxxx", ann.DisplayName)
	assert.Contains(t, ann.Headline, "xyz")
	assert.Empty(t, ann.AvatarURL)
}

func TestLiveAnnouncer(t *testing.T) {
	a := LiveAnnouncer{Users: fakeUsers{u: &twitch.User{ID: "42", Login: "answer", DisplayName: "Answer"}}}
	ann := a.Announce(context.Background(), "42", true)
	assert.Equal(t, "Answer is now live on Twitch! https://www.twitch.tv/answer", ann.Headline)
	assert.Equal(t, "https://www.twitch.tv/answer", ann.ProfileURL)
}

func TestLiveAnnouncerWithoutLoginOmitsLink(t *testing.T) {
	a := LiveAnnouncer{Users: fakeUsers{err: twitch.ErrNotFound}}
	ann := a.Announce(context.Background(), "42", true)

	assert.Equal(t, "42 is now live on Twitch!", ann.Headline)
	assert.Empty(t, ann.URL)
	assert.Empty(t, ann.ProfileURL)
	assert.NotContains(t, ann.Headline, "twitch.tv/42")

	a = LiveAnnouncer{Users: fakeUsers{u: &twitch.User{ID: "42", DisplayName: "Answer"}}}
	ann = a.Announce(context.Background(), "42", true)
	assert.Equal(t, "Answer is now live on Twitch!", ann.Headline)
	assert.Empty(t, ann.URL)
}

func TestEmbedLinksProfile(t *testing.T) {
	live := Embed(Announcement{Platform: models.PlatformTwitch, DisplayName: "Answer", URL: "https://www.twitch.tv/answer"})
	assert.Equal(t, "https://www.twitch.tv/answer", live.URL)

	live = Embed(Announcement{Platform: models.PlatformTwitch, DisplayName: "Answer", URL: "https://a", ProfileURL: "https://b"})
	assert.Equal(t, "https://b", live.URL)
}

func TestContentMentionPrefix(t *testing.T) {
	ann := Announcement{Headline: "hello"}
	assert.Equal(t, "hello", Content(models.Subscription{}, ann))
	assert.Equal(t, "<@&123> hello", Content(models.Subscription{MentionRoleID: role("123")}, ann))
}

func TestDispatch(t *testing.T) {
	m := &fakeMessenger{channels: map[string]*discordgo.Channel{
		"text":  {ID: "text", Type: discordgo.ChannelTypeGuildText},
		"news":  {ID: "news", Type: discordgo.ChannelTypeGuildNews},
		"voice": {ID: "voice", Type: discordgo.ChannelTypeGuildVoice},
	}}
	d := NewDispatcher(m)
	ann := Announcement{Platform: models.PlatformTwitch, DisplayName: "Answer", URL: "https://www.twitch.tv/answer", Headline: "Answer is live"}

	require.NoError(t, d.Dispatch(context.Background(), models.Subscription{TargetChannelID: "text", MentionRoleID: role("r1")}, ann))
	require.NoError(t, d.Dispatch(context.Background(), models.Subscription{TargetChannelID: "news"}, ann))
	require.Len(t, m.sent, 2)

	first := m.sent[0].msg
	assert.Equal(t, "<@&r1> Answer is live", first.Content)
	assert.Equal(t, []string{"r1"}, first.AllowedMentions.Roles)
	require.Len(t, first.Embeds, 1)
	assert.Equal(t, "https://www.twitch.tv/answer", first.Embeds[0].URL)

	assert.Empty(t, m.sent[1].msg.AllowedMentions.Roles)

	err := d.Dispatch(context.Background(), models.Subscription{TargetChannelID: "voice"}, ann)
	assert.ErrorIs(t, err, ErrUnsupportedChannel)

	err = d.Dispatch(context.Background(), models.Subscription{TargetChannelID: "gone"}, ann)
	assert.Error(t, err)
	assert.Len(t, m.sent, 2)
}

func TestDispatchSendFailure(t *testing.T) {
	boom := errors.New("missing access")
	m := &fakeMessenger{
		channels: map[string]*discordgo.Channel{"text": {ID: "text", Type: discordgo.ChannelTypeGuildText}},
		sendErr:  boom,
	}
	err := NewDispatcher(m).Dispatch(context.Background(), models.Subscription{TargetChannelID: "text"}, Announcement{})
	assert.ErrorIs(t, err, boom)
}

func TestUploadEmbed(t *testing.T) {
	e := Embed(Announcement{
		Platform:    models.PlatformYouTube,
		DisplayName: "Some Channel",
		URL:         "https://www.youtube.com/watch?v=xyz",
		ProfileURL:  "https://www.youtube.com/channel/UCx",
		ContentID:   "xyz",
	})
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz", e.URL)
	require.NotNil(t, e.Image)
	assert.Contains(t, e.Image.URL, "xyz")
	assert.Nil(t, e.Thumbnail)
}
