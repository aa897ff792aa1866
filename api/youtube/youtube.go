// Package youtube resolves YouTube channels and reads the latest upload of each
// tracked channel through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	channelIDLength = 24
	channelPrefix   = "UC"
	uploadsPrefix   = "UU"

	// maxBatch is the most ids playlists.list accepts in one call.
	maxBatch = 50
)

var (
	ErrNotFound = errors.New("youtube channel not found")
	ErrFetch    = errors.New("youtube fetch failed")
)

// Channel is the display metadata of a YouTube channel.
type Channel struct {
	ID        string
	Title     string
	Handle    string
	AvatarURL string
}

type Client struct {
	svc *yt.Service
}

// NewClient builds a client authenticated with an API key. Extra options are
// appended after the key, so tests can point the client at a fake endpoint.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ValidChannelID reports whether id has the shape of a channel id. It does not
// check that the channel exists.
func ValidChannelID(id string) bool {
	return len(id) == channelIDLength && strings.HasPrefix(id, channelPrefix)
}

// Channel looks up a channel's metadata. Every failure, including transport
// errors, is reported as ErrNotFound.
func (c *Client) Channel(ctx context.Context, id string) (*Channel, error) {
	resp, err := c.svc.Channels.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item := resp.Items[0]
	ch := &Channel{
		ID:     item.Id,
		Title:  item.Snippet.Title,
		Handle: item.Snippet.CustomUrl,
	}
	if th := item.Snippet.Thumbnails; th != nil {
		switch {
		case th.High != nil:
			ch.AvatarURL = th.High.Url
		case th.Default != nil:
			ch.AvatarURL = th.Default.Url
		}
	}
	return ch, nil
}

// BatchSize is the largest id slice FetchStates accepts.
func (c *Client) BatchSize() int { return maxBatch }

// FetchStates returns the latest upload id of each channel, read from the
// thumbnail of the channel's uploads playlist. Channels missing from the
// response are missing from the map.
func (c *Client) FetchStates(ctx context.Context, channelIDs []string) (map[string]string, error) {
	if len(channelIDs) > maxBatch {
		return nil, fmt.Errorf("%w: %d ids exceeds batch size %d", ErrFetch, len(channelIDs), maxBatch)
	}
	states := make(map[string]string, len(channelIDs))
	if len(channelIDs) == 0 {
		return states, nil
	}

	playlistIDs := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		playlistIDs = append(playlistIDs, uploadsPlaylist(id))
	}

	resp, err := c.svc.Playlists.List([]string{"snippet"}).
		Id(playlistIDs...).
		MaxResults(maxBatch).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	for _, pl := range resp.Items {
		if pl.Snippet == nil || pl.Snippet.Thumbnails == nil || pl.Snippet.Thumbnails.Default == nil {
			continue
		}
		videoID := videoIDFromThumbnail(pl.Snippet.Thumbnails.Default.Url)
		if videoID == "" {
			continue
		}
		channelID := pl.Snippet.ChannelId
		if channelID == "" {
			channelID = channelFromPlaylist(pl.Id)
		}
		states[channelID] = videoID
	}
	return states, nil
}

// WatchURL is the public link to a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ChannelURL is the public link to a channel.
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

func uploadsPlaylist(channelID string) string {
	return uploadsPrefix + strings.TrimPrefix(channelID, channelPrefix)
}

func channelFromPlaylist(playlistID string) string {
	return channelPrefix + strings.TrimPrefix(playlistID, uploadsPrefix)
}

// Thumbnail urls look like https://i.ytimg.com/vi/<video id>/default.jpg.
func videoIDFromThumbnail(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) < 5 {
		return ""
	}
	return parts[4]
}
