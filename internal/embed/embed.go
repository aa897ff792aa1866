package embed

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	ColorYouTube = 0xff0000
	ColorTwitch  = 0x9146ff
	ColorDefault = 0x03b2f8
)

func CreateUploadEmbed(name, channelURL, avatarURL, videoURL, videoID string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("New video from %s", name),
		URL:         videoURL,
		Color:       ColorYouTube,
		Description: fmt.Sprintf("%s uploaded a new video on YouTube!", name),
		Author: &discordgo.MessageEmbedAuthor{
			URL:     channelURL,
			Name:    name,
			IconURL: avatarURL,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if videoID != "" {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
		}
	}
	if avatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: avatarURL,
		}
	}

	return embed
}

func CreateLiveEmbed(name, channelURL, avatarURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Stream Live!",
		URL:         channelURL,
		Color:       ColorTwitch,
		Description: fmt.Sprintf("%s is now live on Twitch!", name),
		Author: &discordgo.MessageEmbedAuthor{
			URL:     channelURL,
			Name:    name,
			IconURL: avatarURL,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if avatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: avatarURL,
		}
	}

	return embed
}

// CreatePageEmbed renders one page of a list. page is 1-based.
func CreatePageEmbed(title string, items []string, page, perPage, totalPages int) *discordgo.MessageEmbed {
	startIdx := min((page-1)*perPage, len(items))
	endIdx := min(startIdx+perPage, len(items))

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: strings.Join(items[startIdx:endIdx], "\n\n"),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d", page, totalPages),
		},
		Color: ColorDefault,
	}
}

// CreateHelpEmbed lists the registered commands. mentions maps a command name
// to its clickable </name:id> form.
func CreateHelpEmbed(descriptions map[string]string, order []string, mentions map[string]string) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(order))
	for _, name := range order {
		label := "/" + name
		if m, ok := mentions[name]; ok {
			label = m
		}
		lines = append(lines, fmt.Sprintf("%s - %s", label, descriptions[name]))
	}

	return &discordgo.MessageEmbed{
		Title:       "Commands",
		Description: strings.Join(lines, "\n"),
		Color:       ColorDefault,
	}
}
