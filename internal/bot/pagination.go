package bot

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fvckgrimm/discord-feed-notify/internal/embed"
)

const (
	itemsPerPage      = 5
	paginationTimeout = 5 * time.Minute
)

func totalPages(items int) int {
	return max(1, (items+itemsPerPage-1)/itemsPerPage)
}

func clampPage(page, total int) int {
	return min(max(page, 1), total)
}

// sendPaginatedList responds with one page of items and navigation buttons.
func (b *Bot) sendPaginatedList(s *discordgo.Session, i *discordgo.InteractionCreate, items []string, initialPage int) {
	pages := totalPages(len(items))
	initialPage = clampPage(initialPage, pages)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{createPageEmbed(items, initialPage, pages)},
			Components: createPaginationComponents(initialPage, pages),
		},
	})
	if err != nil {
		slog.Error("error sending paginated list", slog.Any("err", err))
		return
	}
	if pages == 1 {
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		slog.Error("error getting interaction response", slog.Any("err", err))
		return
	}

	b.setupPaginationCollector(s, i.Member.User.ID, msg.ID, i.ChannelID, items, pages)
}

func createPageEmbed(items []string, page, pages int) *discordgo.MessageEmbed {
	return embed.CreatePageEmbed(listTitle, items, page, itemsPerPage, pages)
}

func createPaginationComponents(currentPage, pages int) []discordgo.MessageComponent {
	if pages <= 1 {
		return nil
	}

	firstButton := discordgo.Button{
		Label:    "First",
		Style:    discordgo.SecondaryButton,
		CustomID: "first_page",
		Emoji:    &discordgo.ComponentEmoji{Name: "⏮️"},
		Disabled: currentPage <= 1,
	}
	prevButton := discordgo.Button{
		Label:    "Previous",
		Style:    discordgo.PrimaryButton,
		CustomID: "prev_page",
		Emoji:    &discordgo.ComponentEmoji{Name: "⬅️"},
		Disabled: currentPage <= 1,
	}
	nextButton := discordgo.Button{
		Label:    "Next",
		Style:    discordgo.PrimaryButton,
		CustomID: "next_page",
		Emoji:    &discordgo.ComponentEmoji{Name: "➡️"},
		Disabled: currentPage >= pages,
	}
	lastButton := discordgo.Button{
		Label:    "Last",
		Style:    discordgo.SecondaryButton,
		CustomID: "last_page",
		Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
		Disabled: currentPage >= pages,
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{firstButton, prevButton, nextButton, lastButton},
		},
	}
}

// nextPage returns the page a navigation button leads to.
func nextPage(customID string, current, pages int) (int, bool) {
	switch customID {
	case "first_page":
		return 1, true
	case "prev_page":
		return clampPage(current-1, pages), true
	case "next_page":
		return clampPage(current+1, pages), true
	case "last_page":
		return pages, true
	}
	return 0, false
}

// currentPage reads the page number back from the list embed footer.
func currentPage(msg *discordgo.Message) int {
	page := 1
	if msg != nil && len(msg.Embeds) > 0 && msg.Embeds[0].Footer != nil {
		var total int
		if _, err := fmt.Sscanf(msg.Embeds[0].Footer.Text, "Page %d of %d", &page, &total); err != nil {
			return 1
		}
	}
	return page
}

// setupPaginationCollector handles button presses on one list message until
// the timeout, then strips the buttons.
func (b *Bot) setupPaginationCollector(s *discordgo.Session, userID, messageID, channelID string, items []string, pages int) {
	removeHandler := s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionMessageComponent || i.Message == nil || i.Message.ID != messageID {
			return
		}

		if i.Member == nil || i.Member.User == nil || i.Member.User.ID != userID {
			b.respondToInteraction(s, i, "Only the user who ran the command can use these buttons.", true)
			return
		}

		page, ok := nextPage(i.MessageComponentData().CustomID, currentPage(i.Message), pages)
		if !ok {
			return
		}

		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{createPageEmbed(items, page, pages)},
				Components: createPaginationComponents(page, pages),
			},
		})
		if err != nil {
			slog.Warn("error updating list page", slog.Any("err", err))
		}
	})

	time.AfterFunc(paginationTimeout, func() {
		removeHandler()

		emptyComponents := []discordgo.MessageComponent{}
		_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channelID,
			ID:         messageID,
			Components: &emptyComponents,
		})
		if err != nil {
			slog.Warn("error removing pagination buttons", slog.Any("err", err))
		}
	})
}
