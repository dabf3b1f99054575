package notifications

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPublisher posts a line per confirmed receipt to a channel.
type DiscordPublisher struct {
	sender    channelSender
	channelID string
}

func NewDiscordPublisher(botToken, channelID string) (*DiscordPublisher, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordPublisher{sender: session, channelID: channelID}, nil
}

func (p *DiscordPublisher) PublishReceiptCreated(ctx context.Context, event domain.ReceiptCreated) error {
	msg := FormatDiscordMessage(event)
	if _, err := p.sender.ChannelMessageSend(p.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func FormatDiscordMessage(event domain.ReceiptCreated) string {
	title := event.Title
	if title == "" {
		title = "Untitled receipt"
	}
	msg := fmt.Sprintf("🧾 **%s** (#%s)\nAmount: %s\nFrom: %s", title, event.ReceiptID, event.Amount, event.Creator)
	if event.ShareURL != "" {
		msg += "\n" + event.ShareURL
	}
	return msg
}
