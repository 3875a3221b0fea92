package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/messenger"
)

const (
	// maxCustomID is Discord's limit on a component custom ID
	maxCustomID = 100
	// maxRowButtons is how many buttons fit in one action row
	maxRowButtons = 5
)

// Messenger delivers messages as Discord direct messages
type Messenger struct {
	session  SessionHandler
	logger   *logging.Logger
	observer messenger.DeliveryObserver
}

var _ messenger.Messenger = (*Messenger)(nil)

// NewMessenger creates a new Discord messenger
func NewMessenger(session SessionHandler, logger *logging.Logger, observer messenger.DeliveryObserver) *Messenger {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Messenger{
		session:  session,
		logger:   logger.With("component", "discord"),
		observer: observer,
	}
}

// Deliver opens (or reuses) the DM channel with userID and posts msg
func (m *Messenger) Deliver(ctx context.Context, userID string, msg messenger.Message) error {
	err := m.deliver(ctx, userID, msg)
	if m.observer != nil {
		m.observer.RecordDelivery("discord", err)
	}
	return err
}

func (m *Messenger) deliver(ctx context.Context, userID string, msg messenger.Message) error {
	if msg.IsEmpty() {
		return fmt.Errorf("message is empty")
	}

	channel, err := m.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error opening DM with %s: %w", userID, err)
	}

	if _, err := m.session.ChannelMessageSendComplex(channel.ID, m.toMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error sending message to %s: %w", userID, err)
	}
	return nil
}

// toMessageSend renders templates as embeds with button rows
func (m *Messenger) toMessageSend(msg messenger.Message) *discordgo.MessageSend {
	if msg.Template == nil {
		return &discordgo.MessageSend{Content: msg.Text}
	}

	send := &discordgo.MessageSend{Content: msg.Template.Text}
	buttons := msg.Template.Buttons
	for _, e := range msg.Template.Elements {
		embed := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Subtitle,
		}
		if e.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		}
		send.Embeds = append(send.Embeds, embed)
		buttons = append(buttons, e.Buttons...)
	}
	send.Components = m.rows(buttons)
	return send
}

func (m *Messenger) rows(buttons []messenger.Button) []discordgo.MessageComponent {
	var (
		rows    []discordgo.MessageComponent
		current []discordgo.MessageComponent
	)
	for _, b := range buttons {
		component, ok := m.button(b)
		if !ok {
			continue
		}
		current = append(current, component)
		if len(current) == maxRowButtons {
			rows = append(rows, discordgo.ActionsRow{Components: current})
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: current})
	}
	return rows
}

func (m *Messenger) button(b messenger.Button) (discordgo.MessageComponent, bool) {
	switch b.Type {
	case messenger.ButtonURL:
		return discordgo.Button{Label: b.Title, Style: discordgo.LinkButton, URL: b.URL}, true
	case messenger.ButtonPostback:
		if len(b.Payload) > maxCustomID {
			m.logger.Warn("Dropping button %q: payload longer than %d bytes", b.Title, maxCustomID)
			return nil, false
		}
		return discordgo.Button{Label: b.Title, Style: discordgo.PrimaryButton, CustomID: b.Payload}, true
	default:
		return nil, false
	}
}
