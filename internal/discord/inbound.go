package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/pagebot/internal/bot"
	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/logging"
)

// Dispatcher processes translated events
type Dispatcher interface {
	Process(ctx context.Context, ev *event.Event) bot.Outcome
}

// Adapter turns Discord gateway events into engine events
type Adapter struct {
	session    SessionHandler
	dispatcher Dispatcher
	logger     *logging.Logger
	timeout    time.Duration
	removers   []func()
}

// NewAdapter creates a new inbound adapter
func NewAdapter(session SessionHandler, dispatcher Dispatcher, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Adapter{
		session:    session,
		dispatcher: dispatcher,
		logger:     logger.With("component", "discord"),
		timeout:    30 * time.Second,
	}
}

// Start registers the gateway handlers and opens the connection
func (a *Adapter) Start() error {
	a.removers = append(a.removers,
		a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			a.HandleMessage(m)
		}),
		a.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			a.HandleInteraction(i)
		}),
	)
	return a.session.Open()
}

// Stop removes the handlers and closes the connection
func (a *Adapter) Stop() error {
	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil
	return a.session.Close()
}

// HandleMessage dispatches a text message. The bot's own messages are dropped.
func (a *Adapter) HandleMessage(m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.Author.ID == a.session.BotUserID() {
		return
	}

	ev := &event.Event{
		SenderID:    m.Author.ID,
		RecipientID: m.ChannelID,
		Timestamp:   m.Timestamp,
		Message:     &event.Message{ID: m.ID, Text: m.Content},
	}
	for _, att := range m.Attachments {
		ev.Message.Attachments = append(ev.Message.Attachments, event.Attachment{Type: att.ContentType, URL: att.URL})
	}

	a.dispatch(ev)
}

// HandleInteraction dispatches a button press as a postback
func (a *Adapter) HandleInteraction(i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	// Acknowledge first; replies go out as DMs
	if err := a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		a.logger.Warn("Failed to acknowledge interaction from %s: %v", user.ID, err)
	}

	a.dispatch(&event.Event{
		SenderID:    user.ID,
		RecipientID: i.ChannelID,
		Timestamp:   time.Now(),
		Postback:    &event.Postback{Raw: i.MessageComponentData().CustomID},
	})
}

func (a *Adapter) dispatch(ev *event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	outcome := a.dispatcher.Process(ctx, ev)
	a.logger.Debug("Event from %s: %s", ev.SenderID, outcome)
}
