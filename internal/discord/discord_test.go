package discord

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/pagebot/internal/bot"
	discordmock "github.com/fadedpez/pagebot/internal/discord/mock"
	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type dispatcherMock struct {
	mock.Mock
}

func (d *dispatcherMock) Process(ctx context.Context, ev *event.Event) bot.Outcome {
	args := d.Called(ev)
	return args.Get(0).(bot.Outcome)
}

type DiscordTestSuite struct {
	suite.Suite
	session    *discordmock.SessionHandler
	dispatcher *dispatcherMock
	messenger  *Messenger
	adapter    *Adapter
}

func TestDiscordSuite(t *testing.T) {
	suite.Run(t, new(DiscordTestSuite))
}

func (s *DiscordTestSuite) SetupTest() {
	s.session = &discordmock.SessionHandler{}
	s.session.Test(s.T())
	s.dispatcher = &dispatcherMock{}
	s.dispatcher.Test(s.T())
	s.messenger = NewMessenger(s.session, nil, nil)
	s.adapter = NewAdapter(s.session, s.dispatcher, nil)
}

func (s *DiscordTestSuite) TestDeliverText() {
	// Setup
	s.session.On("UserChannelCreate", "u1").Return(&discordgo.Channel{ID: "dm1"}, nil)
	s.session.On("ChannelMessageSendComplex", "dm1", &discordgo.MessageSend{Content: "hello"}).
		Return(&discordgo.Message{}, nil)

	// Execute
	err := s.messenger.Deliver(context.Background(), "u1", messenger.Text("hello"))

	// Assert
	s.NoError(err)
	s.session.AssertExpectations(s.T())
}

func (s *DiscordTestSuite) TestDeliverChannelError() {
	s.session.On("UserChannelCreate", "u1").Return(nil, errors.New("forbidden"))

	err := s.messenger.Deliver(context.Background(), "u1", messenger.Text("hello"))

	s.ErrorContains(err, "forbidden")
	s.session.AssertNotCalled(s.T(), "ChannelMessageSendComplex", mock.Anything, mock.Anything)
}

func (s *DiscordTestSuite) TestTemplateRendering() {
	// Setup
	msg := messenger.GenericTemplate(messenger.Element{
		Title:    "Your User ID",
		Subtitle: "ID: u1",
		ImageURL: "https://img",
		Buttons: []messenger.Button{
			messenger.URLButton("View", "https://img"),
			messenger.PostbackButton("Copy", `{"type":"copy_uid"}`),
			messenger.PostbackButton("Too long", strings.Repeat("x", 101)),
		},
	})

	// Execute
	send := s.messenger.toMessageSend(msg)

	// Assert
	s.Require().Len(send.Embeds, 1)
	s.Equal("Your User ID", send.Embeds[0].Title)
	s.Equal("https://img", send.Embeds[0].Image.URL)
	s.Require().Len(send.Components, 1)
	row := send.Components[0].(discordgo.ActionsRow)
	s.Require().Len(row.Components, 2, "oversized payloads are dropped")
	s.Equal(discordgo.LinkButton, row.Components[0].(discordgo.Button).Style)
	s.Equal(`{"type":"copy_uid"}`, row.Components[1].(discordgo.Button).CustomID)
}

func (s *DiscordTestSuite) TestButtonsWrapIntoRows() {
	buttons := make([]messenger.Button, 7)
	for i := range buttons {
		buttons[i] = messenger.PostbackButton("b", "p")
	}

	send := s.messenger.toMessageSend(messenger.ButtonTemplate("pick", buttons...))

	s.Equal("pick", send.Content)
	s.Len(send.Components, 2)
}

func (s *DiscordTestSuite) TestHandleMessage() {
	// Setup
	s.session.On("BotUserID").Return("bot")
	s.dispatcher.On("Process", mock.MatchedBy(func(ev *event.Event) bool {
		return ev.SenderID == "u1" && ev.Text() == "/ping"
	})).Return(bot.Handled).Once()

	// Execute
	s.adapter.HandleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", Content: "/ping", Author: &discordgo.User{ID: "u1"},
	}})
	s.adapter.HandleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "/ping", Author: &discordgo.User{ID: "bot"},
	}})
	s.adapter.HandleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "/ping", Author: &discordgo.User{ID: "other-bot", Bot: true},
	}})

	// Assert
	s.dispatcher.AssertExpectations(s.T())
}

func (s *DiscordTestSuite) TestHandleInteraction() {
	// Setup
	interaction := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionMessageComponent,
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data:   discordgo.MessageComponentInteractionData{CustomID: `{"type":"dice_roll","bet":100}`},
	}}
	s.session.On("InteractionRespond", interaction.Interaction, mock.Anything).Return(nil)
	s.dispatcher.On("Process", mock.MatchedBy(func(ev *event.Event) bool {
		return ev.SenderID == "u1" && ev.Payload().Type() == "dice_roll"
	})).Return(bot.Handled).Once()

	// Execute
	s.adapter.HandleInteraction(interaction)

	// Assert
	s.session.AssertExpectations(s.T())
	s.dispatcher.AssertExpectations(s.T())
}

func (s *DiscordTestSuite) TestStartAndStop() {
	removed := 0
	s.session.On("AddHandler", mock.Anything).Return(func() { removed++ })
	s.session.On("Open").Return(nil)
	s.session.On("Close").Return(nil)

	s.NoError(s.adapter.Start())
	s.NoError(s.adapter.Stop())

	s.Equal(2, removed)
	s.session.AssertExpectations(s.T())
}
