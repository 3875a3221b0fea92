package mock

import (
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

// SessionHandler is a mock implementation of discord.SessionHandler
type SessionHandler struct {
	mock.Mock
}

// UserChannelCreate implements discord.SessionHandler
func (s *SessionHandler) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	args := s.Called(recipientID)
	channel, _ := args.Get(0).(*discordgo.Channel)
	return channel, args.Error(1)
}

// ChannelMessageSendComplex implements discord.SessionHandler
func (s *SessionHandler) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := s.Called(channelID, data)
	msg, _ := args.Get(0).(*discordgo.Message)
	return msg, args.Error(1)
}

// InteractionRespond implements discord.SessionHandler
func (s *SessionHandler) InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	args := s.Called(i, r)
	return args.Error(0)
}

// Open implements discord.SessionHandler
func (s *SessionHandler) Open() error {
	args := s.Called()
	return args.Error(0)
}

// Close implements discord.SessionHandler
func (s *SessionHandler) Close() error {
	args := s.Called()
	return args.Error(0)
}

// AddHandler implements discord.SessionHandler
func (s *SessionHandler) AddHandler(handler interface{}) func() {
	args := s.Called(handler)
	remove, _ := args.Get(0).(func())
	if remove == nil {
		return func() {}
	}
	return remove
}

// BotUserID implements discord.SessionHandler
func (s *SessionHandler) BotUserID() string {
	args := s.Called()
	return args.String(0)
}
