package commands

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fadedpez/pagebot/internal/bot"
	"github.com/fadedpez/pagebot/internal/cooldown"
	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/messenger"
	messengermock "github.com/fadedpez/pagebot/internal/messenger/mock"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
	"github.com/fadedpez/pagebot/pkg/storage/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const adminID = "admin"

type CommandsTestSuite struct {
	suite.Suite
	ctx       context.Context
	clock     *clockwork.FakeClock
	messenger *messengermock.Messenger
	ledger    *ledger.Service
	engine    *bot.Engine
	rolls     []int

	mu   sync.Mutex
	sent []messenger.Message
}

func TestCommandsSuite(t *testing.T) {
	suite.Run(t, new(CommandsTestSuite))
}

func (s *CommandsTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.ledger = ledger.NewService(memory.New(s.clock), ledger.Options{StartBalance: 1000, Clock: s.clock})
	s.rolls = nil
	s.sent = nil

	s.messenger = &messengermock.Messenger{}
	s.messenger.On("Deliver", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sent = append(s.sent, args.Get(2).(messenger.Message))
	})

	registry := plugin.NewRegistry(plugin.Options{TrustedAuthor: Author, AllowAliases: true})
	loaded := registry.Load(All(Options{Intn: s.intn, Clock: s.clock}))
	s.Require().Equal(7, loaded)

	s.engine = bot.NewEngine(bot.EngineOptions{
		Registry:  registry,
		Cooldowns: cooldown.NewMemoryTracker(s.clock),
		Builder: bot.NewBuilder(bot.BuilderOptions{
			Ledger:    s.ledger,
			Messenger: s.messenger,
			Admins:    []string{adminID},
			Settings:  plugin.Settings{Prefix: "/", CurrencySymbol: "💰", MaxTransfer: 1000000, StartBalance: 1000},
		}),
		Parse: bot.ParseOptions{Prefix: "/", PrefixEnabled: true, CaseInsensitive: true},
	})
}

// intn replays queued rolls, then returns 0
func (s *CommandsTestSuite) intn(int) int {
	if len(s.rolls) == 0 {
		return 0
	}
	n := s.rolls[0]
	s.rolls = s.rolls[1:]
	return n
}

func (s *CommandsTestSuite) say(sender, text string) bot.Outcome {
	return s.engine.Process(s.ctx, &event.Event{SenderID: sender, Message: &event.Message{Text: text}})
}

func (s *CommandsTestSuite) press(sender, payload string) bot.Outcome {
	return s.engine.Process(s.ctx, &event.Event{SenderID: sender, Postback: &event.Postback{Raw: payload}})
}

func (s *CommandsTestSuite) last() messenger.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.sent)
	return s.sent[len(s.sent)-1]
}

func (s *CommandsTestSuite) lastText() string {
	msg := s.last()
	if msg.Template != nil {
		return msg.Template.Text
	}
	return msg.Text
}

func (s *CommandsTestSuite) balance(userID string) int64 {
	account, err := s.ledger.GetOrCreate(s.ctx, userID)
	s.Require().NoError(err)
	return account.Balance
}

func (s *CommandsTestSuite) setBalance(userID string, amount int64) {
	_, err := s.ledger.SetBalance(s.ctx, userID, amount)
	s.Require().NoError(err)
}

func (s *CommandsTestSuite) TestBalanceShowsAccount() {
	// Execute
	outcome := s.say("u1", "/bal")

	// Assert
	s.Equal(bot.Handled, outcome)
	s.Equal(bot.Ignored, s.say("u1", "balance"), "plain conversation is not a command")
	s.Contains(s.lastText(), "💵 Cash: 1000💰")
	s.Contains(s.lastText(), "📈 Level: 1")
}

func (s *CommandsTestSuite) TestTransferScenario() {
	// Setup
	s.setBalance("A", 1000)
	s.setBalance("B", 500)

	// Execute
	s.Equal(bot.Handled, s.say("A", "/balance transfer B 300"))

	// Assert
	s.Equal(int64(700), s.balance("A"))
	s.Equal(int64(800), s.balance("B"))
	s.Contains(s.lastText(), "Your new balance: 700💰")

	history, err := s.ledger.History(s.ctx, "B", 10)
	s.Require().NoError(err)
	s.Equal(entities.TransactionTypeTransfer, history[0].Type)
	s.Equal("A", history[0].FromUserID)
}

func (s *CommandsTestSuite) TestTransferRejections() {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "non numeric", text: "/balance transfer B abc", expected: "Invalid amount"},
		{name: "negative", text: "/balance transfer B -5", expected: "Invalid amount"},
		{name: "over cap", text: "/balance transfer B 1000001", expected: "Maximum transfer amount is 1,000,000."},
		{name: "self", text: "/balance transfer A 10", expected: "yourself"},
		{name: "insufficient", text: "/balance transfer B 5000", expected: "insufficient balance"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.clock.Advance(10 * time.Second)
			s.say("A", tc.text)
			s.Contains(s.lastText(), tc.expected)
			s.Equal(int64(1000), s.balance("A"))
		})
	}
}

func (s *CommandsTestSuite) TestBalanceHistory() {
	// Setup
	s.setBalance("A", 1000)
	_, err := s.ledger.Transfer(s.ctx, "A", "B", 25)
	s.Require().NoError(err)

	// Execute
	s.say("A", "/balance history")

	// Assert
	s.Contains(s.lastText(), "sent 25💰 to B")
}

func (s *CommandsTestSuite) TestDiceRollBalanceConsistency() {
	testCases := []struct {
		name     string
		roll     int
		expected int64
		won      bool
	}{
		{name: "high wins", roll: 5, expected: 1100, won: true},
		{name: "low loses", roll: 0, expected: 900, won: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// Setup
			s.setBalance("u1", 1000)
			s.rolls = []int{tc.roll}
			before, err := s.ledger.GetOrCreate(s.ctx, "u1")
			s.Require().NoError(err)

			// Execute
			outcome := s.press("u1", `{"type":"dice_roll","bet":100,"prediction":"high"}`)

			// Assert
			s.Equal(bot.Handled, outcome)
			s.Equal(tc.expected, s.balance("u1"))
			s.Contains(s.lastText(), "New Balance: "+money64(tc.expected))
			after, err := s.ledger.GetOrCreate(s.ctx, "u1")
			s.Require().NoError(err)
			stat := after.GameStats[diceGame]
			s.Equal(before.GameStats[diceGame].Plays+1, stat.Plays)
			if tc.won {
				s.Equal(int64(200), stat.MaxWin)
			}
		})
	}
}

func money64(n int64) string {
	return strconv.FormatInt(n, 10) + "💰"
}

func (s *CommandsTestSuite) TestDiceRollInsufficientFunds() {
	// Setup
	s.setBalance("u1", 50)

	// Execute
	outcome := s.press("u1", `{"type":"dice_roll","bet":100,"prediction":"low"}`)

	// Assert
	s.Equal(bot.Handled, outcome)
	s.Contains(s.lastText(), "Insufficient balance!")
	s.Contains(s.lastText(), "Required: 100💰")
	s.Equal(int64(50), s.balance("u1"))
}

func (s *CommandsTestSuite) TestDiceRollInvalidPayload() {
	s.press("u1", `{"type":"dice_roll","bet":100,"prediction":"sideways"}`)

	s.Equal("❌ Invalid dice parameters.", s.lastText())
	s.Equal(int64(1000), s.balance("u1"))
}

func (s *CommandsTestSuite) TestFractionalBetsRejected() {
	s.press("u1", `{"type":"dice_roll","bet":100.9,"prediction":"high"}`)
	s.Equal("❌ Invalid dice parameters.", s.lastText())

	s.press("u1", `{"type":"slot_spin","bet":100.5}`)
	s.Equal("❌ Invalid bet amount.", s.lastText())

	s.Equal(int64(1000), s.balance("u1"))
}

func (s *CommandsTestSuite) TestDiceMenus() {
	// Execute
	s.say("u1", "/roll")
	open := s.last()
	s.press("u1", `{"type":"dice_menu","bet":500}`)
	menu := s.last()

	// Assert
	s.Require().NotNil(open.Template)
	s.Len(open.Template.Buttons, 3)
	s.Require().NotNil(menu.Template)
	s.Contains(menu.Template.Text, "Bet: 500💰")
	s.JSONEq(`{"type":"dice_roll","bet":500,"prediction":"high"}`, menu.Template.Buttons[0].Payload)
}

func (s *CommandsTestSuite) TestDiceStats() {
	// Setup
	s.rolls = []int{5}
	s.press("u1", `{"type":"dice_roll","bet":100,"prediction":"high"}`)

	// Execute
	s.press("u1", "dice_stats")

	// Assert
	s.Contains(s.lastText(), "🎲 Total Rolls: 1")
	s.Contains(s.lastText(), "📈 Win Rate: 100.0%")
	s.Contains(s.lastText(), "💰 Max Win: 200💰")
}

func (s *CommandsTestSuite) TestSlotMultiplier() {
	testCases := []struct {
		reels    []string
		expected int64
	}{
		{reels: []string{"🍒", "🍒", "🍒"}, expected: 10},
		{reels: []string{"🍒", "🍒", "🍋"}, expected: 3},
		{reels: []string{"🍋", "🍒", "🍒"}, expected: 3},
		{reels: []string{"🍒", "🍋", "🍒"}, expected: 0},
		{reels: []string{"7️⃣", "🍋", "💎"}, expected: 5},
		{reels: []string{"⭐", "🔔", "💎"}, expected: 0},
	}

	for _, tc := range testCases {
		s.Equal(tc.expected, Multiplier(tc.reels), "%v", tc.reels)
	}
}

func (s *CommandsTestSuite) TestSlotSpin() {
	// Setup
	s.rolls = []int{0, 0, 0}

	// Execute
	outcome := s.press("u1", `{"type":"slot_spin","bet":100}`)

	// Assert
	s.Equal(bot.Handled, outcome)
	s.Equal(int64(1900), s.balance("u1"))
	s.Contains(s.lastText(), "[ 🍒 | 🍒 | 🍒 ]")
	s.Contains(s.lastText(), "Multiplier: 10x")

	s.press("u1", "slot_stats")
	s.Contains(s.lastText(), "🎰 Total Spins: 1")
}

func (s *CommandsTestSuite) TestSlotSpinLoses() {
	s.rolls = []int{0, 1, 2}

	s.press("u1", `{"type":"slot_spin","bet":100}`)

	s.Equal(int64(900), s.balance("u1"))
	s.Contains(s.lastText(), "No win this time!")
}

func (s *CommandsTestSuite) TestGameCenter() {
	// Execute
	s.say("u1", "/games")
	center := s.last()
	s.press("u1", `{"type":"slot_open"}`)
	slotMenu := s.last()

	// Assert
	s.Require().NotNil(center.Template)
	s.Equal(messenger.TemplateGeneric, center.Template.Type)
	s.Contains(center.Template.Elements[0].Subtitle, "Balance: 1000💰")
	s.Require().NotNil(slotMenu.Template)
	s.Len(slotMenu.Template.Buttons, 3)
}

func (s *CommandsTestSuite) TestPing() {
	// Setup
	sent := s.clock.Now().Add(-42 * time.Millisecond)

	// Execute
	s.engine.Process(s.ctx, &event.Event{SenderID: "u1", Timestamp: sent, Message: &event.Message{Text: "/p"}})

	// Assert
	s.Equal("🏓 Pong!\n⏱️ Latency: 42ms\n✅ Bot is operational", s.lastText())
}

func (s *CommandsTestSuite) TestSetBalanceAdmin() {
	testCases := []struct {
		text     string
		expected int64
		reply    string
	}{
		{text: "/setbalance 42 500", expected: 500, reply: "Set balance for 42 to 500💰"},
		{text: "/setbalance add 42 250", expected: 750, reply: "New balance: 750💰"},
		{text: "/setbal deduct 42 50", expected: 700, reply: "Deducted 50💰 from 42"},
		{text: "/setbalance deduct 42 5000", expected: 700, reply: "insufficient balance"},
		{text: "/setbalance 42 abc", expected: 700, reply: "Amount must be a number."},
		{text: "/setbalance 42 -1", expected: 700, reply: "Invalid amount"},
	}

	for _, tc := range testCases {
		s.Equal(bot.Handled, s.say(adminID, tc.text), tc.text)
		s.Contains(s.lastText(), tc.reply, tc.text)
		s.Equal(tc.expected, s.balance("42"), tc.text)
	}
}

func (s *CommandsTestSuite) TestSetBalanceUsage() {
	s.say(adminID, "/setbalance")

	s.Contains(s.lastText(), "/setbalance add 123456789 1000")
}

func (s *CommandsTestSuite) TestSetBalanceNonAdminDenied() {
	// Execute
	outcome := s.say("u1", "/bonus add 42 500")
	denied := s.say("u1", "/setbalance add 42 500")

	// Assert
	s.Equal(bot.Ignored, outcome)
	s.Equal(bot.Denied, denied)
	s.Equal(int64(1000), s.balance("42"))
}

func (s *CommandsTestSuite) TestSetBalanceNeedsPrefix() {
	s.Equal(bot.Ignored, s.say(adminID, "setbalance 42 500"))
}

func (s *CommandsTestSuite) TestUID() {
	// Execute
	s.say("u1", "/uid")
	card := s.last()
	s.press("u1", card.Template.Elements[0].Buttons[1].Payload)

	// Assert
	s.Equal("Your User ID", card.Template.Elements[0].Title)
	s.Equal("ID: u1", card.Template.Elements[0].Subtitle)
	s.Contains(card.Template.Elements[0].ImageURL, "graph.facebook.com/u1/picture")
	s.Contains(s.lastText(), "📋 User ID: u1")
}
