package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
)

const slotGame = "slot"

var (
	slotSymbols = []string{"🍒", "🍋", "⭐", "7️⃣", "🔔", "💎"}
	slotBets    = []int64{100, 500, 1000}
)

type slot struct {
	opts Options
}

func newSlot(opts Options) plugin.Command {
	s := &slot{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "slot",
		Aliases:     []string{"slots", "spin"},
		Author:      Author,
		Description: "Play slot machine game",
		Cooldown:    2,
	}, s.open, map[string]plugin.HandlerFunc{
		"slot_spin":  s.spin,
		"slot_stats": s.stats,
	})
}

func (s *slot) open(ctx context.Context, c plugin.Context) error {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}

	buttons := make([]messenger.Button, 0, len(slotBets))
	for _, bet := range slotBets {
		buttons = append(buttons, spinButton(fmt.Sprintf("🎯 Bet %d", bet), bet))
	}
	c.Reply(ctx, messenger.ButtonTemplate(
		fmt.Sprintf("🎰 Slot Machine\n\nBalance: %s\n\nChoose your bet amount:", money(c, user.Balance)),
		buttons...,
	))
	return nil
}

// Multiplier returns the payout multiplier for a spin result
func Multiplier(reels []string) int64 {
	if len(reels) != 3 {
		return 0
	}
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		return 10
	case reels[0] == reels[1] || reels[1] == reels[2]:
		return 3
	case slices.Contains(reels, "7️⃣") && slices.Contains(reels, "💎"):
		return 5
	default:
		return 0
	}
}

func (s *slot) spin(ctx context.Context, c plugin.Context) error {
	bet, ok := c.Payload().Int("bet")
	if !ok || bet <= 0 {
		reply(ctx, c, "❌ Invalid bet amount.")
		return nil
	}

	debit, ok, err := wager(ctx, c, bet)
	if err != nil || !ok {
		return err
	}

	reels := make([]string, 3)
	for i := range reels {
		reels[i] = slotSymbols[s.opts.Intn(len(slotSymbols))]
	}
	multiplier := Multiplier(reels)
	winnings := bet * multiplier

	newBalance := debit.NewBalance
	if winnings > 0 {
		credit, err := c.Ledger().Credit(ctx, c.SenderID(), winnings)
		if err != nil {
			return err
		}
		newBalance = credit.NewBalance
	}

	if err := recordPlay(ctx, c, slotGame, winnings > 0, winnings); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("🎰 Slot Results\n\n")
	fmt.Fprintf(&sb, "[ %s ]\n\n", strings.Join(reels, " | "))
	if winnings > 0 {
		sb.WriteString("🎉 JACKPOT! 🎉\n")
		fmt.Fprintf(&sb, "💰 Won: %s\n", money(c, winnings))
		fmt.Fprintf(&sb, "📈 Multiplier: %dx\n", multiplier)
	} else {
		sb.WriteString("❌ No win this time!\n")
		fmt.Fprintf(&sb, "💸 Bet lost: %s\n", money(c, bet))
	}
	fmt.Fprintf(&sb, "\n💵 New Balance: %s", money(c, newBalance))

	buttons := []messenger.Button{spinButton("🔄 Spin Again", bet)}
	if bet*2 <= newBalance {
		buttons = append(buttons, spinButton(fmt.Sprintf("🎯 Double Bet (%d)", bet*2), bet*2))
	}
	buttons = append(buttons, messenger.PayloadButton("📊 Slot Stats", map[string]any{"type": "slot_stats"}))

	c.Reply(ctx, messenger.ButtonTemplate(sb.String(), buttons...))
	return nil
}

func (s *slot) stats(ctx context.Context, c plugin.Context) error {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}
	reply(ctx, c, "%s", statsMessage(c, "📊 Slot Statistics", "🎰 Total Spins", user.GameStats[slotGame], user.Balance))
	return nil
}

func spinButton(title string, bet int64) messenger.Button {
	return messenger.PayloadButton(title, map[string]any{"type": "slot_spin", "bet": bet})
}
