package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/entities"
)

const (
	diceGame       = "dice"
	defaultBet     = 100
	predictionHigh = "high"
	predictionLow  = "low"
)

var diceFaces = []string{"⚀", "⚁", "⚂", "⚃", "⚄", "⚅"}

type dice struct {
	opts Options
}

func newDice(opts Options) plugin.Command {
	d := &dice{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "dice",
		Aliases:     []string{"roll", "diceroll"},
		Author:      Author,
		Description: "Play dice game",
		Cooldown:    2,
	}, d.open, map[string]plugin.HandlerFunc{
		"dice_menu":  d.menu,
		"dice_roll":  d.roll,
		"dice_stats": d.stats,
	})
}

// open shows the default high/low menu
func (d *dice) open(ctx context.Context, c plugin.Context) error {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}

	c.Reply(ctx, messenger.ButtonTemplate(
		fmt.Sprintf("🎲 Dice Game\n\nBalance: %s\n\nPredict if the roll will be HIGH (4-6) or LOW (1-3):", money(c, user.Balance)),
		rollButton(fmt.Sprintf("⬆️ HIGH (4-6) - Bet %d", defaultBet), defaultBet, predictionHigh),
		rollButton(fmt.Sprintf("⬇️ LOW (1-3) - Bet %d", defaultBet), defaultBet, predictionLow),
		messenger.PayloadButton("🎯 Bet 500", map[string]any{"type": "dice_menu", "bet": 500}),
	))
	return nil
}

func (d *dice) menu(ctx context.Context, c plugin.Context) error {
	bet, ok := c.Payload().Int("bet")
	if !ok || bet <= 0 {
		bet = defaultBet
	}

	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}

	c.Reply(ctx, messenger.ButtonTemplate(
		fmt.Sprintf("🎲 Dice Game - Bet: %s\n\nBalance: %s\n\nPredict if the roll will be HIGH (4-6) or LOW (1-3):",
			money(c, bet), money(c, user.Balance)),
		rollButton("⬆️ HIGH (4-6)", bet, predictionHigh),
		rollButton("⬇️ LOW (1-3)", bet, predictionLow),
	))
	return nil
}

func (d *dice) roll(ctx context.Context, c plugin.Context) error {
	payload := c.Payload()
	bet, ok := payload.Int("bet")
	prediction := payload.String("prediction")
	if !ok || bet <= 0 || (prediction != predictionHigh && prediction != predictionLow) {
		reply(ctx, c, "❌ Invalid dice parameters.")
		return nil
	}

	debit, ok, err := wager(ctx, c, bet)
	if err != nil || !ok {
		return err
	}

	face := d.opts.Intn(len(diceFaces)) + 1
	high := face >= 4
	won := high == (prediction == predictionHigh)

	newBalance := debit.NewBalance
	var winnings int64
	if won {
		winnings = bet * 2
		credit, err := c.Ledger().Credit(ctx, c.SenderID(), winnings)
		if err != nil {
			return err
		}
		newBalance = credit.NewBalance
	}

	if err := recordPlay(ctx, c, diceGame, won, winnings); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("🎲 Dice Roll\n\n")
	fmt.Fprintf(&sb, "Rolled: %s (%d)\n\n", diceFaces[face-1], face)
	fmt.Fprintf(&sb, "Your prediction: %s\n", strings.ToUpper(prediction))
	if won {
		sb.WriteString("✅ CORRECT!\n")
		fmt.Fprintf(&sb, "💰 Won: %s\n", money(c, winnings))
		fmt.Fprintf(&sb, "📈 Profit: %s\n", money(c, winnings-bet))
	} else {
		sb.WriteString("❌ WRONG!\n")
		fmt.Fprintf(&sb, "💸 Bet lost: %s\n", money(c, bet))
	}
	fmt.Fprintf(&sb, "\n💵 New Balance: %s", money(c, newBalance))

	buttons := []messenger.Button{rollButton("🎲 Roll Again", bet, prediction)}
	if bet*2 <= newBalance {
		buttons = append(buttons, messenger.PayloadButton(fmt.Sprintf("🎯 Double Bet (%d)", bet*2),
			map[string]any{"type": "dice_menu", "bet": bet * 2}))
	}
	buttons = append(buttons, messenger.PayloadButton("📊 Dice Stats", map[string]any{"type": "dice_stats"}))

	c.Reply(ctx, messenger.ButtonTemplate(sb.String(), buttons...))
	return nil
}

func (d *dice) stats(ctx context.Context, c plugin.Context) error {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}
	reply(ctx, c, "%s", statsMessage(c, "📊 Dice Statistics", "🎲 Total Rolls", user.GameStats[diceGame], user.Balance))
	return nil
}

func rollButton(title string, bet int64, prediction string) messenger.Button {
	return messenger.PayloadButton(title, map[string]any{"type": "dice_roll", "bet": bet, "prediction": prediction})
}

// recordPlay merges one play into the sender's stats for game
func recordPlay(ctx context.Context, c plugin.Context, game string, won bool, winnings int64) error {
	_, err := c.Ledger().Modify(ctx, c.SenderID(), func(account *entities.Account) entities.AccountPatch {
		return entities.AccountPatch{
			GameStats: map[string]entities.GameStat{game: account.GameStats[game].Record(won, winnings)},
		}
	})
	return err
}

func statsMessage(c plugin.Context, title, playsLabel string, stat entities.GameStat, balance int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", title)
	fmt.Fprintf(&sb, "%s: %d\n", playsLabel, stat.Plays)
	fmt.Fprintf(&sb, "✅ Wins: %d\n", stat.Wins)
	fmt.Fprintf(&sb, "📈 Win Rate: %.1f%%\n", stat.WinRate())
	fmt.Fprintf(&sb, "💰 Max Win: %s\n", money(c, stat.MaxWin))
	fmt.Fprintf(&sb, "💵 Current Balance: %s", money(c, balance))
	return sb.String()
}
