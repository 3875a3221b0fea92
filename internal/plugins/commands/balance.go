package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
)

const historyLimit = 5

type balance struct {
	opts Options
}

func newBalance(opts Options) plugin.Command {
	b := &balance{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "balance",
		Aliases:     []string{"bal", "money", "cash"},
		Author:      Author,
		Description: "Check your balance or transfer money",
		Prefix:      plugin.PrefixOptional,
		Cooldown:    5,
	}, b.run, nil)
}

func (b *balance) run(ctx context.Context, c plugin.Context) error {
	args := c.Args()
	switch {
	case len(args) >= 3 && strings.EqualFold(args[0], "transfer"):
		return b.transfer(ctx, c, args[1], args[2])
	case len(args) >= 1 && strings.EqualFold(args[0], "history"):
		return b.history(ctx, c)
	}

	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("💰 Your Balance\n\n")
	fmt.Fprintf(&sb, "💵 Cash: %s\n", money(c, user.Balance))
	fmt.Fprintf(&sb, "📈 Level: %d\n", user.Level)
	fmt.Fprintf(&sb, "⭐ Experience: %d\n", user.Experience)
	if equipped := user.EquippedItems(); len(equipped) > 0 {
		fmt.Fprintf(&sb, "\n🎒 Equipped Items: %d\n", len(equipped))
	}
	if user.LastTransaction != nil {
		fmt.Fprintf(&sb, "\n📅 Last Transaction: %s\n", user.LastTransaction.Timestamp.Format("2006-01-02"))
	}
	sb.WriteString("\n💡 Use: balance transfer [user_id] [amount] to send money")

	reply(ctx, c, "%s", sb.String())
	return nil
}

func (b *balance) transfer(ctx context.Context, c plugin.Context, toUserID, rawAmount string) error {
	amount, ok := parseAmount(rawAmount)
	if !ok {
		reply(ctx, c, "❌ Invalid amount. Please enter a positive number.")
		return nil
	}
	if limit := c.Settings().MaxTransfer; limit > 0 && amount > limit {
		reply(ctx, c, "❌ Maximum transfer amount is %s.", grouped(limit))
		return nil
	}

	receipt, err := c.Ledger().Transfer(ctx, c.SenderID(), toUserID, amount)
	var (
		funds       *ledger.FundsError
		transferErr *ledger.TransferError
	)
	switch {
	case errors.Is(err, ledger.ErrSelfTransfer):
		reply(ctx, c, "❌ You can't transfer money to yourself.")
		return nil
	case errors.As(err, &funds):
		reply(ctx, c, "❌ Transfer failed: insufficient balance\n\nYour balance: %s", money(c, funds.Balance))
		return nil
	case errors.As(err, &transferErr):
		if transferErr.Compensated {
			reply(ctx, c, "❌ Transfer failed and your money was returned. Please try again later.")
			return nil
		}
		return err
	case err != nil:
		return err
	}

	reply(ctx, c, "✅ Transfer successful!\n\n💰 Sent: %s\n📤 To: %s\n📊 Your new balance: %s",
		money(c, amount), toUserID, money(c, receipt.From.NewBalance))
	return nil
}

func (b *balance) history(ctx context.Context, c plugin.Context) error {
	txs, err := c.Ledger().History(ctx, c.SenderID(), historyLimit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		reply(ctx, c, "📜 No transactions yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("📜 Recent Transactions\n")
	for _, tx := range txs {
		date := tx.Timestamp.Format("2006-01-02 15:04")
		switch {
		case tx.FromUserID == c.SenderID():
			fmt.Fprintf(&sb, "\n📤 %s sent %s to %s", date, money(c, tx.Amount), tx.ToUserID)
		case tx.ToUserID == c.SenderID():
			fmt.Fprintf(&sb, "\n📥 %s received %s from %s", date, money(c, tx.Amount), tx.FromUserID)
		default:
			fmt.Fprintf(&sb, "\n• %s %s %s (balance %s)", date, tx.Type, money(c, tx.Amount), money(c, tx.BalanceAfter))
		}
	}
	reply(ctx, c, "%s", sb.String())
	return nil
}
