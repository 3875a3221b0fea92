package commands

import (
	"context"
	"errors"
	"strconv"

	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
)

type setBalance struct {
	opts Options
}

func newSetBalance(opts Options) plugin.Command {
	s := &setBalance{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "setbalance",
		Aliases:     []string{"setbal", "adminmoney"},
		Author:      Author,
		Description: "Admin command to manage user balances",
		Prefix:      plugin.PrefixRequired,
		Cooldown:    0,
		Role:        1,
	}, s.run, nil)
}

func (s *setBalance) run(ctx context.Context, c plugin.Context) error {
	args := c.Args()
	if len(args) < 2 {
		p := c.Settings().Prefix
		reply(ctx, c, "📖 Usage:\n\n1. Set balance: %[1]ssetbalance [user_id] [amount]\n"+
			"2. Add balance: %[1]ssetbalance add [user_id] [amount]\n"+
			"3. Deduct balance: %[1]ssetbalance deduct [user_id] [amount]\n\n"+
			"Example: %[1]ssetbalance add 123456789 1000", p)
		return nil
	}

	action, userID, rawAmount := "set", args[0], args[1]
	if args[0] == "set" || args[0] == "add" || args[0] == "deduct" {
		if len(args) < 3 {
			reply(ctx, c, "❌ Invalid arguments. Provide user ID and amount.")
			return nil
		}
		action, userID, rawAmount = args[0], args[1], args[2]
	}

	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		reply(ctx, c, "❌ Amount must be a number.")
		return nil
	}

	var receipt *ledger.Receipt
	switch action {
	case "set":
		receipt, err = c.Ledger().SetBalance(ctx, userID, amount)
	case "add":
		receipt, err = c.Ledger().Credit(ctx, userID, amount)
	case "deduct":
		receipt, err = c.Ledger().Debit(ctx, userID, amount)
	}

	var funds *ledger.FundsError
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		reply(ctx, c, "❌ Invalid amount for %s.", action)
		return nil
	case errors.As(err, &funds):
		reply(ctx, c, "❌ Failed: insufficient balance\nCurrent balance: %s", money(c, funds.Balance))
		return nil
	case err != nil:
		return err
	}

	switch action {
	case "set":
		reply(ctx, c, "✅ Set balance for %s to %s", userID, money(c, receipt.NewBalance))
	case "add":
		reply(ctx, c, "✅ Added %s to %s\nNew balance: %s", money(c, amount), userID, money(c, receipt.NewBalance))
	case "deduct":
		reply(ctx, c, "✅ Deducted %s from %s\nNew balance: %s", money(c, amount), userID, money(c, receipt.NewBalance))
	}
	return nil
}
