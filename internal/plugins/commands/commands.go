// Package commands holds the built-in chat commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Author is the author tag every built-in command registers under
const Author = "IRFAN"

// Options are the dependencies shared by the built-in commands
type Options struct {
	// Intn returns a number in [0, n); defaults to math/rand
	Intn  func(n int) int
	Clock clockwork.Clock
	// BannerURL is shown on the game center card when set
	BannerURL string
}

func (o Options) withDefaults() Options {
	if o.Intn == nil {
		o.Intn = rand.IntN
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// All returns every built-in command
func All(opts Options) []plugin.Command {
	opts = opts.withDefaults()
	return []plugin.Command{
		newBalance(opts),
		newDice(opts),
		newSlot(opts),
		newGames(opts),
		newPing(opts),
		newSetBalance(opts),
		newUID(opts),
	}
}

var printer = message.NewPrinter(language.English)

// grouped formats n with thousands separators
func grouped(n int64) string {
	return printer.Sprintf("%d", n)
}

func money(c plugin.Context, n int64) string {
	return fmt.Sprintf("%d%s", n, c.Settings().CurrencySymbol)
}

func reply(ctx context.Context, c plugin.Context, format string, v ...any) {
	c.Reply(ctx, messenger.Text(fmt.Sprintf(format, v...)))
}

func replyInsufficient(ctx context.Context, c plugin.Context, funds *ledger.FundsError) {
	reply(ctx, c, "❌ Insufficient balance!\n\nYour balance: %s\nRequired: %s",
		money(c, funds.Balance), money(c, funds.Requested))
}

// parseAmount reads a positive integer amount
func parseAmount(raw string) (int64, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// wager takes bet from the user. It replies and returns false when the bet
// can't be covered; other ledger errors are returned to the engine.
func wager(ctx context.Context, c plugin.Context, bet int64) (*ledger.Receipt, bool, error) {
	receipt, err := c.Ledger().Debit(ctx, c.SenderID(), bet)
	var funds *ledger.FundsError
	switch {
	case errors.As(err, &funds):
		replyInsufficient(ctx, c, funds)
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return receipt, true, nil
}
