package commands

import (
	"context"
	"fmt"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
)

type games struct {
	opts Options
	dice *dice
	slot *slot
}

func newGames(opts Options) plugin.Command {
	g := &games{
		opts: opts,
		dice: &dice{opts: opts},
		slot: &slot{opts: opts},
	}
	return plugin.New(plugin.Descriptor{
		Name:        "games",
		Aliases:     []string{"game", "play"},
		Author:      Author,
		Description: "Open the games menu",
		Cooldown:    3,
	}, g.run, map[string]plugin.HandlerFunc{
		"slot_open": g.slot.open,
		"dice_open": g.dice.open,
	})
}

func (g *games) run(ctx context.Context, c plugin.Context) error {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return err
	}

	c.Reply(ctx, messenger.GenericTemplate(messenger.Element{
		Title:    "🎮 Game Center",
		Subtitle: fmt.Sprintf("Balance: %s | Level: %d", money(c, user.Balance), user.Level),
		ImageURL: g.opts.BannerURL,
		Buttons: []messenger.Button{
			messenger.PayloadButton("🎰 Slot Machine", map[string]any{"type": "slot_open"}),
			messenger.PayloadButton("🎲 Dice Game", map[string]any{"type": "dice_open"}),
		},
	}))
	return nil
}
