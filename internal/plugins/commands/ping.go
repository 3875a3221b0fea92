package commands

import (
	"context"

	"github.com/fadedpez/pagebot/internal/plugin"
)

type ping struct {
	opts Options
}

func newPing(opts Options) plugin.Command {
	p := &ping{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "ping",
		Aliases:     []string{"p", "test"},
		Author:      Author,
		Description: "Check if the bot is responsive",
		Cooldown:    2,
	}, p.run, nil)
}

// run reports the delay between the platform timestamp and now
func (p *ping) run(ctx context.Context, c plugin.Context) error {
	var latency int64
	if ts := c.Event().Timestamp; !ts.IsZero() {
		latency = max(p.opts.Clock.Since(ts).Milliseconds(), 0)
	}
	reply(ctx, c, "🏓 Pong!\n⏱️ Latency: %dms\n✅ Bot is operational", latency)
	return nil
}
