package commands

import (
	"context"
	"fmt"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
)

const profilePictureURL = "https://graph.facebook.com/%s/picture?type=large&width=500&height=500"

type uid struct {
	opts Options
}

func newUID(opts Options) plugin.Command {
	u := &uid{opts: opts}
	return plugin.New(plugin.Descriptor{
		Name:        "uid",
		Aliases:     []string{"id", "myid"},
		Author:      Author,
		Description: "Get user ID with profile picture",
		Cooldown:    3,
	}, u.run, map[string]plugin.HandlerFunc{
		"copy_uid": u.copy,
	})
}

func (u *uid) run(ctx context.Context, c plugin.Context) error {
	target, owner := c.SenderID(), "Your"
	if args := c.Args(); len(args) > 0 {
		target, owner = args[0], "Their"
	}

	picture := fmt.Sprintf(profilePictureURL, target)
	c.Reply(ctx, messenger.GenericTemplate(messenger.Element{
		Title:    owner + " User ID",
		Subtitle: "ID: " + target,
		ImageURL: picture,
		Buttons: []messenger.Button{
			messenger.URLButton("📸 View Profile Picture", picture),
			messenger.PayloadButton("📋 Copy ID", map[string]any{"type": "copy_uid", "uid": target}),
		},
	}))
	return nil
}

func (u *uid) copy(ctx context.Context, c plugin.Context) error {
	id := c.Payload().String("uid")
	if id == "" {
		id = c.SenderID()
	}
	reply(ctx, c, "📋 User ID: %s\n\nYou can copy this ID from above.", id)
	return nil
}
