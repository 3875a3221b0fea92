package bot

import (
	"context"
	"slices"

	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
)

// BuilderOptions holds the collaborators every Context shares
type BuilderOptions struct {
	Ledger    ledger.Ledger
	Messenger messenger.Messenger
	Admins    []string
	Settings  plugin.Settings
	Logger    *logging.Logger
}

// Builder creates one Context per inbound event
type Builder struct {
	ledger    ledger.Ledger
	messenger messenger.Messenger
	admins    []string
	settings  plugin.Settings
	logger    *logging.Logger
}

// NewBuilder creates a new context builder
func NewBuilder(opts BuilderOptions) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		ledger:    opts.Ledger,
		messenger: opts.Messenger,
		admins:    slices.Clone(opts.Admins),
		settings:  opts.Settings,
		logger:    logger,
	}
}

// Build wraps ev in a Context. Args, command and payload are attached later
// by the engine.
func (b *Builder) Build(ev *event.Event) *Context {
	return &Context{
		builder: b,
		event:   ev,
		logger:  b.logger.With("user", ev.SenderID),
	}
}

// Context is the capability bundle handed to a handler for one event
type Context struct {
	builder *Builder
	event   *event.Event
	logger  *logging.Logger
	args    []string
	command string
	payload event.Payload
}

var _ plugin.Context = (*Context)(nil)

func (c *Context) Event() *event.Event { return c.event }

func (c *Context) SenderID() string { return c.event.SenderID }

func (c *Context) Text() string { return c.event.Text() }

func (c *Context) Args() []string { return c.args }

func (c *Context) Command() string { return c.command }

// Payload is the postback payload the engine dispatched on
func (c *Context) Payload() event.Payload { return c.payload }

// PayloadData parses the raw postback payload. Invalid JSON comes back as
// {type: raw}; nil when the event carries no postback.
func (c *Context) PayloadData() event.Payload {
	return c.event.Payload()
}

func (c *Context) GetUser(ctx context.Context, id string) (*entities.Account, error) {
	return c.builder.ledger.GetOrCreate(ctx, c.userOrSender(id))
}

func (c *Context) UpdateUser(ctx context.Context, id string, patch entities.AccountPatch) (*entities.Account, error) {
	return c.builder.ledger.Update(ctx, c.userOrSender(id), patch)
}

func (c *Context) Reply(ctx context.Context, msg messenger.Message) {
	c.Send(ctx, c.SenderID(), msg)
}

func (c *Context) Send(ctx context.Context, userID string, msg messenger.Message) {
	if err := c.builder.messenger.Deliver(ctx, userID, msg); err != nil {
		c.logger.Warn("Failed to deliver message to %s: %v", userID, err)
	}
}

func (c *Context) IsAdmin() bool {
	id := c.SenderID()
	return id != "" && slices.Contains(c.builder.admins, id)
}

func (c *Context) Ledger() ledger.Ledger { return c.builder.ledger }

func (c *Context) Settings() plugin.Settings { return c.builder.settings }

func (c *Context) userOrSender(id string) string {
	if id == "" {
		return c.SenderID()
	}
	return id
}
