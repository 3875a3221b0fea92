package plugin

import (
	"context"
	"errors"

	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/services/ledger"
)

// PrefixMode overrides the global prefix rule for a single command
type PrefixMode int

const (
	PrefixInherit PrefixMode = iota
	PrefixRequired
	PrefixOptional
)

// Valid reports whether the mode is one of the known values
func (m PrefixMode) Valid() bool {
	return m >= PrefixInherit && m <= PrefixOptional
}

// Descriptor is the metadata a command registers under
type Descriptor struct {
	Name        string
	Aliases     []string
	Author      string
	Description string
	Prefix      PrefixMode
	Cooldown    int // seconds, 0 means unlimited
	Role        int // 0 anyone, >0 admins only
}

// Stop is returned by a postback handler to skip the post-dispatch hooks
var Stop = errors.New("plugin: stop")

// HandlerFunc runs a command or postback for one event
type HandlerFunc func(ctx context.Context, c Context) error

// Command is a registered text command
type Command interface {
	Descriptor() Descriptor
	Run(ctx context.Context, c Context) error
}

// PostbackProvider is implemented by commands that also own postback types
type PostbackProvider interface {
	Postbacks() map[string]HandlerFunc
}

// Settings is the read-only configuration exposed to handlers
type Settings struct {
	Prefix         string
	CurrencySymbol string
	MaxTransfer    int64
	StartBalance   int64
}

// Context is the per-event capability bundle handed to handlers
type Context interface {
	Event() *event.Event
	SenderID() string
	Text() string
	Args() []string
	Command() string
	Payload() event.Payload
	PayloadData() event.Payload

	// GetUser and UpdateUser act on the sender when id is ""
	GetUser(ctx context.Context, id string) (*entities.Account, error)
	UpdateUser(ctx context.Context, id string, patch entities.AccountPatch) (*entities.Account, error)

	// Reply and Send log delivery failures and never retry
	Reply(ctx context.Context, msg messenger.Message)
	Send(ctx context.Context, userID string, msg messenger.Message)

	IsAdmin() bool
	Ledger() ledger.Ledger
	Settings() Settings
}

// Func is a Command built from plain functions
type Func struct {
	Desc     Descriptor
	RunFunc  HandlerFunc
	Handlers map[string]HandlerFunc
}

var (
	_ Command          = (*Func)(nil)
	_ PostbackProvider = (*Func)(nil)
)

// New creates a Func command
func New(desc Descriptor, run HandlerFunc, postbacks map[string]HandlerFunc) *Func {
	return &Func{Desc: desc, RunFunc: run, Handlers: postbacks}
}

func (f *Func) Descriptor() Descriptor { return f.Desc }

func (f *Func) Run(ctx context.Context, c Context) error {
	return f.RunFunc(ctx, c)
}

func (f *Func) Postbacks() map[string]HandlerFunc { return f.Handlers }
