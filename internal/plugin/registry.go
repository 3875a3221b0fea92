package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/types"
)

// Options controls what the Registry accepts
type Options struct {
	TrustedAuthor string
	AllowAliases  bool
	Logger        *logging.Logger
}

// Stats summarises the registry contents
type Stats struct {
	Commands  int
	Aliases   int
	Postbacks int
}

// Registry indexes commands by name and alias and postback handlers by type
type Registry struct {
	opts      Options
	logger    *logging.Logger
	commands  map[string]Command
	aliases   map[string]Command
	postbacks map[string]HandlerFunc
	mu        sync.RWMutex
}

// NewRegistry creates a new plugin registry
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		opts:      opts,
		logger:    logger.With("component", "registry"),
		commands:  make(map[string]Command),
		aliases:   make(map[string]Command),
		postbacks: make(map[string]HandlerFunc),
	}
}

// Register validates and indexes a command. Alias and postback conflicts are
// logged and dropped; the command itself still registers.
func (r *Registry) Register(cmd Command) error {
	desc, err := r.validate(cmd)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(desc.Name)
	if _, exists := r.commands[name]; exists {
		return types.NewBotError(types.ErrDuplicateName, fmt.Sprintf("command %s is already registered", name))
	}
	if _, exists := r.aliases[name]; exists {
		return types.NewBotError(types.ErrDuplicateName, fmt.Sprintf("command name %s is already claimed as an alias", name))
	}
	r.commands[name] = cmd

	if r.opts.AllowAliases {
		for _, alias := range desc.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" || alias == name {
				continue
			}
			if _, taken := r.commands[alias]; taken {
				r.logger.Warn("Alias %s of %s conflicts with a command name, dropped", alias, name)
				continue
			}
			if _, taken := r.aliases[alias]; taken {
				r.logger.Warn("Alias %s of %s is already claimed, dropped", alias, name)
				continue
			}
			r.aliases[alias] = cmd
		}
	}

	if provider, ok := cmd.(PostbackProvider); ok {
		for typ, handler := range provider.Postbacks() {
			if handler == nil {
				r.logger.Warn("Postback handler %s of %s is nil, skipped", typ, name)
				continue
			}
			if _, taken := r.postbacks[typ]; taken {
				r.logger.Warn("Postback type %s of %s is already claimed, dropped", typ, name)
				continue
			}
			r.postbacks[typ] = handler
		}
	}

	return nil
}

func (r *Registry) validate(cmd Command) (Descriptor, error) {
	if cmd == nil {
		return Descriptor{}, types.NewBotError(types.ErrInvalidPlugin, "command is nil")
	}
	if f, ok := cmd.(*Func); ok && (f == nil || f.RunFunc == nil) {
		return Descriptor{}, types.NewBotError(types.ErrInvalidPlugin, "command has no entry point")
	}

	desc := cmd.Descriptor()
	switch {
	case strings.TrimSpace(desc.Name) == "":
		return desc, types.NewBotError(types.ErrInvalidPlugin, "command name is empty")
	case desc.Author != r.opts.TrustedAuthor:
		return desc, types.NewBotError(types.ErrUntrustedAuthor,
			fmt.Sprintf("command %s has untrusted author %q", desc.Name, desc.Author))
	case !desc.Prefix.Valid():
		return desc, types.NewBotError(types.ErrInvalidPlugin,
			fmt.Sprintf("command %s has invalid prefix mode %d", desc.Name, desc.Prefix))
	case desc.Cooldown < 0:
		return desc, types.NewBotError(types.ErrInvalidPlugin,
			fmt.Sprintf("command %s has negative cooldown", desc.Name))
	case desc.Role < 0:
		return desc, types.NewBotError(types.ErrInvalidPlugin,
			fmt.Sprintf("command %s has negative role", desc.Name))
	}
	return desc, nil
}

// Load registers each command, logging failures, and returns how many loaded
func (r *Registry) Load(cmds []Command) int {
	loaded := 0
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			r.logger.LogError(err)
			continue
		}
		loaded++
	}

	stats := r.Stats()
	r.logger.Info("Loaded %d of %d commands (%d aliases, %d postback types)",
		loaded, len(cmds), stats.Aliases, stats.Postbacks)
	return loaded
}

// ResolveCommand looks a command up by name, then alias. Names are indexed
// lowercased; callers fold case when they want case-insensitive matching.
func (r *Registry) ResolveCommand(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	cmd, ok := r.aliases[name]
	return cmd, ok
}

// ResolvePostback looks a postback handler up by its exact type
func (r *Registry) ResolvePostback(typ string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.postbacks[typ]
	return handler, ok
}

// Commands returns each registered command once, sorted by name
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]Command, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, r.commands[name])
	}
	return cmds
}

// Stats returns the number of indexed names, aliases and postback types
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Commands:  len(r.commands),
		Aliases:   len(r.aliases),
		Postbacks: len(r.postbacks),
	}
}
