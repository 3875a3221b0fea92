package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fadedpez/pagebot/internal/cooldown"
	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/fadedpez/pagebot/internal/types"
)

// Outcome is what the engine did with an event
type Outcome int

const (
	Ignored Outcome = iota
	Handled
	CooledDown
	Denied
	Failed
	Stopped
	Rejected
)

var outcomeNames = map[Outcome]string{
	Ignored:    "ignored",
	Handled:    "handled",
	CooledDown: "cooled_down",
	Denied:     "denied",
	Failed:     "failed",
	Stopped:    "stopped",
	Rejected:   "rejected",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// User-facing replies
const (
	failureReply    = "❌ An error occurred while processing your request. Please try again later."
	deniedReply     = "🚫 You don't have permission to use this command."
	cooldownReply   = "⏳ Please wait %d second(s) before using %s again."
	attachmentReply = "📎 Thanks! I received your attachment."
)

// Hook runs after a command or postback was handled
type Hook func(ctx context.Context, c plugin.Context) error

// Recorder receives dispatch metrics
type Recorder interface {
	RecordEvent(kind, outcome string)
	ObserveHandler(handler string, d time.Duration)
	EventStarted()
	EventFinished()
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, string) {}
func (nopRecorder) ObserveHandler(string, time.Duration) {}
func (nopRecorder) EventStarted() {}
func (nopRecorder) EventFinished() {}

// ParseOptions controls how message text becomes a command
type ParseOptions struct {
	Prefix          string
	PrefixEnabled   bool
	CaseInsensitive bool
	LowercaseArgs   bool
}

// EngineOptions configures the Engine
type EngineOptions struct {
	Registry  *plugin.Registry
	Cooldowns cooldown.Tracker
	Builder   *Builder
	Parse     ParseOptions
	Logger    *logging.Logger
	Recorder  Recorder
	// OtherMessage handles messages without text; defaults to an acknowledgement
	OtherMessage plugin.HandlerFunc
}

// Engine routes inbound events to registered handlers
type Engine struct {
	registry     *plugin.Registry
	cooldowns    cooldown.Tracker
	builder      *Builder
	parse        ParseOptions
	logger       *logging.Logger
	recorder     Recorder
	otherMessage plugin.HandlerFunc
	hooks        []Hook

	mu       sync.Mutex
	closing  bool
	inFlight sync.WaitGroup
}

// NewEngine creates a new dispatch engine
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.OtherMessage == nil {
		opts.OtherMessage = acknowledgeAttachment
	}
	return &Engine{
		registry:     opts.Registry,
		cooldowns:    opts.Cooldowns,
		builder:      opts.Builder,
		parse:        opts.Parse,
		logger:       opts.Logger.With("component", "engine"),
		recorder:     opts.Recorder,
		otherMessage: opts.OtherMessage,
	}
}

func acknowledgeAttachment(ctx context.Context, c plugin.Context) error {
	ev := c.Event()
	if ev.Message == nil || len(ev.Message.Attachments) == 0 {
		return nil
	}
	c.Reply(ctx, messenger.Text(attachmentReply))
	return nil
}

// Use appends a post-dispatch hook
func (e *Engine) Use(hook Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// Process dispatches one event. It never returns handler failures; they are
// contained and reported through the outcome.
func (e *Engine) Process(ctx context.Context, ev *event.Event) Outcome {
	if !e.enter() {
		e.recorder.RecordEvent(ev.Kind().String(), Rejected.String())
		return Rejected
	}
	defer e.inFlight.Done()

	e.recorder.EventStarted()
	defer e.recorder.EventFinished()

	outcome := e.dispatch(ctx, ev)
	e.recorder.RecordEvent(ev.Kind().String(), outcome.String())
	return outcome
}

// ProcessBatch dispatches events in order; one failing does not stop the rest
func (e *Engine) ProcessBatch(ctx context.Context, events []*event.Event) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, ev := range events {
		outcomes = append(outcomes, e.Process(ctx, ev))
	}
	return outcomes
}

// Shutdown refuses new events and waits for in-flight ones
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ErrShuttingDown, "events still in flight", ctx.Err())
	}
}

func (e *Engine) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return false
	}
	e.inFlight.Add(1)
	return true
}

func (e *Engine) dispatch(ctx context.Context, ev *event.Event) Outcome {
	switch ev.Kind() {
	case event.KindPostback:
		return e.dispatchPostback(ctx, ev)
	case event.KindMessage:
		if ev.Text() == "" {
			c := e.builder.Build(ev)
			if err := e.invoke(ctx, "other_message", e.otherMessage, c); err != nil {
				e.fail(ctx, c, "other_message", err)
				return Failed
			}
			return Handled
		}
		return e.dispatchMessage(ctx, ev)
	default:
		e.logger.Debug("Ignoring event without message or postback")
		return Ignored
	}
}

func (e *Engine) dispatchMessage(ctx context.Context, ev *event.Event) Outcome {
	text := strings.TrimSpace(ev.Text())
	hasPrefix := e.parse.Prefix != "" && strings.HasPrefix(text, e.parse.Prefix)
	if e.parse.PrefixEnabled && !hasPrefix {
		e.logger.Debug("Message from %s lacks the prefix, ignoring", ev.SenderID)
		return Ignored
	}
	if hasPrefix {
		text = strings.TrimPrefix(text, e.parse.Prefix)
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Ignored
	}
	name, args := fields[0], fields[1:]
	if e.parse.CaseInsensitive {
		name = strings.ToLower(name)
	}
	if e.parse.LowercaseArgs {
		for i := range args {
			args[i] = strings.ToLower(args[i])
		}
	}

	cmd, ok := e.registry.ResolveCommand(name)
	if !ok {
		e.logger.Debug("No command %q for user %s", name, ev.SenderID)
		return Ignored
	}
	desc := cmd.Descriptor()

	// Without a global requirement a command can still demand the prefix
	if desc.Prefix == plugin.PrefixRequired && !hasPrefix {
		e.logger.Debug("Command %s needs the prefix, ignoring message from %s", desc.Name, ev.SenderID)
		return Ignored
	}

	c := e.builder.Build(ev)
	if remaining := e.cooldowns.Remaining(ctx, ev.SenderID, desc); remaining > 0 {
		c.Reply(ctx, messenger.Text(fmt.Sprintf(cooldownReply, cooldown.Seconds(remaining), desc.Name)))
		return CooledDown
	}
	if desc.Role > 0 && !c.IsAdmin() {
		e.logger.Info("User %s denied command %s", ev.SenderID, desc.Name)
		c.Reply(ctx, messenger.Text(deniedReply))
		return Denied
	}

	e.cooldowns.Commit(ctx, ev.SenderID, desc)
	c.args = args
	c.command = strings.ToLower(desc.Name)

	if err := e.invoke(ctx, c.command, cmd.Run, c); err != nil {
		e.fail(ctx, c, c.command, err)
		return Failed
	}

	e.runHooks(ctx, c)
	return Handled
}

func (e *Engine) dispatchPostback(ctx context.Context, ev *event.Event) Outcome {
	payload := ev.Payload()
	typ := payload.Type()
	if typ == "" {
		e.logger.Debug("Postback from %s has no type, ignoring", ev.SenderID)
		return Ignored
	}

	handler, ok := e.registry.ResolvePostback(typ)
	if !ok {
		e.logger.Debug("No postback handler for %q from %s", typ, ev.SenderID)
		return Ignored
	}

	c := e.builder.Build(ev)
	c.payload = payload

	err := e.invoke(ctx, typ, handler, c)
	switch {
	case errors.Is(err, plugin.Stop):
		return Stopped
	case err != nil:
		e.fail(ctx, c, typ, err)
		return Failed
	}

	e.runHooks(ctx, c)
	return Handled
}

// invoke runs fn, turning a panic into an error
func (e *Engine) invoke(ctx context.Context, name string, fn plugin.HandlerFunc, c *Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = types.WrapError(types.ErrHandlerFault, fmt.Sprintf("handler %s panicked", name),
				fmt.Errorf("%v\n%s", r, debug.Stack()))
		}
		e.recorder.ObserveHandler(name, time.Since(start))
	}()

	return fn(ctx, c)
}

func (e *Engine) fail(ctx context.Context, c *Context, name string, err error) {
	e.logger.Error("Handler %s failed for user %s: %v", name, c.SenderID(), err)
	c.Reply(ctx, messenger.Text(failureReply))
}

func (e *Engine) runHooks(ctx context.Context, c *Context) {
	e.mu.Lock()
	hooks := e.hooks
	e.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx, c); err != nil {
			e.logger.Warn("Post-dispatch hook failed for user %s: %v", c.SenderID(), err)
		}
	}
}
