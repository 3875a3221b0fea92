package cooldown

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/jonboulle/clockwork"
)

// expiryGrace keeps an entry alive slightly past its cooldown
const expiryGrace = time.Second

// Tracker limits how often a user may invoke a command
type Tracker interface {
	// Remaining is how long until the user may run the command again
	Remaining(ctx context.Context, userID string, desc plugin.Descriptor) time.Duration
	IsOnCooldown(ctx context.Context, userID string, desc plugin.Descriptor) bool
	// Commit records an invocation now
	Commit(ctx context.Context, userID string, desc plugin.Descriptor)
}

// Duration converts the descriptor's cooldown to a time.Duration
func Duration(desc plugin.Descriptor) time.Duration {
	return time.Duration(desc.Cooldown) * time.Second
}

// Seconds rounds a remaining duration up to whole seconds
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func remaining(cooldown, elapsed time.Duration) time.Duration {
	if cooldown <= 0 || elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

type entry struct {
	at    time.Time
	timer clockwork.Timer
}

// MemoryTracker keeps cooldowns in process. Entries remove themselves one
// second after their cooldown ends.
type MemoryTracker struct {
	clock   clockwork.Clock
	entries map[string]entry
	mu      sync.Mutex
}

var _ Tracker = (*MemoryTracker)(nil)

// NewMemoryTracker creates a new in-process tracker
func NewMemoryTracker(clock clockwork.Clock) *MemoryTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryTracker{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func memoryKey(userID string, desc plugin.Descriptor) string {
	return userID + ":" + strings.ToLower(desc.Name)
}

func (t *MemoryTracker) Remaining(_ context.Context, userID string, desc plugin.Descriptor) time.Duration {
	cd := Duration(desc)
	if cd <= 0 {
		return 0
	}

	t.mu.Lock()
	e, ok := t.entries[memoryKey(userID, desc)]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return remaining(cd, t.clock.Since(e.at))
}

func (t *MemoryTracker) IsOnCooldown(ctx context.Context, userID string, desc plugin.Descriptor) bool {
	return t.Remaining(ctx, userID, desc) > 0
}

func (t *MemoryTracker) Commit(_ context.Context, userID string, desc plugin.Descriptor) {
	cd := Duration(desc)
	if cd <= 0 {
		return
	}

	key := memoryKey(userID, desc)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[key]; ok {
		old.timer.Stop()
	}
	timer := t.clock.AfterFunc(cd+expiryGrace, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if current, ok := t.entries[key]; ok && current.at.Equal(now) {
			delete(t.entries, key)
		}
	})
	t.entries[key] = entry{at: now, timer: timer}
}

// Len returns the number of live entries
func (t *MemoryTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
