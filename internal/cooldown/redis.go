package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/internal/plugin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pagebot:cooldown"

// RedisTracker shares cooldowns through Redis. It is advisory: Redis errors
// are logged and the user is let through.
type RedisTracker struct {
	client    redis.UniversalClient
	clock     clockwork.Clock
	logger    *logging.Logger
	keyPrefix string
}

var _ Tracker = (*RedisTracker)(nil)

// NewRedisTracker creates a tracker on top of an existing client
func NewRedisTracker(client redis.UniversalClient, clock clockwork.Clock, logger *logging.Logger) *RedisTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &RedisTracker{
		client:    client,
		clock:     clock,
		logger:    logger.With("component", "cooldown"),
		keyPrefix: defaultKeyPrefix,
	}
}

// NewRedisClient connects to addr and pings it
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (t *RedisTracker) key(userID string, desc plugin.Descriptor) string {
	return fmt.Sprintf("%s:%s:%s", t.keyPrefix, strings.ToLower(desc.Name), userID)
}

func (t *RedisTracker) Remaining(ctx context.Context, userID string, desc plugin.Descriptor) time.Duration {
	cd := Duration(desc)
	if cd <= 0 {
		return 0
	}

	val, err := t.client.Get(ctx, t.key(userID, desc)).Result()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		t.logger.Warn("Cooldown lookup for %s/%s failed, allowing: %v", userID, desc.Name, err)
		return 0
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		t.logger.Warn("Cooldown value %q for %s/%s is corrupt, allowing", val, userID, desc.Name)
		return 0
	}
	return remaining(cd, t.clock.Since(time.UnixMilli(ms)))
}

func (t *RedisTracker) IsOnCooldown(ctx context.Context, userID string, desc plugin.Descriptor) bool {
	return t.Remaining(ctx, userID, desc) > 0
}

func (t *RedisTracker) Commit(ctx context.Context, userID string, desc plugin.Descriptor) {
	cd := Duration(desc)
	if cd <= 0 {
		return
	}

	now := strconv.FormatInt(t.clock.Now().UnixMilli(), 10)
	if err := t.client.Set(ctx, t.key(userID, desc), now, cd+expiryGrace).Err(); err != nil {
		t.logger.Warn("Cooldown commit for %s/%s failed: %v", userID, desc.Name, err)
	}
}
