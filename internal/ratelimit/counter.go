// Package ratelimit admits or blocks requests by counting recent attempts per
// (endpoint, identifier) pair inside a sliding time window.
package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Counter records one attempt and reports how many attempts preceded it
// within the window. Counting tolerates eventual-consistency races; a small
// overshoot above the limit under concurrent bursts is acceptable.
type Counter interface {
	Observe(ctx context.Context, endpoint, identifier string, at time.Time, window time.Duration) (int, error)
}

// slidingWindowScript trims the window, reports the prior count and records
// the new attempt in one round trip.
var slidingWindowScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", cutoff)
local prior = redis.call("ZCARD", KEYS[1])
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return prior
`)

// RedisCounter keeps per-key attempt timestamps in a sorted set.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter returns a Counter backed by the given client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "rl:"}
}

// Observe records an attempt at the given time and returns the number of
// prior attempts within the window.
func (c *RedisCounter) Observe(ctx context.Context, endpoint, identifier string, at time.Time, window time.Duration) (int, error) {
	key := c.prefix + endpoint + ":" + identifier
	member := uuid.New().String()
	res, err := slidingWindowScript.Run(ctx, c.client,
		[]string{key}, at.UnixMilli(), window.Milliseconds(), member,
	).Int64()
	if err != nil {
		return 0, err
	}
	return int(res), nil
}

// AttemptStore is the slice of the event store the fallback counter reads.
type AttemptStore interface {
	CountAttemptsSince(ctx context.Context, endpoint, identifier string, since time.Time) (int, error)
}

// EventCounter counts attempts from the event store. Used when no redis is
// configured; the attempt event the limiter writes after each check is what
// future calls count.
type EventCounter struct {
	events AttemptStore
}

// NewEventCounter returns a Counter reading attempt events from the store.
func NewEventCounter(events AttemptStore) *EventCounter {
	return &EventCounter{events: events}
}

// Observe returns the number of attempt events recorded for the pair within
// the window. The attempt itself is recorded by the limiter's event write.
func (c *EventCounter) Observe(ctx context.Context, endpoint, identifier string, at time.Time, window time.Duration) (int, error) {
	return c.events.CountAttemptsSince(ctx, endpoint, identifier, at.Add(-window))
}
