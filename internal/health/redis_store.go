package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps provider failure state in Redis so that multiple gateway
// instances agree on who is in cooldown. Failure timestamps live in a sorted
// set trimmed to the failure window; the cooldown key carries a TTL equal to
// the cooldown period, so expiry needs no sweeper here either.
//
// The failure path runs as a Lua script to keep append + trim + threshold
// check atomic across instances.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	opts      Options

	recordFailureScript *redis.Script
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default: "specmux:health").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithThresholds overrides the cooldown thresholds.
func WithThresholds(opts Options) RedisStoreOption {
	return func(s *RedisStore) {
		s.opts = opts
	}
}

// recordFailureLua appends a failure, trims the window, and sets the cooldown
// key when the windowed count reaches the threshold.
//
// KEYS[1] = failures zset, KEYS[2] = cooldown key, KEYS[3] = sequence key
// ARGV[1] = now (unix ms), ARGV[2] = window ms, ARGV[3] = max failures,
// ARGV[4] = cooldown ms
const recordFailureLua = `
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[1] .. '-' .. seq)
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1] - ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
redis.call('PEXPIRE', KEYS[3], ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	local until_ms = ARGV[1] + ARGV[4]
	redis.call('SET', KEYS[2], until_ms, 'PX', ARGV[4])
end
return count
`

// NewRedisStore creates a Redis-backed health store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	store := &RedisStore{
		client:              client,
		keyPrefix:           "specmux:health",
		opts:                DefaultOptions(),
		recordFailureScript: redis.NewScript(recordFailureLua),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// RecordSuccess clears all failure state for the provider.
func (s *RedisStore) RecordSuccess(ctx context.Context, providerID string) error {
	keys := []string{
		s.failuresKey(providerID),
		s.cooldownKey(providerID),
		s.seqKey(providerID),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear health state: %w", err)
	}
	return nil
}

// RecordFailure records a failure at the given time and returns the windowed
// failure count after recording.
func (s *RedisStore) RecordFailure(ctx context.Context, providerID string, at time.Time) (int, error) {
	keys := []string{
		s.failuresKey(providerID),
		s.cooldownKey(providerID),
		s.seqKey(providerID),
	}
	count, err := s.recordFailureScript.Run(ctx, s.client, keys,
		at.UnixMilli(),
		s.opts.FailureWindow.Milliseconds(),
		s.opts.MaxFailures,
		s.opts.Cooldown.Milliseconds(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	return count, nil
}

// CooldownUntil returns when the provider's cooldown ends. The zero time
// means no cooldown is active.
func (s *RedisStore) CooldownUntil(ctx context.Context, providerID string) (time.Time, error) {
	val, err := s.client.Get(ctx, s.cooldownKey(providerID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get cooldown: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cooldown value %q: %w", val, err)
	}
	return time.UnixMilli(ms), nil
}

// IsEligible reports whether the provider may receive requests at the given
// time according to the shared state.
func (s *RedisStore) IsEligible(ctx context.Context, providerID string, at time.Time) (bool, error) {
	until, err := s.CooldownUntil(ctx, providerID)
	if err != nil {
		return false, err
	}
	return until.IsZero() || !at.Before(until), nil
}

func (s *RedisStore) failuresKey(providerID string) string {
	return fmt.Sprintf("%s:failures:{%s}", s.keyPrefix, providerID)
}

func (s *RedisStore) cooldownKey(providerID string) string {
	return fmt.Sprintf("%s:cooldown:{%s}", s.keyPrefix, providerID)
}

func (s *RedisStore) seqKey(providerID string) string {
	return fmt.Sprintf("%s:seq:{%s}", s.keyPrefix, providerID)
}
