package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scanCount   = 256
	deleteBatch = 512
)

// RedisStore implements [Store] on a go-redis client.
type RedisStore struct {
	redis redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an already configured client. The caller owns the
// client lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, Error.Wrap(err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return Error.Wrap(s.redis.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	var deleted int64
	for len(keys) > 0 {
		n := len(keys)
		if n > deleteBatch {
			n = deleteBatch
		}
		count, err := s.redis.Del(ctx, keys[:n]...).Result()
		if err != nil {
			return deleted, Error.Wrap(err)
		}
		deleted += count
		keys = keys[n:]
	}
	return deleted, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return count, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return normalizeTTL(ttl), nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return fields, nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return Error.Wrap(s.redis.HSet(ctx, key, field, value).Err())
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, batch...)
		if next == 0 {
			return dedupe(out), nil
		}
		cursor = next
	}
}

func (s *RedisStore) ReadCounter(ctx context.Context, counterKey, ttlKey string) (int64, time.Duration, error) {
	pipe := s.redis.Pipeline()
	getCmd := pipe.Get(ctx, counterKey)
	ttlCmd := pipe.PTTL(ctx, ttlKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, Error.Wrap(err)
	}

	count, err := getCmd.Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return 0, 0, Error.New("counter %q: %v", counterKey, err)
		}
		count = 0
	}
	if count < 0 {
		count = 0
	}

	return count, normalizeTTL(ttlCmd.Val()), nil
}

func (s *RedisStore) RunWindow(
	ctx context.Context,
	counterKey, markerKey string,
	now time.Time,
	limit int64,
	window time.Duration,
) (WindowResult, error) {
	if limit <= 0 || window <= 0 {
		return WindowResult{}, Error.New("invalid window parameters: limit=%d window=%s", limit, window)
	}

	vals, err := windowScript.Run(
		ctx,
		s.redis,
		[]string{counterKey, markerKey},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.FormatInt(limit, 10),
	).Int64Slice()
	if err != nil {
		return WindowResult{}, Error.Wrap(err)
	}
	if len(vals) != 5 {
		return WindowResult{}, Error.New("window script returned %d values", len(vals))
	}

	res := WindowResult{
		Allowed:      vals[0] == 1,
		Count:        vals[1],
		CreatedAt:    time.UnixMilli(vals[2]),
		BlockStarted: vals[4] == 1,
	}
	if vals[3] > 0 {
		res.BlockedAt = time.UnixMilli(vals[3])
	}
	return res, nil
}

func (s *RedisStore) RecordFailure(
	ctx context.Context,
	counterKey, blockKey string,
	threshold int64,
	schedule []time.Duration,
) (FailureResult, error) {
	if threshold <= 0 || len(schedule) == 0 {
		return FailureResult{}, Error.New("invalid failure parameters: threshold=%d tiers=%d", threshold, len(schedule))
	}

	args := make([]any, 0, len(schedule)+1)
	args = append(args, strconv.FormatInt(threshold, 10))
	for _, d := range schedule {
		args = append(args, strconv.FormatInt(d.Milliseconds(), 10))
	}

	vals, err := failureScript.Run(ctx, s.redis, []string{counterKey, blockKey}, args...).Int64Slice()
	if err != nil {
		return FailureResult{}, Error.Wrap(err)
	}
	if len(vals) != 2 {
		return FailureResult{}, Error.New("failure script returned %d values", len(vals))
	}
	return FailureResult{Count: vals[0], Block: time.Duration(vals[1]) * time.Millisecond}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return Error.Wrap(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// normalizeTTL maps the client's negative sentinels onto Missing/NoExpiry.
func normalizeTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == -2 || ttl == -2*time.Millisecond:
		return Missing
	case ttl == -1 || ttl == -1*time.Millisecond:
		return NoExpiry
	case ttl < 0:
		return Missing
	default:
		return ttl
	}
}

// SCAN may return a key more than once.
func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
