package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ IdempotencyStore = (*RedisStore)(nil)
var _ RateLimiter = (*RedisStore)(nil)
var _ URLCache = (*RedisStore)(nil)
var _ CycleSummaryStore = (*RedisStore)(nil)

// RedisStore backs the TTL-capable document operations: idempotency
// records, the sliding-window rate limit and the dedup URL cache.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func idempotencyKey(batchID, sourceID, articleID string) string {
	return fmt.Sprintf("ingest:idempotency:%s:%s:%s", batchID, sourceID, articleID)
}

func (s *RedisStore) MarkProcessed(ctx context.Context, batchID, sourceID, articleID string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, idempotencyKey(batchID, sourceID, articleID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write idempotency record: %w", err)
	}
	return created, nil
}

// rateLimitTxRetries bounds optimistic-lock retries on the rate-limit
// key. Only admitting calls write, so contention rounds are bounded by
// the limit itself; this leaves ample headroom.
const rateLimitTxRetries = 100

// Allow implements a sliding window over a sorted set scored by request
// time. The prune, count and insert run in a single optimistic
// transaction; when a concurrent request from the same caller dirties the
// watched key the window is re-evaluated from scratch, so concurrent
// requests serialize against the store instead of racing past the limit.
func (s *RedisStore) Allow(ctx context.Context, caller string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + caller

	for attempt := 0; attempt < rateLimitTxRetries; attempt++ {
		now := time.Now()
		cutoff := now.Add(-window)

		var count int64

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if err := tx.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10)).Err(); err != nil {
				return err
			}

			var err error
			count, err = tx.ZCard(ctx, key).Result()
			if err != nil {
				return err
			}

			if count >= int64(limit) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
				pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
				pipe.Expire(ctx, key, window)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
		}

		return count < int64(limit), nil
	}

	// Persistent contention denies rather than admits; an error here
	// would be treated as a store outage upstream and fail open.
	return false, nil
}

func (s *RedisStore) Get(ctx context.Context, normalizedURL string) (string, bool, error) {
	val, err := s.client.Get(ctx, "dedup:url:"+normalizedURL).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read URL cache: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, normalizedURL, articleID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, "dedup:url:"+normalizedURL, articleID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write URL cache: %w", err)
	}
	return nil
}

func (s *RedisStore) SetLatestCycleSummary(ctx context.Context, payload []byte) error {
	if err := s.client.Set(ctx, "ingest:last_cycle", payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store cycle summary: %w", err)
	}
	return nil
}

func (s *RedisStore) GetLatestCycleSummary(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, "ingest:last_cycle").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cycle summary: %w", err)
	}
	return val, nil
}
