package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
)

// RedisStore mirrors bars into a sorted set per symbol, scored by close time
// in epoch milliseconds, so external consumers get range reads for free via
// ZRANGEBYSCORE.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	maxBars   int64
}

// NewRedisStore creates a sorted-set bar store. maxBars <= 0 disables
// trimming.
func NewRedisStore(client *redis.Client, keyPrefix string, maxBars int) repository.BarArchive {
	if keyPrefix == "" {
		keyPrefix = "barbridge:bars"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, maxBars: int64(maxBars)}
}

func (s *RedisStore) key(symbol string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, symbol)
}

func (s *RedisStore) Store(ctx context.Context, symbol string, bar models.CachedBar) error {
	payload, err := json.Marshal(bar.Record(symbol, "", 0))
	if err != nil {
		return fmt.Errorf("marshal bar: %w", err)
	}
	key := s.key(symbol)

	pipe := s.client.TxPipeline()
	// same-score members replace each other through ZRemRangeByScore first,
	// keeping inserts idempotent by close time like the in-memory cache
	score := fmt.Sprintf("%d", bar.Key())
	pipe.ZRemRangeByScore(ctx, key, score, score)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(bar.Key()), Member: string(payload)})
	if s.maxBars > 0 {
		pipe.ZRemRangeByRank(ctx, key, 0, -(s.maxBars + 1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zadd bar: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
