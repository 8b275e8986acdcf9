package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// unlockScript deletes the lock only when it is still held by the caller
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares refresh results and locks between gateway instances
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "refresh:",
	}
}

// NewRedisStoreFromURL parses a redis:// URL and checks connectivity
func NewRedisStoreFromURL(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Result, error) {
	data, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh result: %w", err)
	}
	return &result, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh result: %w", err)
	}
	return s.client.Set(ctx, s.resultKey(key), data, ttl).Err()
}

func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(key), owner, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return owner, true, nil
}

func (s *RedisStore) Unlock(ctx context.Context, key, owner string) error {
	if err := unlockScript.Run(ctx, s.client, []string{s.lockKey(key)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release refresh lock: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) resultKey(key string) string {
	return s.prefix + "result:" + key
}

func (s *RedisStore) lockKey(key string) string {
	return s.prefix + "lock:" + key
}
