package locks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "archon:lock:"

// releaseScript deletes the lock only when the caller still owns it, so
// release-after-steal cannot drop another owner's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return -1
`)

// RedisStore is a lock store backed by redis SET NX, for deployments where
// several API processes share one node repository.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Acquire(ctx context.Context, key, ownerToken string) error {
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+key, ownerToken, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", key, err)
	}

	if ok {
		return nil
	}

	owner, err := s.client.Get(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("failed to read lock owner for %s: %w", key, err)
	}

	if owner == ownerToken {
		return nil
	}

	return ErrAlreadyLocked
}

func (s *RedisStore) Release(ctx context.Context, key, ownerToken string) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{lockKeyPrefix + key}, ownerToken).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock for %s: %w", key, err)
	}

	if deleted < 0 {
		return ErrNotOwner
	}

	return nil
}

func (s *RedisStore) Owner(ctx context.Context, key string) (string, bool, error) {
	owner, err := s.client.Get(ctx, lockKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to read lock owner for %s: %w", key, err)
	}

	return owner, true, nil
}
