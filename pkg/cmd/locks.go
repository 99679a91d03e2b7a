package cmd

import (
	"fmt"

	"github.com/archonhq/archon/pkg/locks"
	"github.com/redis/go-redis/v9"
)

// NewLockStore creates the node lock store. With a redis URL locks are
// shared across processes; without one they are process-local.
func NewLockStore(redisURL string) locks.Store {
	if redisURL == "" {
		return locks.NewMemoryStore()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	return locks.NewRedisStore(redis.NewClient(opts))
}
