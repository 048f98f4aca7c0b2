package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "flowbot:execution-lock:"
	defaultLeaseTTL = 30 * time.Second
	connectTimeout  = 5 * time.Second
)

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lease reacquired by another node is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements ExecutionLocker with a per-execution lease key, for
// deployments running more than one API instance.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLocker(ctx context.Context, logger *slog.Logger, redisURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		ttl:    defaultLeaseTTL,
		logger: logger.With("module", "redis_locker"),
	}, nil
}

func (r *RedisLocker) Acquire(ctx context.Context, executionID string) (func(), error) {
	key := lockKeyPrefix + executionID
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire execution lock: %w", err)
	}

	if !ok {
		return nil, ErrAlreadyLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.ErrorContext(releaseCtx, "Failed to release execution lock",
				"execution_id", executionID, "error", err)
		}
	}

	return release, nil
}

func (r *RedisLocker) Close(_ context.Context) error {
	return r.client.Close()
}
