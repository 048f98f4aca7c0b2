package cmd

import (
	"context"
	"log/slog"

	"github.com/flowbot-io/flowbot/pkg/lock"
)

// NewLocker returns a Redis backed locker when a Redis URL is configured,
// falling back to the in-process locker for single instance deployments.
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) (lock.ExecutionLocker, error) {
	if redisURL == "" {
		return lock.NewMemoryLocker(), nil
	}

	return lock.NewRedisLocker(ctx, logger, redisURL)
}
