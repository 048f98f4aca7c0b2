package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/persistence/file"
	"github.com/flowbot-io/flowbot/pkg/persistence/postgresql"
)

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
