package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowbot-io/flowbot/pkg/models"
)

// ContextUpdater handles context nodes. Conversation context storage is not
// wired up yet, so every operation reports unimplemented as a soft failure.
// TODO: back this with the conversation context store once one exists.
type ContextUpdater struct {
	logger *slog.Logger
}

func NewContextUpdater(logger *slog.Logger) *ContextUpdater {
	return &ContextUpdater{logger: logger.With("module", "context_updater")}
}

func (c *ContextUpdater) Apply(ctx context.Context, data models.ContextData) map[string]any {
	c.logger.WarnContext(ctx, "Context operation not implemented",
		"operation", data.Operation, "key", data.Key)

	return map[string]any{
		"success": false,
		"error":   fmt.Sprintf("Context operation not implemented: %s", data.Operation),
	}
}
