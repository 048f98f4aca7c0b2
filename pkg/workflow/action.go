package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowbot-io/flowbot/pkg/expression"
	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/template"
)

// Built-in action types.
const (
	ActionSetVariable    = "setVariable"
	ActionCalculateValue = "calculateValue"
	ActionDelay          = "delay"
)

// ActionExecutor performs the built-in actions of action nodes. Failures are
// soft: they come back as {success:false} results for downstream conditions to
// branch on. The only hard error is context cancellation during a delay.
type ActionExecutor struct {
	expressions *expression.Engine
	logger      *slog.Logger
}

func NewActionExecutor(logger *slog.Logger, expressions *expression.Engine) *ActionExecutor {
	return &ActionExecutor{
		expressions: expressions,
		logger:      logger.With("module", "action_executor"),
	}
}

func (a *ActionExecutor) Perform(ctx context.Context, spec models.ActionSpec, data map[string]any) (map[string]any, error) {
	switch spec.Type {
	case ActionSetVariable:
		return a.setVariable(spec, data), nil
	case ActionCalculateValue:
		return a.calculateValue(spec, data), nil
	case ActionDelay:
		return a.delay(ctx, spec)
	default:
		a.logger.WarnContext(ctx, "Unknown action type", "type", spec.Type)

		return map[string]any{
			"success": false,
			"error":   "Unknown action type",
		}, nil
	}
}

func (a *ActionExecutor) setVariable(spec models.ActionSpec, data map[string]any) map[string]any {
	return map[string]any{
		"success":  true,
		"variable": spec.Variable,
		"value":    template.InterpolateValue(spec.Value, data),
	}
}

func (a *ActionExecutor) calculateValue(spec models.ActionSpec, data map[string]any) map[string]any {
	value, err := a.expressions.Evaluate(spec.Expression, data)
	if err != nil {
		return map[string]any{
			"success": false,
			"error":   err.Error(),
		}
	}

	return map[string]any{
		"success":  true,
		"variable": spec.Variable,
		"value":    value,
	}
}

func (a *ActionExecutor) delay(ctx context.Context, spec models.ActionSpec) (map[string]any, error) {
	if spec.Milliseconds <= 0 {
		return map[string]any{"success": true, "delayed_ms": 0}, nil
	}

	timer := time.NewTimer(time.Duration(spec.Milliseconds) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return map[string]any{"success": true, "delayed_ms": spec.Milliseconds}, nil
	}
}
