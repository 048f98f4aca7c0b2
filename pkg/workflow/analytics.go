package workflow

import (
	"context"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
)

// Stats aggregates the executions of one workflow, optionally restricted to a
// start date range.
type Stats struct {
	Total                  int     `json:"total"`
	Completed              int     `json:"completed"`
	Error                  int     `json:"error"`
	Running                int     `json:"running"`
	WaitingForInput        int     `json:"waiting_for_input"`
	CompletionRate         float64 `json:"completion_rate"`
	AverageExecutionTimeMs float64 `json:"average_execution_time_ms"`
}

// Analyze computes execution statistics for a workflow. CompletionRate is
// completed/total*100 and zero for an empty set. Average execution time only
// counts completed executions with a recorded completion timestamp.
func (e *Engine) Analyze(ctx context.Context, chatbotID, workflowID string, start, end *time.Time) (*Stats, error) {
	executions, err := e.executions.FindByWorkflow(ctx, workflowID, chatbotID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}

	var totalDurationMs int64

	for _, execution := range executions {
		if start != nil && execution.StartedAt.Before(*start) {
			continue
		}

		if end != nil && execution.StartedAt.After(*end) {
			continue
		}

		stats.Total++

		switch execution.Status {
		case models.ExecutionStatusCompleted:
			stats.Completed++

			if execution.CompletedAt != nil {
				totalDurationMs += execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
			}
		case models.ExecutionStatusError:
			stats.Error++
		case models.ExecutionStatusRunning:
			stats.Running++
		case models.ExecutionStatusWaitingForInput:
			stats.WaitingForInput++
		}
	}

	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}

	if stats.Completed > 0 {
		stats.AverageExecutionTimeMs = float64(totalDurationMs) / float64(stats.Completed)
	}

	return stats, nil
}
