package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, workflow_id, chatbot_id, user_id, conversation_id, current_node_id, status, waiting_for_input_type, waiting_since, data, started_at, completed_at, error_message`

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := er.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE id = $1`,
		id,
	)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	dataJSON, err := json.Marshal(execution.Data)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to encode data: %w", err))
	}

	waitingForInput := sql.NullString{String: execution.WaitingForInputType, Valid: execution.WaitingForInputType != ""}
	errorMessage := sql.NullString{String: execution.Error, Valid: execution.Error != ""}

	var completedAt sql.NullTime
	if execution.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *execution.CompletedAt, Valid: true}
	}

	var waitingSince sql.NullTime
	if execution.WaitingSince != nil {
		waitingSince = sql.NullTime{Time: *execution.WaitingSince, Valid: true}
	}

	_, err = er.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, chatbot_id, user_id, conversation_id, current_node_id, status, waiting_for_input_type, waiting_since, data, started_at, completed_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			waiting_for_input_type = EXCLUDED.waiting_for_input_type,
			waiting_since = EXCLUDED.waiting_since,
			data = EXCLUDED.data,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`,
		execution.ID, execution.WorkflowID, execution.ChatbotID, execution.UserID,
		execution.ConversationID, execution.CurrentNodeID, string(execution.Status),
		waitingForInput, waitingSince, dataJSON, execution.StartedAt, completedAt, errorMessage,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) FindByWorkflow(ctx context.Context, workflowID, chatbotID string) ([]*models.WorkflowExecution, error) {
	return er.query(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE workflow_id = $1 AND chatbot_id = $2 ORDER BY started_at DESC`,
		workflowID, chatbotID,
	)
}

func (er *ExecutionRepository) FindActiveByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return er.query(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE workflow_id = $1 AND status IN ($2, $3)`,
		workflowID, string(models.ExecutionStatusRunning), string(models.ExecutionStatusWaitingForInput),
	)
}

func (er *ExecutionRepository) FindWaitingByConversation(ctx context.Context, chatbotID, conversationID string) (*models.WorkflowExecution, error) {
	row := er.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions
		 WHERE chatbot_id = $1 AND conversation_id = $2 AND status = $3
		 ORDER BY started_at DESC LIMIT 1`,
		chatbotID, conversationID, string(models.ExecutionStatusWaitingForInput),
	)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("FindWaitingByConversation", conversationID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("FindWaitingByConversation", conversationID, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) FindExpiredWaiting(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error) {
	return er.query(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE status = $1 AND COALESCE(waiting_since, started_at) < $2`,
		string(models.ExecutionStatusWaitingForInput), cutoff,
	)
}

func (er *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			er.logger.Warn("Failed to close execution rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution rows: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		status          string
		waitingForInput sql.NullString
		waitingSince    sql.NullTime
		dataJSON        []byte
		completedAt     sql.NullTime
		errorMessage    sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.ChatbotID, &execution.UserID,
		&execution.ConversationID, &execution.CurrentNodeID, &status, &waitingForInput,
		&waitingSince, &dataJSON, &execution.StartedAt, &completedAt, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.WaitingForInputType = waitingForInput.String
	execution.Error = errorMessage.String

	if waitingSince.Valid {
		execution.WaitingSince = &waitingSince.Time
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	if err := json.Unmarshal(dataJSON, &execution.Data); err != nil {
		return nil, fmt.Errorf("failed to decode execution data: %w", err)
	}

	return &execution, nil
}
