// Package workflow implements the conversation workflow engine: graph
// validation, the execution interpreter with its suspend/resume cycle, and
// execution analytics.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowbot-io/flowbot/pkg/eventbus"
	"github.com/flowbot-io/flowbot/pkg/events"
	"github.com/flowbot-io/flowbot/pkg/lock"
	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/template"
	"github.com/flowbot-io/flowbot/pkg/tracer"
)

var (
	// ErrWorkflowInactive is returned when starting an execution of a deactivated workflow.
	ErrWorkflowInactive = errors.New("workflow is not active")
	// ErrExecutionTerminated is returned when resuming a completed or failed execution.
	ErrExecutionTerminated = errors.New("execution is in a terminal state")
	// ErrNotWaitingForInput is returned when resuming an execution that is not suspended.
	ErrNotWaitingForInput = errors.New("execution is not waiting for input")
	// ErrNodeNotFound is returned when the execution cursor references a missing node.
	ErrNodeNotFound = errors.New("node not found in workflow")
	// ErrNoOutgoingConnection is returned when a non-terminal node has no outgoing edge.
	ErrNoOutgoingConnection = errors.New("node has no outgoing connection")
	// ErrMissingBranch is returned when a condition node has no edge for the evaluated branch.
	ErrMissingBranch = errors.New("condition node has no connection for branch")
)

// OutputMessage is a bot message rendered by a message node during an advance.
type OutputMessage struct {
	NodeID      string `json:"node_id"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
}

// InputPrompt describes what the execution is suspended waiting for.
type InputPrompt struct {
	NodeID    string   `json:"node_id"`
	Prompt    string   `json:"prompt"`
	InputType string   `json:"input_type,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// AdvanceResult is what one Start or Resume call produced: the execution in
// its final state for this turn plus everything the conversation should show.
type AdvanceResult struct {
	Execution *models.WorkflowExecution `json:"execution"`
	Messages  []OutputMessage           `json:"messages,omitempty"`
	Prompt    *InputPrompt              `json:"prompt,omitempty"`
}

// Engine interprets workflow graphs. All collaborators are injected so the
// engine can be exercised in isolation.
type Engine struct {
	workflows    persistence.WorkflowRepository
	executions   persistence.ExecutionRepository
	locker       lock.ExecutionLocker
	publisher    eventbus.EventPublisher
	actions      *ActionExecutor
	integrations *IntegrationInvoker
	contexts     *ContextUpdater
	tr           trace.Tracer
	logger       *slog.Logger
}

// Dependencies carries everything an Engine needs.
type Dependencies struct {
	Workflows    persistence.WorkflowRepository
	Executions   persistence.ExecutionRepository
	Locker       lock.ExecutionLocker
	Publisher    eventbus.EventPublisher
	Actions      *ActionExecutor
	Integrations *IntegrationInvoker
	Contexts     *ContextUpdater
	Tracer       trace.Tracer
	Logger       *slog.Logger
}

func NewEngine(deps Dependencies) *Engine {
	if deps.Tracer == nil {
		deps.Tracer = tracer.NewNoopTracer()
	}

	return &Engine{
		workflows:    deps.Workflows,
		executions:   deps.Executions,
		locker:       deps.Locker,
		publisher:    deps.Publisher,
		actions:      deps.Actions,
		integrations: deps.Integrations,
		contexts:     deps.Contexts,
		tr:           deps.Tracer,
		logger:       deps.Logger.With("module", "workflow_engine"),
	}
}

// Start launches a new execution of an active workflow and advances it until
// it suspends at an input node, completes, or fails.
func (e *Engine) Start(
	ctx context.Context,
	chatbotID, workflowID, userID, conversationID string,
	initialData map[string]any,
) (*AdvanceResult, error) {
	ctx, span := tracer.StartSpan(ctx, e.tr, "engine.start",
		attribute.String(tracer.ChatbotIDKey, chatbotID),
		attribute.String(tracer.WorkflowIDKey, workflowID),
		attribute.String(tracer.ConversationKey, conversationID),
	)
	defer span.End()

	workflow, err := e.workflows.GetByID(ctx, chatbotID, workflowID)
	if err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	if !workflow.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, workflowID)
	}

	startNode, found := workflow.StartNode()
	if !found {
		return nil, ErrMissingStartNode
	}

	if initialData == nil {
		initialData = make(map[string]any)
	}

	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		ChatbotID:      chatbotID,
		UserID:         userID,
		ConversationID: conversationID,
		CurrentNodeID:  startNode.ID,
		Status:         models.ExecutionStatusRunning,
		Data:           initialData,
		StartedAt:      time.Now().UTC(),
	}

	// Acquire before the first save: a failed acquisition must leave no
	// persisted running record.
	release, err := e.locker.Acquire(ctx, execution.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.executions.Save(ctx, execution); err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent:      events.NewBaseEvent(events.ExecutionStartedEvent, chatbotID, workflowID, execution.ID),
		UserID:         userID,
		ConversationID: conversationID,
		StartNodeID:    startNode.ID,
	})

	e.logger.InfoContext(ctx, "Starting workflow execution",
		"execution_id", execution.ID, "workflow_id", workflowID, "conversation_id", conversationID)

	return e.advance(ctx, workflow, execution)
}

// Resume delivers user input to a suspended execution and continues the walk
// from the input node's outgoing connection.
func (e *Engine) Resume(ctx context.Context, executionID string, input map[string]any) (*AdvanceResult, error) {
	ctx, span := tracer.StartSpan(ctx, e.tr, "engine.resume",
		attribute.String(tracer.ExecutionIDKey, executionID),
	)
	defer span.End()

	release, err := e.locker.Acquire(ctx, executionID)
	if err != nil {
		return nil, err
	}
	defer release()

	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	if execution.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionTerminated, executionID, execution.Status)
	}

	if execution.Status != models.ExecutionStatusWaitingForInput {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotWaitingForInput, executionID, execution.Status)
	}

	workflow, err := e.workflows.GetByID(ctx, execution.ChatbotID, execution.WorkflowID)
	if err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	inputNode, found := workflow.NodeByID(execution.CurrentNodeID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, execution.CurrentNodeID)
	}

	conn, found := workflow.ConnectionFrom(inputNode.ID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoOutgoingConnection, inputNode.ID)
	}

	execution.MergeInput(input)
	execution.Status = models.ExecutionStatusRunning
	execution.WaitingForInputType = ""
	execution.WaitingSince = nil
	execution.CurrentNodeID = conn.TargetID

	if err := e.executions.Save(ctx, execution); err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, execution, events.ExecutionResumed{
		BaseEvent: events.NewBaseEvent(events.ExecutionResumedEvent, execution.ChatbotID, execution.WorkflowID, execution.ID),
		NodeID:    inputNode.ID,
		Input:     template.Stringify(input),
	})

	e.logger.InfoContext(ctx, "Resuming workflow execution",
		"execution_id", execution.ID, "node_id", conn.TargetID)

	return e.advance(ctx, workflow, execution)
}

// advance is the interpreter loop. It persists the cursor before each node,
// dispatches on the node's payload type, and keeps walking while the
// execution is still running. One recovery point at the top of the loop turns
// any dispatch error into a terminal error state.
func (e *Engine) advance(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
) (*AdvanceResult, error) {
	result := &AdvanceResult{Execution: execution}

	for execution.Status == models.ExecutionStatusRunning {
		node, found := workflow.NodeByID(execution.CurrentNodeID)
		if !found {
			err := fmt.Errorf("%w: %s", ErrNodeNotFound, execution.CurrentNodeID)

			return result, e.fail(ctx, execution, execution.CurrentNodeID, err)
		}

		nextNodeID, err := e.processNode(ctx, workflow, execution, node, result)
		if err != nil {
			return result, e.fail(ctx, execution, node.ID, err)
		}

		if execution.Status != models.ExecutionStatusRunning {
			break
		}

		if nextNodeID == "" {
			err := fmt.Errorf("%w: %s", ErrNoOutgoingConnection, node.ID)

			return result, e.fail(ctx, execution, node.ID, err)
		}

		execution.CurrentNodeID = nextNodeID

		if err := e.executions.Save(ctx, execution); err != nil {
			return result, e.fail(ctx, execution, node.ID, err)
		}
	}

	return result, nil
}

// processNode executes one node and returns the ID of the next node to visit.
// An empty next ID together with a non-running status means the walk stopped
// on purpose (suspension or completion).
func (e *Engine) processNode(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	node *models.Node,
	result *AdvanceResult,
) (string, error) {
	ctx, span := tracer.StartSpan(ctx, e.tr, "engine.process_node",
		attribute.String(tracer.ExecutionIDKey, execution.ID),
		attribute.String(tracer.NodeIDKey, node.ID),
		attribute.String(tracer.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	switch data := node.Data.(type) {
	case models.StartData:
		return e.nextFrom(workflow, node.ID)

	case models.MessageData:
		message := OutputMessage{
			NodeID:      node.ID,
			Message:     template.Interpolate(data.Message, execution.Data),
			MessageType: data.MessageType,
		}
		result.Messages = append(result.Messages, message)

		e.publish(ctx, execution, events.MessageEmitted{
			BaseEvent:      events.NewBaseEvent(events.MessageEmittedEvent, execution.ChatbotID, execution.WorkflowID, execution.ID),
			ConversationID: execution.ConversationID,
			NodeID:         node.ID,
			Message:        message.Message,
			MessageType:    message.MessageType,
		})

		return e.nextFrom(workflow, node.ID)

	case models.ConditionData:
		branch := EvaluateCondition(ctx, e.logger, data.Condition, execution.Data)

		conn, found := workflow.BranchFrom(node.ID, models.BranchLabel(branch))
		if !found {
			return "", fmt.Errorf("%w: %s (%s)", ErrMissingBranch, node.ID, models.BranchLabel(branch))
		}

		return conn.TargetID, nil

	case models.InputData:
		return "", e.suspend(ctx, execution, node.ID, data, result)

	case models.ActionData:
		actionResult, err := e.actions.Perform(ctx, data.Action, execution.Data)
		if err != nil {
			return "", err
		}

		execution.MergeData(models.DataKeyActionResult, actionResult)
		e.applyVariable(execution, actionResult)

		return e.nextFrom(workflow, node.ID)

	case models.IntegrationData:
		execution.MergeData(models.DataKeyIntegrationResult, e.integrations.Call(ctx, data.Integration, execution.Data))

		return e.nextFrom(workflow, node.ID)

	case models.ContextData:
		execution.MergeData(models.DataKeyContextResult, e.contexts.Apply(ctx, data))

		return e.nextFrom(workflow, node.ID)

	case models.JumpData:
		return data.TargetNodeID, nil

	case models.EndData:
		return "", e.complete(ctx, execution)

	default:
		return "", fmt.Errorf("unknown node type %q at node %s", node.Type, node.ID)
	}
}

func (e *Engine) nextFrom(workflow *models.Workflow, nodeID string) (string, error) {
	conn, found := workflow.ConnectionFrom(nodeID)
	if !found {
		return "", fmt.Errorf("%w: %s", ErrNoOutgoingConnection, nodeID)
	}

	return conn.TargetID, nil
}

// applyVariable copies a successful setVariable/calculateValue result into a
// top-level data key so later nodes can reference it by name.
func (e *Engine) applyVariable(execution *models.WorkflowExecution, actionResult map[string]any) {
	success, _ := actionResult["success"].(bool)
	variable, _ := actionResult["variable"].(string)

	if success && variable != "" {
		execution.MergeData(variable, actionResult["value"])
	}
}

func (e *Engine) suspend(
	ctx context.Context,
	execution *models.WorkflowExecution,
	nodeID string,
	data models.InputData,
	result *AdvanceResult,
) error {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusWaitingForInput
	execution.WaitingForInputType = data.InputType
	execution.WaitingSince = &now

	if err := e.executions.Save(ctx, execution); err != nil {
		return err
	}

	prompt := &InputPrompt{
		NodeID:    nodeID,
		Prompt:    template.Interpolate(data.Prompt, execution.Data),
		InputType: data.InputType,
		Options:   data.Options,
	}
	result.Prompt = prompt

	e.publish(ctx, execution, events.ExecutionWaiting{
		BaseEvent: events.NewBaseEvent(events.ExecutionWaitingEvent, execution.ChatbotID, execution.WorkflowID, execution.ID),
		NodeID:    nodeID,
		Prompt:    prompt.Prompt,
		InputType: data.InputType,
	})

	e.logger.InfoContext(ctx, "Execution waiting for input",
		"execution_id", execution.ID, "node_id", nodeID, "input_type", data.InputType)

	return nil
}

func (e *Engine) complete(ctx context.Context, execution *models.WorkflowExecution) error {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now

	if err := e.executions.Save(ctx, execution); err != nil {
		return err
	}

	e.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, execution.ChatbotID, execution.WorkflowID, execution.ID),
		DurationMs: now.Sub(execution.StartedAt).Milliseconds(),
		FinalData:  execution.Data,
	})

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "duration_ms", now.Sub(execution.StartedAt).Milliseconds())

	return nil
}

// fail records a hard node error on the execution and returns the original
// error to the caller. The failed state is persisted on a best-effort basis.
func (e *Engine) fail(ctx context.Context, execution *models.WorkflowExecution, nodeID string, cause error) error {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusError
	execution.Error = cause.Error()
	execution.CompletedAt = &now
	execution.WaitingForInputType = ""
	execution.WaitingSince = nil

	if err := e.executions.Save(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution error state",
			"execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent:  events.NewBaseEvent(events.ExecutionFailedEvent, execution.ChatbotID, execution.WorkflowID, execution.ID),
		NodeID:     nodeID,
		Error:      cause.Error(),
		DurationMs: now.Sub(execution.StartedAt).Milliseconds(),
	})

	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "node_id", nodeID, "error", cause)

	return cause
}

func (e *Engine) publish(ctx context.Context, execution *models.WorkflowExecution, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, execution.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "execution_id", execution.ID, "error", err)
	}
}
