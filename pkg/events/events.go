// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream all lifecycle events are published to.
const Topic = "flowbot.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionWaitingEvent   EventType = "execution.waiting_for_input"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionExpiredEvent   EventType = "execution.expired"

	// Conversation output events.
	MessageEmittedEvent EventType = "message.emitted"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ChatbotID   string         `json:"chatbot_id"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, chatbotID, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ChatbotID:   chatbotID,
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	StartNodeID    string `json:"start_node_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionWaiting struct {
	BaseEvent

	NodeID    string `json:"node_id"`
	Prompt    string `json:"prompt"`
	InputType string `json:"input_type"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

type ExecutionResumed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Input  string `json:"input"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	DurationMs int64          `json:"duration_ms"`
	FinalData  map[string]any `json:"final_data,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID     string `json:"node_id"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ExecutionExpired is published by the janitor when a suspended execution
// waited past the configured input deadline.
type ExecutionExpired struct {
	BaseEvent

	NodeID    string    `json:"node_id"`
	WaitedFor string    `json:"waited_for"`
	StartedAt time.Time `json:"started_at"`
}

func (e ExecutionExpired) GetType() EventType {
	return ExecutionExpiredEvent
}

// MessageEmitted carries a message node's rendered output so delivery
// channels can push it to the end user.
type MessageEmitted struct {
	BaseEvent

	ConversationID string `json:"conversation_id"`
	NodeID         string `json:"node_id"`
	Message        string `json:"message"`
	MessageType    string `json:"message_type"`
}

func (e MessageEmitted) GetType() EventType {
	return MessageEmittedEvent
}
