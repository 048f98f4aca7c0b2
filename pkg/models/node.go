package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the kind of step a node performs.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeMessage     NodeType = "message"
	NodeTypeCondition   NodeType = "condition"
	NodeTypeInput       NodeType = "input"
	NodeTypeAction      NodeType = "action"
	NodeTypeIntegration NodeType = "integration"
	NodeTypeContext     NodeType = "context"
	NodeTypeJump        NodeType = "jump"
	NodeTypeEnd         NodeType = "end"
)

// NodeData is the type-specific payload of a node. Each node type carries its
// own variant so the engine can dispatch exhaustively instead of digging
// through an untyped map.
type NodeData interface {
	Kind() NodeType
}

// Node is a typed step in a workflow graph.
type Node struct {
	ID   string   `json:"node_id" validate:"required"`
	Type NodeType `json:"type"    validate:"required"`
	Data NodeData `json:"data"`
}

// StartData is the (empty) payload of a start node.
type StartData struct{}

func (StartData) Kind() NodeType { return NodeTypeStart }

// EndData is the (empty) payload of an end node.
type EndData struct{}

func (EndData) Kind() NodeType { return NodeTypeEnd }

// MessageData defines the bot message a message node emits.
type MessageData struct {
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
}

func (MessageData) Kind() NodeType { return NodeTypeMessage }

// ConditionData holds the predicate a condition node evaluates.
type ConditionData struct {
	Condition Condition `json:"condition"`
}

func (ConditionData) Kind() NodeType { return NodeTypeCondition }

// InputData defines the prompt shown when an execution suspends for user input.
type InputData struct {
	Prompt    string   `json:"prompt"`
	InputType string   `json:"input_type,omitempty"`
	Options   []string `json:"options,omitempty"`
}

func (InputData) Kind() NodeType { return NodeTypeInput }

// ActionData holds the action an action node performs.
type ActionData struct {
	Action ActionSpec `json:"action"`
}

func (ActionData) Kind() NodeType { return NodeTypeAction }

// ActionSpec describes one of the built-in actions: setVariable,
// calculateValue, or delay. Fields are populated per action type.
type ActionSpec struct {
	Type         string `json:"type"`
	Variable     string `json:"variable,omitempty"`
	Value        any    `json:"value,omitempty"`
	Expression   string `json:"expression,omitempty"`
	Milliseconds int    `json:"milliseconds,omitempty"`
}

// IntegrationData holds the outbound call an integration node performs.
type IntegrationData struct {
	Integration IntegrationSpec `json:"integration"`
}

func (IntegrationData) Kind() NodeType { return NodeTypeIntegration }

// IntegrationSpec describes an outbound integration call. URL, headers, and
// data values support ${path} interpolation against execution data.
type IntegrationSpec struct {
	Type    string            `json:"type"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
}

// ContextData describes a conversation-context operation.
type ContextData struct {
	Operation string `json:"operation"`
	Key       string `json:"key,omitempty"`
	Value     any    `json:"value,omitempty"`
}

func (ContextData) Kind() NodeType { return NodeTypeContext }

// JumpData redirects execution to an arbitrary node in the same workflow.
type JumpData struct {
	TargetNodeID string `json:"target_node_id"`
}

func (JumpData) Kind() NodeType { return NodeTypeJump }

// nodeEnvelope is the wire form of a node before the data payload is decoded.
type nodeEnvelope struct {
	ID   string          `json:"node_id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the type tag first, then the payload into the matching
// NodeData variant. Unknown node types are rejected at decode time.
func (n *Node) UnmarshalJSON(raw []byte) error {
	var envelope nodeEnvelope

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode node envelope: %w", err)
	}

	data, err := decodeNodeData(envelope.Type, envelope.Data)
	if err != nil {
		return err
	}

	n.ID = envelope.ID
	n.Type = envelope.Type
	n.Data = data

	return nil
}

// MarshalJSON writes the node back in envelope form.
func (n Node) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		data = emptyNodeData(n.Type)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode node %s data: %w", n.ID, err)
	}

	return json.Marshal(nodeEnvelope{ID: n.ID, Type: n.Type, Data: payload})
}

func decodeNodeData(nodeType NodeType, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var (
		data NodeData
		err  error
	)

	switch nodeType {
	case NodeTypeStart:
		data = StartData{}
	case NodeTypeEnd:
		data = EndData{}
	case NodeTypeMessage:
		var v MessageData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeCondition:
		var v ConditionData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeInput:
		var v InputData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeAction:
		var v ActionData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeIntegration:
		var v IntegrationData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeContext:
		var v ContextData

		err = json.Unmarshal(raw, &v)
		data = v
	case NodeTypeJump:
		var v JumpData

		err = json.Unmarshal(raw, &v)
		data = v
	default:
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s node data: %w", nodeType, err)
	}

	return data, nil
}

func emptyNodeData(nodeType NodeType) NodeData {
	data, err := decodeNodeData(nodeType, nil)
	if err != nil {
		return StartData{}
	}

	return data
}
