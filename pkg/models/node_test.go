package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_TypedPayloads(t *testing.T) {
	raw := `[
		{"node_id": "n1", "type": "start", "data": {}},
		{"node_id": "n2", "type": "message", "data": {"message": "hello", "message_type": "text"}},
		{"node_id": "n3", "type": "condition", "data": {"condition": {"field": "score", "operator": "greaterThan", "value": 5}}},
		{"node_id": "n4", "type": "input", "data": {"prompt": "name?", "input_type": "text", "options": ["a", "b"]}},
		{"node_id": "n5", "type": "action", "data": {"action": {"type": "setVariable", "variable": "x", "value": 1}}},
		{"node_id": "n6", "type": "integration", "data": {"integration": {"type": "http", "url": "https://api.example.com", "method": "POST"}}},
		{"node_id": "n7", "type": "context", "data": {"operation": "set", "key": "topic", "value": "billing"}},
		{"node_id": "n8", "type": "jump", "data": {"target_node_id": "n2"}},
		{"node_id": "n9", "type": "end"}
	]`

	var nodes []*Node

	require.NoError(t, json.Unmarshal([]byte(raw), &nodes))
	require.Len(t, nodes, 9)

	message, ok := nodes[1].Data.(MessageData)
	require.True(t, ok)
	assert.Equal(t, "hello", message.Message)
	assert.Equal(t, "text", message.MessageType)

	condition, ok := nodes[2].Data.(ConditionData)
	require.True(t, ok)
	assert.Equal(t, "score", condition.Condition.Field)
	assert.Equal(t, OperatorGreaterThan, condition.Condition.Operator)

	input, ok := nodes[3].Data.(InputData)
	require.True(t, ok)
	assert.Equal(t, "name?", input.Prompt)
	assert.Equal(t, []string{"a", "b"}, input.Options)

	action, ok := nodes[4].Data.(ActionData)
	require.True(t, ok)
	assert.Equal(t, "setVariable", action.Action.Type)

	integration, ok := nodes[5].Data.(IntegrationData)
	require.True(t, ok)
	assert.Equal(t, "http", integration.Integration.Type)

	jump, ok := nodes[7].Data.(JumpData)
	require.True(t, ok)
	assert.Equal(t, "n2", jump.TargetNodeID)

	// End nodes may omit data entirely.
	_, ok = nodes[8].Data.(EndData)
	assert.True(t, ok)
}

func TestNode_UnmarshalJSON_UnknownType(t *testing.T) {
	var node Node

	err := json.Unmarshal([]byte(`{"node_id": "n1", "type": "teleport", "data": {}}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestNode_MarshalJSON_RoundTrip(t *testing.T) {
	node := Node{
		ID:   "greet",
		Type: NodeTypeMessage,
		Data: MessageData{Message: "hi ${input.name}", MessageType: "text"},
	}

	raw, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded Node

	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, node, decoded)
}

func TestWorkflow_GraphLookups(t *testing.T) {
	workflow := &Workflow{
		ID:        "wf-1",
		ChatbotID: "bot-1",
		Nodes: []*Node{
			{ID: "start", Type: NodeTypeStart, Data: StartData{}},
			{ID: "check", Type: NodeTypeCondition, Data: ConditionData{}},
			{ID: "high", Type: NodeTypeMessage, Data: MessageData{Message: "high"}},
			{ID: "low", Type: NodeTypeMessage, Data: MessageData{Message: "low"}},
		},
		Connections: []*Connection{
			{SourceID: "start", TargetID: "check"},
			{SourceID: "check", TargetID: "high", Condition: ConnectionConditionTrue},
			{SourceID: "check", TargetID: "low", Condition: ConnectionConditionFalse},
		},
	}

	start, ok := workflow.StartNode()
	require.True(t, ok)
	assert.Equal(t, "start", start.ID)

	next, ok := workflow.ConnectionFrom("start")
	require.True(t, ok)
	assert.Equal(t, "check", next.TargetID)

	branch, ok := workflow.BranchFrom("check", BranchLabel(false))
	require.True(t, ok)
	assert.Equal(t, "low", branch.TargetID)

	_, ok = workflow.NodeByID("missing")
	assert.False(t, ok)
}
