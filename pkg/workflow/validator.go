package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowbot-io/flowbot/pkg/models"
)

var (
	// ErrMissingStartNode is returned when a workflow has no start node.
	ErrMissingStartNode = errors.New("workflow must contain exactly one start node")
	// ErrMultipleStartNodes is returned when a workflow has more than one start node.
	ErrMultipleStartNodes = errors.New("workflow must not contain more than one start node")
	// ErrDuplicateNodeID is returned when two nodes share an ID.
	ErrDuplicateNodeID = errors.New("duplicate node id")
	// ErrDanglingConnection is returned when a connection references a missing node.
	ErrDanglingConnection = errors.New("connection references unknown node")
	// ErrInvalidNodePayload is returned when a node payload fails schema validation.
	ErrInvalidNodePayload = errors.New("invalid node payload")
)

// nodePayloadSchemas validates the shape of each node type's data payload.
// Unreachable nodes are deliberately not rejected: draft editing routinely
// leaves dangling branches, and the engine never visits them.
var nodePayloadSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeMessage: {
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message":      map[string]any{"type": "string", "minLength": 1},
			"message_type": map[string]any{"type": "string"},
		},
	},
	models.NodeTypeCondition: {
		"type":     "object",
		"required": []any{"condition"},
		"properties": map[string]any{
			"condition": map[string]any{
				"type":     "object",
				"required": []any{"field", "operator"},
				"properties": map[string]any{
					"field":    map[string]any{"type": "string", "minLength": 1},
					"operator": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
	models.NodeTypeInput: {
		"type":     "object",
		"required": []any{"prompt"},
		"properties": map[string]any{
			"prompt":     map[string]any{"type": "string", "minLength": 1},
			"input_type": map[string]any{"type": "string"},
			"options":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	},
	models.NodeTypeAction: {
		"type":     "object",
		"required": []any{"action"},
		"properties": map[string]any{
			"action": map[string]any{
				"type":     "object",
				"required": []any{"type"},
				"properties": map[string]any{
					"type":         map[string]any{"type": "string", "minLength": 1},
					"variable":     map[string]any{"type": "string"},
					"expression":   map[string]any{"type": "string"},
					"milliseconds": map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
	},
	models.NodeTypeIntegration: {
		"type":     "object",
		"required": []any{"integration"},
		"properties": map[string]any{
			"integration": map[string]any{
				"type":     "object",
				"required": []any{"type", "url"},
				"properties": map[string]any{
					"type":   map[string]any{"type": "string", "minLength": 1},
					"url":    map[string]any{"type": "string", "minLength": 1},
					"method": map[string]any{"type": "string"},
				},
			},
		},
	},
	models.NodeTypeContext: {
		"type":     "object",
		"required": []any{"operation"},
		"properties": map[string]any{
			"operation": map[string]any{"type": "string", "minLength": 1},
			"key":       map[string]any{"type": "string"},
		},
	},
	models.NodeTypeJump: {
		"type":     "object",
		"required": []any{"target_node_id"},
		"properties": map[string]any{
			"target_node_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

// Validate checks a workflow's structural invariants: exactly one start node,
// unique node IDs, connection endpoints that exist, and well-formed node
// payloads. Invoked on create and on every update that touches the graph.
func Validate(workflow *models.Workflow) error {
	nodeIDs := make(map[string]struct{}, len(workflow.Nodes))
	startCount := 0

	for _, node := range workflow.Nodes {
		if _, seen := nodeIDs[node.ID]; seen {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}

		nodeIDs[node.ID] = struct{}{}

		if node.Type == models.NodeTypeStart {
			startCount++
		}

		if err := validateNodePayload(node); err != nil {
			return err
		}
	}

	if startCount == 0 {
		return ErrMissingStartNode
	}

	if startCount > 1 {
		return ErrMultipleStartNodes
	}

	for _, conn := range workflow.Connections {
		if _, ok := nodeIDs[conn.SourceID]; !ok {
			return fmt.Errorf("%w: source %s", ErrDanglingConnection, conn.SourceID)
		}

		if _, ok := nodeIDs[conn.TargetID]; !ok {
			return fmt.Errorf("%w: target %s", ErrDanglingConnection, conn.TargetID)
		}
	}

	// Jump targets live in node payloads, not connections.
	for _, node := range workflow.Nodes {
		if jump, ok := node.Data.(models.JumpData); ok {
			if _, exists := nodeIDs[jump.TargetNodeID]; !exists {
				return fmt.Errorf("%w: jump target %s", ErrDanglingConnection, jump.TargetNodeID)
			}
		}
	}

	return nil
}

func validateNodePayload(node *models.Node) error {
	schema, ok := nodePayloadSchemas[node.Type]
	if !ok {
		// start and end carry empty payloads.
		return nil
	}

	payload, err := json.Marshal(node.Data)
	if err != nil {
		return fmt.Errorf("%w: node %s: %w", ErrInvalidNodePayload, node.ID, err)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: node %s: %w", ErrInvalidNodePayload, node.ID, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%w: node %s: %s", ErrInvalidNodePayload, node.ID, strings.Join(descriptions, "; "))
	}

	return nil
}
