// Package models defines the core domain models for conversation workflow execution.
package models

import "time"

// Workflow represents a scripted conversation flow owned by a single chatbot.
// The node set and connections form a directed graph with exactly one start node.
type Workflow struct {
	ID          string        `json:"id"`
	ChatbotID   string        `json:"chatbot_id"  validate:"required"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	IsActive    bool          `json:"is_active"`
	CreatedBy   string        `json:"created_by"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NodeByID returns the node with the given ID, if present.
func (w *Workflow) NodeByID(nodeID string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}

	return nil, false
}

// StartNode returns the workflow's start node, if present.
func (w *Workflow) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeStart {
			return node, true
		}
	}

	return nil, false
}

// ConnectionsFrom returns all outgoing connections of a node, in declaration order.
func (w *Workflow) ConnectionsFrom(nodeID string) []*Connection {
	connections := make([]*Connection, 0)

	for _, conn := range w.Connections {
		if conn.SourceID == nodeID {
			connections = append(connections, conn)
		}
	}

	return connections
}

// ConnectionFrom returns the first outgoing connection of a node. Used for
// node types with a single unlabeled outgoing edge.
func (w *Workflow) ConnectionFrom(nodeID string) (*Connection, bool) {
	for _, conn := range w.Connections {
		if conn.SourceID == nodeID {
			return conn, true
		}
	}

	return nil, false
}

// BranchFrom returns the outgoing connection of a condition node whose label
// matches the evaluation result ("true" or "false").
func (w *Workflow) BranchFrom(nodeID, label string) (*Connection, bool) {
	for _, conn := range w.Connections {
		if conn.SourceID == nodeID && conn.Condition == label {
			return conn, true
		}
	}

	return nil, false
}

// BranchLabel converts a condition evaluation result into a connection label.
func BranchLabel(result bool) string {
	if result {
		return ConnectionConditionTrue
	}

	return ConnectionConditionFalse
}

// Connection is a directed edge between two nodes. Condition is set only on
// edges leaving a condition node and selects the branch to follow.
type Connection struct {
	SourceID  string `json:"source_id" validate:"required"`
	TargetID  string `json:"target_id" validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// Connection condition labels.
const (
	ConnectionConditionTrue  = "true"
	ConnectionConditionFalse = "false"
)
