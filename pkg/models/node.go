package models

// NodeType identifies a step variant in a flow. The set is closed: every
// variant carries its own configuration payload type (see node_config.go)
// and the validator matches exhaustively over it.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeMessage     NodeType = "message"
	NodeTypeQuestion    NodeType = "question"
	NodeTypeCondition   NodeType = "condition"
	NodeTypeAction      NodeType = "action"
	NodeTypeIntegration NodeType = "integration"
	NodeTypeEnd         NodeType = "end"
)

// KnownNodeTypes lists every valid node type.
var KnownNodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeMessage,
	NodeTypeQuestion,
	NodeTypeCondition,
	NodeTypeAction,
	NodeTypeIntegration,
	NodeTypeEnd,
}

// IsKnownNodeType reports whether t is part of the closed variant set.
func IsKnownNodeType(t NodeType) bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Position is the node's location on the builder canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Connection is a directed, labeled edge between two nodes in the same flow.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	Label        string `json:"label,omitempty"`
}

// FlowNode represents a typed step in a flow. Configuration is carried on
// the wire as a loose map (the flow JSON shape doubles as the template and
// sync payload format) and decoded into a typed payload per node type.
type FlowNode struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	Type          NodeType       `json:"type"          validate:"required"`
	Name          string         `json:"name"          validate:"required,min=1"`
	Description   string         `json:"description"`
	Position      Position       `json:"position"`
	Configuration map[string]any `json:"configuration,omitempty"`
	Connections   []*Connection  `json:"connections"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// OutgoingTargets returns the target node ids of every outgoing connection.
func (n *FlowNode) OutgoingTargets() []string {
	targets := make([]string, 0, len(n.Connections))
	for _, conn := range n.Connections {
		targets = append(targets, conn.TargetNodeID)
	}

	return targets
}
