// Package flow provides structural validation for conversation flow graphs
// and schema checking for the flow JSON interchange shape.
package flow

import (
	"fmt"

	"github.com/reservly/flowengine/pkg/models"
)

// Issue codes reported by Validate. Errors block execution; warnings are
// reported but the flow is still saved — the caller decides whether to
// treat them as blocking.
const (
	CodeUnknownNodeType         = "UNKNOWN_NODE_TYPE"
	CodeMissingStartNode        = "MISSING_START_NODE"
	CodeMultipleStartNodes      = "MULTIPLE_START_NODES"
	CodeMissingMessageText      = "MISSING_MESSAGE_TEXT"
	CodeMissingQuestionText     = "MISSING_QUESTION_TEXT"
	CodeMissingVariableName     = "MISSING_VARIABLE_NAME"
	CodeMissingChoices          = "MISSING_CHOICES"
	CodeMissingConditions       = "MISSING_CONDITIONS"
	CodeMissingActionType       = "MISSING_ACTION_TYPE"
	CodeMissingIntegrationType  = "MISSING_INTEGRATION_TYPE"
	CodeInvalidConnectionTarget = "INVALID_CONNECTION_TARGET"
	CodeInvalidConfiguration    = "INVALID_CONFIGURATION"

	CodeUnreachableNode       = "UNREACHABLE_NODE"
	CodePotentialInfiniteLoop = "POTENTIAL_INFINITE_LOOP"
	CodeStartNodeNoOutgoing   = "START_NODE_NO_OUTGOING"
	CodeConditionSingleBranch = "CONDITION_SINGLE_BRANCH"
	CodeEndNodeHasOutgoing    = "END_NODE_HAS_OUTGOING"
)

// Issue is one validation finding bound to a node where applicable.
type Issue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// ValidationResult aggregates every finding from every pass. All passes run
// even when an earlier one fails, so the caller sees everything at once.
type ValidationResult struct {
	Valid    bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *ValidationResult) addError(code, nodeID, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, NodeID: nodeID, Message: message})
}

func (r *ValidationResult) addWarning(code, nodeID, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, NodeID: nodeID, Message: message})
}

// Validate runs every structural pass over the flow graph: per-node
// configuration contracts, connection target existence, reachability from
// the start node, and cycle detection.
func Validate(f *models.Flow) *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]Issue, 0),
		Warnings: make([]Issue, 0),
	}

	validateStartNode(f, result)

	for _, node := range f.Nodes {
		validateNodeConfiguration(node, result)
		validateHeuristics(node, result)
	}

	validateConnectionTargets(f, result)
	validateReachability(f, result)
	validateCycles(f, result)

	result.Valid = len(result.Errors) == 0

	return result
}

func validateStartNode(f *models.Flow, result *ValidationResult) {
	var startCount int

	for _, node := range f.Nodes {
		if node.Type == models.NodeTypeStart {
			startCount++
		}
	}

	switch {
	case startCount == 0:
		result.addError(CodeMissingStartNode, "", "flow has no start node")
	case startCount > 1:
		result.addError(CodeMultipleStartNodes, "", fmt.Sprintf("flow has %d start nodes, expected exactly one", startCount))
	}
}

// ValidateNode checks a single node's required-field contract. Used by the
// node mutation path, which re-validates configuration before persisting.
func ValidateNode(node *models.FlowNode) []Issue {
	result := &ValidationResult{Errors: make([]Issue, 0)}
	validateNodeConfiguration(node, result)

	return result.Errors
}

// validateNodeConfiguration checks the required-field contract of each node
// type. The match is exhaustive over the closed variant set.
func validateNodeConfiguration(node *models.FlowNode, result *ValidationResult) {
	config, err := models.DecodeConfig(node)
	if err != nil {
		if !models.IsKnownNodeType(node.Type) {
			result.addError(CodeUnknownNodeType, node.ID, fmt.Sprintf("node %q has unknown type %q", node.Name, node.Type))
		} else {
			result.addError(CodeInvalidConfiguration, node.ID, fmt.Sprintf("node %q configuration is malformed: %v", node.Name, err))
		}

		return
	}

	switch cfg := config.(type) {
	case models.StartConfig, models.EndConfig:
		// No required fields.
	case models.MessageConfig:
		if cfg.MessageText == "" {
			result.addError(CodeMissingMessageText, node.ID, fmt.Sprintf("message node %q requires message_text", node.Name))
		}
	case models.QuestionConfig:
		if cfg.QuestionText == "" {
			result.addError(CodeMissingQuestionText, node.ID, fmt.Sprintf("question node %q requires question_text", node.Name))
		}

		if cfg.VariableName == "" {
			result.addError(CodeMissingVariableName, node.ID, fmt.Sprintf("question node %q requires variable_name to bind the answer", node.Name))
		}

		if cfg.InputType == models.InputTypeChoice && len(cfg.Choices) == 0 {
			result.addError(CodeMissingChoices, node.ID, fmt.Sprintf("question node %q with choice input requires a non-empty choice list", node.Name))
		}
	case models.ConditionConfig:
		if len(cfg.Conditions) == 0 {
			result.addError(CodeMissingConditions, node.ID, fmt.Sprintf("condition node %q requires at least one condition clause", node.Name))
		}
	case models.ActionConfig:
		if cfg.ActionType == "" {
			result.addError(CodeMissingActionType, node.ID, fmt.Sprintf("action node %q requires action_type", node.Name))
		}
	case models.IntegrationConfig:
		if cfg.IntegrationType == "" {
			result.addError(CodeMissingIntegrationType, node.ID, fmt.Sprintf("integration node %q requires integration_type", node.Name))
		}
	}
}

// validateHeuristics flags suspicious but non-fatal graph shapes.
func validateHeuristics(node *models.FlowNode, result *ValidationResult) {
	switch node.Type {
	case models.NodeTypeStart:
		if len(node.Connections) == 0 {
			result.addWarning(CodeStartNodeNoOutgoing, node.ID, fmt.Sprintf("start node %q has no outgoing connections", node.Name))
		}
	case models.NodeTypeCondition:
		if len(node.Connections) < 2 {
			result.addWarning(CodeConditionSingleBranch, node.ID, fmt.Sprintf("condition node %q has fewer than two outgoing connections", node.Name))
		}
	case models.NodeTypeEnd:
		if len(node.Connections) > 0 {
			result.addWarning(CodeEndNodeHasOutgoing, node.ID, fmt.Sprintf("end node %q has outgoing connections", node.Name))
		}
	}
}

func validateConnectionTargets(f *models.Flow, result *ValidationResult) {
	ids := make(map[string]bool, len(f.Nodes))
	for _, node := range f.Nodes {
		ids[node.ID] = true
	}

	for _, node := range f.Nodes {
		for _, conn := range node.Connections {
			if !ids[conn.TargetNodeID] {
				result.addError(CodeInvalidConnectionTarget, node.ID,
					fmt.Sprintf("connection %s from node %q targets missing node %s", conn.ID, node.Name, conn.TargetNodeID))
			}
		}
	}
}

// validateReachability walks the graph breadth-first from the start node.
// Unvisited nodes are warnings: a disconnected node may be intentionally
// parked during editing.
func validateReachability(f *models.Flow, result *ValidationResult) {
	start := f.StartNode()
	if start == nil {
		return
	}

	nodes := make(map[string]*models.FlowNode, len(f.Nodes))
	for _, node := range f.Nodes {
		nodes[node.ID] = node
	}

	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, ok := nodes[current]
		if !ok {
			continue
		}

		for _, target := range node.OutgoingTargets() {
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}

	for _, node := range f.Nodes {
		if !visited[node.ID] {
			result.addWarning(CodeUnreachableNode, node.ID, fmt.Sprintf("node %q is not reachable from the start node", node.Name))
		}
	}
}

type nodeColor int

const (
	colorWhite nodeColor = iota // unvisited
	colorGrey                   // on the recursion stack
	colorBlack                  // fully explored
)

// validateCycles runs a depth-first traversal with grey/white/black
// coloring. A back-edge to a grey node is a warning, not an error: some
// flows intentionally loop with an exit condition evaluated at runtime.
func validateCycles(f *models.Flow, result *ValidationResult) {
	nodes := make(map[string]*models.FlowNode, len(f.Nodes))
	colors := make(map[string]nodeColor, len(f.Nodes))

	for _, node := range f.Nodes {
		nodes[node.ID] = node
		colors[node.ID] = colorWhite
	}

	reported := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		colors[id] = colorGrey

		node := nodes[id]
		for _, target := range node.OutgoingTargets() {
			targetNode, ok := nodes[target]
			if !ok {
				continue // dangling targets reported by the connection pass
			}

			switch colors[target] {
			case colorWhite:
				visit(target)
			case colorGrey:
				if !reported[target] {
					reported[target] = true
					result.addWarning(CodePotentialInfiniteLoop, target,
						fmt.Sprintf("node %q is part of a cycle", targetNode.Name))
				}
			case colorBlack:
				// Already explored, no back-edge.
			}
		}

		colors[id] = colorBlack
	}

	for _, node := range f.Nodes {
		if colors[node.ID] == colorWhite {
			visit(node.ID)
		}
	}
}
