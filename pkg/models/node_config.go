package models

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// NodeConfig is the typed configuration payload of a node variant.
type NodeConfig interface {
	// NodeType returns the variant this payload belongs to.
	NodeType() NodeType
}

// StartConfig carries no required fields.
type StartConfig struct{}

func (StartConfig) NodeType() NodeType { return NodeTypeStart }

// MessageConfig configures a message node.
type MessageConfig struct {
	MessageText string `json:"message_text" mapstructure:"message_text"`
}

func (MessageConfig) NodeType() NodeType { return NodeTypeMessage }

// QuestionInputType constrains how a question node accepts its answer.
type QuestionInputType string

const (
	InputTypeText   QuestionInputType = "text"
	InputTypeNumber QuestionInputType = "number"
	InputTypeChoice QuestionInputType = "choice"
)

// QuestionConfig configures a question node. The answer is bound to the
// flow variable named by VariableName.
type QuestionConfig struct {
	QuestionText string            `json:"question_text" mapstructure:"question_text"`
	VariableName string            `json:"variable_name" mapstructure:"variable_name"`
	InputType    QuestionInputType `json:"input_type"    mapstructure:"input_type"`
	Choices      []string          `json:"choices"       mapstructure:"choices"`
}

func (QuestionConfig) NodeType() NodeType { return NodeTypeQuestion }

// ConditionClause is a single branch predicate on a condition node.
type ConditionClause struct {
	Variable string `json:"variable" mapstructure:"variable"`
	Operator string `json:"operator" mapstructure:"operator"`
	Value    any    `json:"value"    mapstructure:"value"`
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Conditions []ConditionClause `json:"conditions" mapstructure:"conditions"`
}

func (ConditionConfig) NodeType() NodeType { return NodeTypeCondition }

// ActionConfig configures an action node.
type ActionConfig struct {
	ActionType string         `json:"action_type" mapstructure:"action_type"`
	Parameters map[string]any `json:"parameters"  mapstructure:"parameters"`
}

func (ActionConfig) NodeType() NodeType { return NodeTypeAction }

// IntegrationConfig configures an integration node.
type IntegrationConfig struct {
	IntegrationType string         `json:"integration_type" mapstructure:"integration_type"`
	Parameters      map[string]any `json:"parameters"       mapstructure:"parameters"`
}

func (IntegrationConfig) NodeType() NodeType { return NodeTypeIntegration }

// EndConfig carries no required fields.
type EndConfig struct{}

func (EndConfig) NodeType() NodeType { return NodeTypeEnd }

// DecodeConfig decodes a node's loose configuration map into the typed
// payload for its variant. The match is exhaustive over the closed set.
func DecodeConfig(node *FlowNode) (NodeConfig, error) {
	decode := func(out any) error {
		if node.Configuration == nil {
			return nil
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}

		return decoder.Decode(node.Configuration)
	}

	switch node.Type {
	case NodeTypeStart:
		return StartConfig{}, nil
	case NodeTypeMessage:
		var cfg MessageConfig

		return cfg, decode(&cfg)
	case NodeTypeQuestion:
		var cfg QuestionConfig

		return cfg, decode(&cfg)
	case NodeTypeCondition:
		var cfg ConditionConfig

		return cfg, decode(&cfg)
	case NodeTypeAction:
		var cfg ActionConfig

		return cfg, decode(&cfg)
	case NodeTypeIntegration:
		var cfg IntegrationConfig

		return cfg, decode(&cfg)
	case NodeTypeEnd:
		return EndConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown node type: %s", node.Type)
	}
}
