package filter

import (
	"encoding/json"
	"fmt"
)

// Condition combines the children of a rule group.
type Condition string

const (
	ConditionAnd Condition = "AND"
	ConditionOr  Condition = "OR"
)

// Node is either a leaf Rule or a nested Group.
type Node interface {
	node()
}

// Rule is a single field/operator/value(s) predicate. It carries no nested
// structure.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    []any    `json:"value"`
}

func (Rule) node() {}

// Group is a boolean combination of rules and nested groups.
// May nest to arbitrary depth.
type Group struct {
	Condition Condition `json:"condition"`
	Rules     []Node    `json:"rules"`
}

func (*Group) node() {}

// UnmarshalJSON decodes the wire shape where each child is either a rule
// object or a nested group, distinguished by the presence of "condition".
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition Condition         `json:"condition"`
		Rules     []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Condition != ConditionAnd && raw.Condition != ConditionOr {
		return fmt.Errorf("invalid group condition %q", raw.Condition)
	}

	g.Condition = raw.Condition
	g.Rules = make([]Node, 0, len(raw.Rules))
	for _, child := range raw.Rules {
		var probe struct {
			Condition *Condition `json:"condition"`
		}
		if err := json.Unmarshal(child, &probe); err != nil {
			return err
		}
		if probe.Condition != nil {
			nested := &Group{}
			if err := json.Unmarshal(child, nested); err != nil {
				return err
			}
			g.Rules = append(g.Rules, nested)
			continue
		}
		var rule Rule
		if err := json.Unmarshal(child, &rule); err != nil {
			return err
		}
		g.Rules = append(g.Rules, rule)
	}
	return nil
}

// ParseGroup decodes a JSON-encoded rule group from the wire.
func ParseGroup(data []byte) (*Group, error) {
	g := &Group{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}

// --- Validated tree ---
//
// Structurally identical to Rule/Group but every leaf carries its resolved
// semantic type, so compilation never re-checks validity. Created fresh per
// request by Validate, never persisted, immutable after creation.

// ValidatedNode is either a ValidatedRule or a nested ValidatedGroup.
type ValidatedNode interface {
	validatedNode()
}

// ValidatedRule is a leaf predicate with its resolved semantic type.
type ValidatedRule struct {
	Rule
	Type SemanticType
}

func (ValidatedRule) validatedNode() {}

// ValidatedGroup mirrors Group over validated children, order preserved.
type ValidatedGroup struct {
	Condition Condition
	Rules     []ValidatedNode
}

func (*ValidatedGroup) validatedNode() {}
