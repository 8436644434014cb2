package filter

import (
	"memberbase/internal/core/apperror"
)

// Validate recursively checks a client-submitted rule group against the
// schema and operator catalog. It returns a fresh validated tree isomorphic
// to the input (same shape, same order) with every leaf's semantic type
// resolved, or the first failure encountered during the walk.
func Validate(schema Schema, group *Group) (*ValidatedGroup, error) {
	validated := &ValidatedGroup{
		Condition: group.Condition,
		Rules:     make([]ValidatedNode, 0, len(group.Rules)),
	}
	for _, child := range group.Rules {
		switch n := child.(type) {
		case *Group:
			vg, err := Validate(schema, n)
			if err != nil {
				return nil, err
			}
			validated.Rules = append(validated.Rules, vg)
		case Rule:
			vr, err := validateRule(schema, n)
			if err != nil {
				return nil, err
			}
			validated.Rules = append(validated.Rules, vr)
		}
	}
	return validated, nil
}

func validateRule(schema Schema, rule Rule) (ValidatedRule, error) {
	desc, ok := schema.Get(rule.Field)
	if !ok {
		return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidField, rule).
			WithDetail("field", rule.Field)
	}

	if IsNullableOperator(rule.Operator) {
		// Text fields may always use empty-checks; everything else must be
		// declared nullable.
		if !desc.Nullable && desc.Type != TypeText {
			return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidOperator, rule).
				WithDetail("field", rule.Field)
		}
		if len(rule.Value) != 0 {
			return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidArgumentCount, rule).
				WithDetail("expected", 0)
		}
		return ValidatedRule{Rule: rule, Type: desc.Type}, nil
	}

	argc, ok := OperatorArgs(desc.Type, rule.Operator)
	if !ok {
		return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidOperator, rule).
			WithDetail("field", rule.Field).
			WithDetail("type", desc.Type)
	}
	if len(rule.Value) != argc {
		return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidArgumentCount, rule).
			WithDetail("expected", argc)
	}

	for _, v := range rule.Value {
		if !matchesKind(desc.Type, v) {
			return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidArgumentType, rule).
				WithDetail("type", desc.Type)
		}
	}

	if desc.Type == TypeDate {
		for _, v := range rule.Value {
			if s, ok := v.(string); !ok || !IsValidDate(s) {
				return ValidatedRule{}, apperror.NewInvalidRule(apperror.ReasonInvalidDateValue, rule)
			}
		}
	}

	return ValidatedRule{Rule: rule, Type: desc.Type}, nil
}

// matchesKind checks that a value's primitive kind matches the expected kind
// for the semantic type: boolean fields take bools, number fields take
// numbers, everything else takes strings.
func matchesKind(t SemanticType, v any) bool {
	switch t {
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	default:
		_, ok := v.(string)
		return ok
	}
}
