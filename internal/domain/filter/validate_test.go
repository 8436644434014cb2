package filter

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbase/internal/core/apperror"
)

var testSchema = MustSchema(Schema{
	"email":        {Type: TypeText},
	"nickname":     {Type: TypeText, Nullable: true},
	"amount":       {Type: TypeNumber, Nullable: true},
	"active":       {Type: TypeBoolean},
	"joined":       {Type: TypeDate},
	"tags":         {Type: TypeArray, Nullable: true},
	"status":       {Type: TypeEnum, Options: []string{"open", "closed"}},
	"organization": {Type: TypeReference},
})

func TestValidate_ResolvesTypes(t *testing.T) {
	group := &Group{
		Condition: ConditionAnd,
		Rules: []Node{
			Rule{Field: "email", Operator: Contains, Value: []any{"@example.org"}},
			&Group{
				Condition: ConditionOr,
				Rules: []Node{
					Rule{Field: "amount", Operator: Between, Value: []any{float64(10), float64(20)}},
					Rule{Field: "joined", Operator: GreaterThan, Value: []any{"$now(M:-6)"}},
				},
			},
		},
	}

	validated, err := Validate(testSchema, group)
	require.NoError(t, err)
	require.Len(t, validated.Rules, 2)

	leaf, ok := validated.Rules[0].(ValidatedRule)
	require.True(t, ok)
	assert.Equal(t, TypeText, leaf.Type)
	assert.Equal(t, "email", leaf.Field)

	nested, ok := validated.Rules[1].(*ValidatedGroup)
	require.True(t, ok)
	assert.Equal(t, ConditionOr, nested.Condition)
	require.Len(t, nested.Rules, 2)
	assert.Equal(t, TypeNumber, nested.Rules[0].(ValidatedRule).Type)
	assert.Equal(t, TypeDate, nested.Rules[1].(ValidatedRule).Type)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name       string
		rule       Rule
		wantReason string
	}{
		{
			name:       "unknown field",
			rule:       Rule{Field: "ssn", Operator: Equal, Value: []any{"x"}},
			wantReason: apperror.ReasonInvalidField,
		},
		{
			name:       "operator not in catalog for type",
			rule:       Rule{Field: "active", Operator: Contains, Value: []any{"x"}},
			wantReason: apperror.ReasonInvalidOperator,
		},
		{
			name:       "empty-check on non-nullable non-text field",
			rule:       Rule{Field: "active", Operator: IsEmpty},
			wantReason: apperror.ReasonInvalidOperator,
		},
		{
			name:       "empty-check with arguments",
			rule:       Rule{Field: "nickname", Operator: IsEmpty, Value: []any{"x"}},
			wantReason: apperror.ReasonInvalidArgumentCount,
		},
		{
			name:       "between with one argument",
			rule:       Rule{Field: "amount", Operator: Between, Value: []any{float64(1)}},
			wantReason: apperror.ReasonInvalidArgumentCount,
		},
		{
			name:       "boolean field with string value",
			rule:       Rule{Field: "active", Operator: Equal, Value: []any{"true"}},
			wantReason: apperror.ReasonInvalidArgumentType,
		},
		{
			name:       "number field with string value",
			rule:       Rule{Field: "amount", Operator: Equal, Value: []any{"10"}},
			wantReason: apperror.ReasonInvalidArgumentType,
		},
		{
			name:       "unparseable date value",
			rule:       Rule{Field: "joined", Operator: LessThan, Value: []any{"tomorrow"}},
			wantReason: apperror.ReasonInvalidDateValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := &Group{Condition: ConditionAnd, Rules: []Node{tt.rule}}
			_, err := Validate(testSchema, group)
			require.Error(t, err)

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeInvalidRule, appErr.Code)
			assert.Equal(t, tt.wantReason, appErr.Details["reason"])
		})
	}
}

func TestValidate_EmptyCheckOnTextAlwaysAllowed(t *testing.T) {
	// email is not declared nullable, but text fields always admit
	// empty-checks (empty string counts as empty).
	group := &Group{
		Condition: ConditionAnd,
		Rules:     []Node{Rule{Field: "email", Operator: IsNotEmpty}},
	}
	validated, err := Validate(testSchema, group)
	require.NoError(t, err)
	assert.Equal(t, TypeText, validated.Rules[0].(ValidatedRule).Type)
}

func TestParseGroup_NestedWire(t *testing.T) {
	doc := `{
		"condition": "AND",
		"rules": [
			{"field": "email", "operator": "contains", "value": ["@"]},
			{"condition": "OR", "rules": [
				{"field": "status", "operator": "equal", "value": ["open"]},
				{"field": "tags", "operator": "is_empty", "value": []}
			]}
		]
	}`

	group, err := ParseGroup([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ConditionAnd, group.Condition)
	require.Len(t, group.Rules, 2)

	_, isRule := group.Rules[0].(Rule)
	assert.True(t, isRule)

	nested, isGroup := group.Rules[1].(*Group)
	require.True(t, isGroup)
	assert.Equal(t, ConditionOr, nested.Condition)
	assert.Len(t, nested.Rules, 2)
}

func TestParseGroup_RejectsBadCondition(t *testing.T) {
	_, err := ParseGroup([]byte(`{"condition": "XOR", "rules": []}`))
	require.Error(t, err)
}

// genValidRule produces rules that are valid against testSchema.
func genValidRule() gopter.Gen {
	return gen.OneConstOf(
		Rule{Field: "email", Operator: Equal, Value: []any{"a@b.c"}},
		Rule{Field: "email", Operator: BeginsWith, Value: []any{"a"}},
		Rule{Field: "nickname", Operator: IsEmpty},
		Rule{Field: "amount", Operator: Between, Value: []any{float64(1), float64(2)}},
		Rule{Field: "active", Operator: Equal, Value: []any{true}},
		Rule{Field: "joined", Operator: GreaterOrEqual, Value: []any{"$now(d:-7)"}},
		Rule{Field: "status", Operator: NotEqual, Value: []any{"closed"}},
		Rule{Field: "organization", Operator: Equal, Value: []any{"me"}},
	)
}

func genGroup(depth int) gopter.Gen {
	leafSlice := gen.SliceOf(genValidRule())
	if depth <= 0 {
		return leafSlice.Map(func(rules []Rule) *Group {
			nodes := make([]Node, len(rules))
			for i, r := range rules {
				nodes[i] = r
			}
			return &Group{Condition: ConditionAnd, Rules: nodes}
		})
	}
	return gopter.CombineGens(
		gen.OneConstOf(ConditionAnd, ConditionOr),
		leafSlice,
		genGroup(depth-1),
	).Map(func(vs []any) *Group {
		nodes := []Node{}
		for _, r := range vs[1].([]Rule) {
			nodes = append(nodes, r)
		}
		nodes = append(nodes, vs[2].(*Group))
		return &Group{Condition: vs[0].(Condition), Rules: nodes}
	})
}

func countLeaves(g *Group) int {
	n := 0
	for _, child := range g.Rules {
		switch c := child.(type) {
		case *Group:
			n += countLeaves(c)
		case Rule:
			n++
		}
	}
	return n
}

func countValidatedLeaves(g *ValidatedGroup) int {
	n := 0
	for _, child := range g.Rules {
		switch c := child.(type) {
		case *ValidatedGroup:
			n += countValidatedLeaves(c)
		case ValidatedRule:
			n++
		}
	}
	return n
}

// The validated tree must be isomorphic to the input: same shape, same leaf
// count, same order, with every leaf's type resolved.
func TestValidate_Isomorphism(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validated tree preserves shape", prop.ForAll(
		func(g *Group) bool {
			validated, err := Validate(testSchema, g)
			if err != nil {
				return false
			}
			if validated.Condition != g.Condition {
				return false
			}
			if len(validated.Rules) != len(g.Rules) {
				return false
			}
			return countValidatedLeaves(validated) == countLeaves(g)
		},
		genGroup(2),
	))

	properties.TestingRun(t)
}
