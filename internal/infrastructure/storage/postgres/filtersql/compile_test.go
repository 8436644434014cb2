package filtersql

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
	"memberbase/internal/domain/filter"
)

var testSchema = filter.MustSchema(filter.Schema{
	"email":    {Type: filter.TypeText},
	"amount":   {Type: filter.TypeNumber, Nullable: true},
	"joined":   {Type: filter.TypeDate},
	"tags":     {Type: filter.TypeArray, Nullable: true},
	"status":   {Type: filter.TypeEnum, Options: []string{"open", "closed"}},
	"owner_id": {Type: filter.TypeReference},
})

func mustValidate(t *testing.T, group *filter.Group) *filter.ValidatedGroup {
	t.Helper()
	validated, err := filter.Validate(testSchema, group)
	require.NoError(t, err)
	return validated
}

func compileToSQL(t *testing.T, group *filter.Group, opts Options) (string, []any) {
	t.Helper()
	pred, err := Compile(mustValidate(t, group), opts)
	require.NoError(t, err)
	sql, args, err := pred.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		name     string
		rule     filter.Rule
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "equal",
			rule:     filter.Rule{Field: "email", Operator: filter.Equal, Value: []any{"a@b.c"}},
			wantSQL:  "(email = ?)",
			wantArgs: []any{"a@b.c"},
		},
		{
			name:     "not equal",
			rule:     filter.Rule{Field: "status", Operator: filter.NotEqual, Value: []any{"closed"}},
			wantSQL:  "(status <> ?)",
			wantArgs: []any{"closed"},
		},
		{
			name:     "greater than",
			rule:     filter.Rule{Field: "amount", Operator: filter.GreaterThan, Value: []any{float64(5)}},
			wantSQL:  "(amount > ?)",
			wantArgs: []any{float64(5)},
		},
		{
			name:     "between",
			rule:     filter.Rule{Field: "amount", Operator: filter.Between, Value: []any{float64(1), float64(9)}},
			wantSQL:  "(amount BETWEEN ? AND ?)",
			wantArgs: []any{float64(1), float64(9)},
		},
		{
			name:     "begins with",
			rule:     filter.Rule{Field: "email", Operator: filter.BeginsWith, Value: []any{"adm"}},
			wantSQL:  "(email ILIKE ?)",
			wantArgs: []any{"adm%"},
		},
		{
			name:     "contains escapes wildcards",
			rule:     filter.Rule{Field: "email", Operator: filter.Contains, Value: []any{"10%_x"}},
			wantSQL:  "(email ILIKE ?)",
			wantArgs: []any{`%10\%\_x%`},
		},
		{
			name:     "not contains",
			rule:     filter.Rule{Field: "email", Operator: filter.NotContains, Value: []any{"spam"}},
			wantSQL:  "(email NOT ILIKE ?)",
			wantArgs: []any{"%spam%"},
		},
		{
			name:     "array contains",
			rule:     filter.Rule{Field: "tags", Operator: filter.Contains, Value: []any{"vip"}},
			wantSQL:  "(? = ANY(tags))",
			wantArgs: []any{"vip"},
		},
		{
			name:     "array not contains",
			rule:     filter.Rule{Field: "tags", Operator: filter.NotContains, Value: []any{"vip"}},
			wantSQL:  "(NOT (? = ANY(tags)))",
			wantArgs: []any{"vip"},
		},
		{
			name:     "is empty on nullable number",
			rule:     filter.Rule{Field: "amount", Operator: filter.IsEmpty},
			wantSQL:  "(amount IS NULL)",
			wantArgs: nil,
		},
		{
			name:     "is empty on text folds empty string",
			rule:     filter.Rule{Field: "email", Operator: filter.IsEmpty},
			wantSQL:  "((email IS NULL OR email = ?))",
			wantArgs: []any{""},
		},
		{
			name:     "is not empty on array checks cardinality",
			rule:     filter.Rule{Field: "tags", Operator: filter.IsNotEmpty},
			wantSQL:  "((tags IS NOT NULL AND cardinality(tags) > 0))",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := &filter.Group{Condition: filter.ConditionAnd, Rules: []filter.Node{tt.rule}}
			sql, args := compileToSQL(t, group, Options{})
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompile_EmptyGroups(t *testing.T) {
	and := mustValidate(t, &filter.Group{Condition: filter.ConditionAnd})
	pred, err := Compile(and, Options{})
	require.NoError(t, err)
	sql, _, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "TRUE", sql)

	or := mustValidate(t, &filter.Group{Condition: filter.ConditionOr})
	pred, err = Compile(or, Options{})
	require.NoError(t, err)
	sql, _, err = pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "FALSE", sql)
}

func TestCompile_NestedGroups(t *testing.T) {
	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "email", Operator: filter.Equal, Value: []any{"a@b.c"}},
			&filter.Group{
				Condition: filter.ConditionOr,
				Rules: []filter.Node{
					filter.Rule{Field: "status", Operator: filter.Equal, Value: []any{"open"}},
					filter.Rule{Field: "amount", Operator: filter.LessThan, Value: []any{float64(10)}},
				},
			},
		},
	}

	sql, args := compileToSQL(t, group, Options{})
	assert.Equal(t, "(email = ? AND (status = ? OR amount < ?))", sql)
	assert.Equal(t, []any{"a@b.c", "open", float64(10)}, args)
}

func TestCompile_RelativeDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "joined", Operator: filter.GreaterOrEqual, Value: []any{"$now(d:-7)"}},
		},
	}

	sql, args := compileToSQL(t, group, Options{Now: now})
	assert.Equal(t, "(joined >= ?)", sql)
	require.Len(t, args, 1)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), args[0])
}

func TestCompile_MeSubstitution(t *testing.T) {
	principal := &security.Principal{ID: id.New()}
	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "owner_id", Operator: filter.Equal, Value: []any{"me"}},
		},
	}

	sql, args := compileToSQL(t, group, Options{Principal: principal})
	assert.Equal(t, "(owner_id = ?)", sql)
	assert.Equal(t, []any{principal.ID}, args)
}

func TestCompile_MeWithoutPrincipal(t *testing.T) {
	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "owner_id", Operator: filter.Equal, Value: []any{"me"}},
		},
	}

	_, err := Compile(mustValidate(t, group), Options{})
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthorized(err))
}

func TestCompile_Prefix(t *testing.T) {
	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "email", Operator: filter.Equal, Value: []any{"a@b.c"}},
		},
	}

	sql, _ := compileToSQL(t, group, Options{Prefix: "c."})
	assert.Equal(t, "(c.email = ?)", sql)
}

func TestCompile_HandlerDispatch(t *testing.T) {
	called := false
	opts := Options{
		Handlers: map[string]Handler{
			"tags": func(rule filter.ValidatedRule, opts Options) (squirrel.Sqlizer, error) {
				called = true
				return squirrel.Expr("id IN (SELECT contact_id FROM assignments WHERE tag_id = ?)", rule.Value[0]), nil
			},
		},
	}

	group := &filter.Group{
		Condition: filter.ConditionAnd,
		Rules: []filter.Node{
			filter.Rule{Field: "tags", Operator: filter.Contains, Value: []any{"vip"}},
		},
	}

	sql, args := compileToSQL(t, group, opts)
	assert.True(t, called)
	assert.Equal(t, "(id IN (SELECT contact_id FROM assignments WHERE tag_id = ?))", sql)
	assert.Equal(t, []any{"vip"}, args)
}
