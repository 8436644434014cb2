// Package filtersql compiles validated rule trees into parameterized squirrel
// predicates ready to embed in a store query. The compiler never executes a
// query itself.
package filtersql

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/security"
	"memberbase/internal/domain/filter"
)

// Handler fully owns rendering of one field's predicates. Used for virtual
// fields backed by relations (e.g. tag membership sub-queries).
type Handler func(rule filter.ValidatedRule, opts Options) (squirrel.Sqlizer, error)

// Options scope one compilation run.
type Options struct {
	// Prefix is prepended to every column reference so the same compiler can
	// run both in a top-level query and inside a correlated sub-query.
	Prefix string

	// Principal resolves the 'me' literal on reference fields.
	Principal *security.Principal

	// Handlers maps field names to custom renderers, resolved once per query.
	Handlers map[string]Handler

	// Now anchors relative date expressions. Zero means wall clock.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Compile renders a validated rule group into a boolean combination of
// parameterized field comparisons. An empty AND group compiles to an
// always-true predicate and an empty OR group to an always-false one, so a
// degenerate tree never silently matches or excludes everything.
func Compile(group *filter.ValidatedGroup, opts Options) (squirrel.Sqlizer, error) {
	if len(group.Rules) == 0 {
		if group.Condition == filter.ConditionOr {
			return squirrel.Expr("FALSE"), nil
		}
		return squirrel.Expr("TRUE"), nil
	}

	parts := make([]squirrel.Sqlizer, 0, len(group.Rules))
	for _, child := range group.Rules {
		switch n := child.(type) {
		case *filter.ValidatedGroup:
			p, err := Compile(n, opts)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		case filter.ValidatedRule:
			p, err := compileRule(n, opts)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
	}

	if group.Condition == filter.ConditionOr {
		return squirrel.Or(parts), nil
	}
	return squirrel.And(parts), nil
}

func compileRule(rule filter.ValidatedRule, opts Options) (squirrel.Sqlizer, error) {
	if h, ok := opts.Handlers[rule.Field]; ok {
		return h(rule, opts)
	}

	col := opts.Prefix + rule.Field

	if filter.IsNullableOperator(rule.Operator) {
		return compileEmptyCheck(col, rule)
	}

	args, err := resolveArgs(rule, opts)
	if err != nil {
		return nil, err
	}

	if rule.Type == filter.TypeArray {
		return compileArrayRule(col, rule, args)
	}

	switch rule.Operator {
	case filter.Equal:
		return squirrel.Eq{col: args[0]}, nil
	case filter.NotEqual:
		return squirrel.NotEq{col: args[0]}, nil
	case filter.LessThan:
		return squirrel.Lt{col: args[0]}, nil
	case filter.LessOrEqual:
		return squirrel.LtOrEq{col: args[0]}, nil
	case filter.GreaterThan:
		return squirrel.Gt{col: args[0]}, nil
	case filter.GreaterOrEqual:
		return squirrel.GtOrEq{col: args[0]}, nil
	case filter.Between:
		return squirrel.Expr(col+" BETWEEN ? AND ?", args[0], args[1]), nil
	case filter.NotBetween:
		return squirrel.Expr(col+" NOT BETWEEN ? AND ?", args[0], args[1]), nil
	case filter.BeginsWith:
		return squirrel.ILike{col: escapeLike(args[0]) + "%"}, nil
	case filter.EndsWith:
		return squirrel.ILike{col: "%" + escapeLike(args[0])}, nil
	case filter.Contains:
		return squirrel.ILike{col: "%" + escapeLike(args[0]) + "%"}, nil
	case filter.NotContains:
		return squirrel.NotILike{col: "%" + escapeLike(args[0]) + "%"}, nil
	}

	// Unreachable on a validated tree.
	return nil, apperror.NewInternal(fmt.Errorf("no template for operator %q", rule.Operator))
}

// compileEmptyCheck renders the zero-argument empty/not-empty operators.
// Text fields treat NULL and '' as the same empty state.
func compileEmptyCheck(col string, rule filter.ValidatedRule) (squirrel.Sqlizer, error) {
	empty := rule.Operator == filter.IsEmpty
	switch rule.Type {
	case filter.TypeText:
		if empty {
			return squirrel.Or{squirrel.Eq{col: nil}, squirrel.Eq{col: ""}}, nil
		}
		return squirrel.And{squirrel.NotEq{col: nil}, squirrel.NotEq{col: ""}}, nil
	case filter.TypeArray:
		if empty {
			return squirrel.Or{squirrel.Eq{col: nil}, squirrel.Expr("cardinality(" + col + ") = 0")}, nil
		}
		return squirrel.And{squirrel.NotEq{col: nil}, squirrel.Expr("cardinality(" + col + ") > 0")}, nil
	default:
		if empty {
			return squirrel.Eq{col: nil}, nil
		}
		return squirrel.NotEq{col: nil}, nil
	}
}

func compileArrayRule(col string, rule filter.ValidatedRule, args []any) (squirrel.Sqlizer, error) {
	switch rule.Operator {
	case filter.Contains:
		return squirrel.Expr("? = ANY("+col+")", args[0]), nil
	case filter.NotContains:
		return squirrel.Expr("NOT (? = ANY("+col+"))", args[0]), nil
	}
	return nil, apperror.NewInternal(fmt.Errorf("no array template for operator %q", rule.Operator))
}

// resolveArgs converts rule values into bound parameters. Date strings are
// resolved through the relative date parser; the literal 'me' on a reference
// field becomes the current principal's identifier, never a client-controlled
// string in the parameter list.
func resolveArgs(rule filter.ValidatedRule, opts Options) ([]any, error) {
	args := make([]any, len(rule.Value))
	for i, v := range rule.Value {
		switch rule.Type {
		case filter.TypeDate:
			instant, _, err := filter.ParseDate(v.(string), opts.now())
			if err != nil {
				return nil, apperror.NewInvalidRule(apperror.ReasonInvalidDateValue, rule.Rule).WithCause(err)
			}
			args[i] = instant
		case filter.TypeReference:
			if s, ok := v.(string); ok && s == "me" {
				if opts.Principal == nil {
					return nil, apperror.NewUnauthorized("'me' filter requires an authenticated caller")
				}
				args[i] = opts.Principal.ID
				continue
			}
			args[i] = v
		default:
			args[i] = v
		}
	}
	return args, nil
}

// escapeLike protects user input embedded in pattern-match templates from
// acting as wildcards.
func escapeLike(v any) string {
	s, _ := v.(string)
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
