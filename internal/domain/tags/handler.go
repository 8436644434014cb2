package tags

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"memberbase/internal/core/apperror"
	"memberbase/internal/domain/filter"
	"memberbase/internal/infrastructure/storage/postgres/filtersql"
)

// FilterHandler returns the custom field handler implementing tag membership
// predicates on the owning entity: "has/does not have tag X", "has any tag",
// "has no tag". Each renders a correlated sub-query against the assignment
// table wrapped in IN/NOT IN, so the same handler works at the top level and
// inside other sub-queries via the compile prefix.
func (m *Manager) FilterHandler(entityIDColumn string) filtersql.Handler {
	return func(rule filter.ValidatedRule, opts filtersql.Options) (squirrel.Sqlizer, error) {
		col := opts.Prefix + entityIDColumn

		byTag := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			m.cfg.EntityColumn, m.cfg.AssignmentTable, m.cfg.TagColumn)
		anyTag := fmt.Sprintf("SELECT %s FROM %s",
			m.cfg.EntityColumn, m.cfg.AssignmentTable)

		switch rule.Operator {
		case filter.Contains:
			return squirrel.Expr(col+" IN ("+byTag+")", rule.Value[0]), nil
		case filter.NotContains:
			return squirrel.Expr(col+" NOT IN ("+byTag+")", rule.Value[0]), nil
		case filter.IsNotEmpty:
			return squirrel.Expr(col + " IN (" + anyTag + ")"), nil
		case filter.IsEmpty:
			return squirrel.Expr(col + " NOT IN (" + anyTag + ")"), nil
		}

		// Unreachable: the array descriptor only admits the operators above.
		return nil, apperror.NewInvalidRule(apperror.ReasonInvalidOperator, rule.Rule)
	}
}
