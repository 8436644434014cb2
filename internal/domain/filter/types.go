// Package filter implements the rule-based filtering engine shared by every
// listable entity: per-entity schemas of filterable fields, the operator
// catalog, client-submitted rule trees and their validation.
package filter

import (
	"fmt"
)

// SemanticType is the abstract kind of a field for filtering purposes,
// independent of storage representation.
type SemanticType string

const (
	TypeText      SemanticType = "text"
	TypeNumber    SemanticType = "number"
	TypeBoolean   SemanticType = "boolean"
	TypeDate      SemanticType = "date"
	TypeArray     SemanticType = "array"
	TypeEnum      SemanticType = "enum"
	TypeReference SemanticType = "reference"
)

// Operator names a comparison in a leaf rule.
type Operator string

const (
	Equal          Operator = "equal"
	NotEqual       Operator = "not_equal"
	LessThan       Operator = "less_than"
	LessOrEqual    Operator = "less_or_equal"
	GreaterThan    Operator = "greater_than"
	GreaterOrEqual Operator = "greater_or_equal"
	Between        Operator = "between"
	NotBetween     Operator = "not_between"
	BeginsWith     Operator = "begins_with"
	EndsWith       Operator = "ends_with"
	Contains       Operator = "contains"
	NotContains    Operator = "not_contains"

	// Nullable operators: permitted on any nullable field, and on any text
	// field regardless of declared nullability. Always zero arguments.
	IsEmpty    Operator = "is_empty"
	IsNotEmpty Operator = "is_not_empty"
)

// comparisonOps is the arity table for ordered comparisons shared by
// number and date fields.
var comparisonOps = map[Operator]int{
	Equal:          1,
	NotEqual:       1,
	LessThan:       1,
	LessOrEqual:    1,
	GreaterThan:    1,
	GreaterOrEqual: 1,
	Between:        2,
	NotBetween:     2,
}

// equalityOps is the arity table for enum and reference fields.
var equalityOps = map[Operator]int{
	Equal:    1,
	NotEqual: 1,
}

// operatorCatalog maps each semantic type to its permitted operators and
// their required argument counts. Populated once at startup, read-only after.
var operatorCatalog = map[SemanticType]map[Operator]int{
	TypeText: {
		Equal:       1,
		NotEqual:    1,
		BeginsWith:  1,
		EndsWith:    1,
		Contains:    1,
		NotContains: 1,
	},
	TypeNumber:  comparisonOps,
	TypeDate:    comparisonOps,
	TypeBoolean: {Equal: 1},
	TypeArray: {
		Contains:    1,
		NotContains: 1,
	},
	TypeEnum:      equalityOps,
	TypeReference: equalityOps,
}

// nullableOperators are the cross-cutting empty-checks, all zero-argument.
var nullableOperators = map[Operator]struct{}{
	IsEmpty:    {},
	IsNotEmpty: {},
}

// IsNullableOperator reports whether op is one of the empty-check operators.
func IsNullableOperator(op Operator) bool {
	_, ok := nullableOperators[op]
	return ok
}

// OperatorArgs returns the required argument count for op on a field of the
// given semantic type. The second return is false if the operator is not
// permitted for the type.
func OperatorArgs(t SemanticType, op Operator) (int, bool) {
	ops, ok := operatorCatalog[t]
	if !ok {
		return 0, false
	}
	n, ok := ops[op]
	return n, ok
}

// Descriptor declares one filterable field: its semantic type, whether
// null/empty is a valid state, and the value set for enum fields.
// The attribute set is closed; anything else is rejected at registration.
type Descriptor struct {
	Type     SemanticType
	Nullable bool
	Options  []string // enum only
}

// Schema maps field names to descriptors for one entity.
// Schemas are immutable after startup and safe for concurrent reads.
type Schema map[string]Descriptor

// Get looks up a field descriptor. Unknown field returns ok=false, never panics.
func (s Schema) Get(field string) (Descriptor, bool) {
	d, ok := s[field]
	return d, ok
}

// Check validates the schema definition itself. Enum fields must declare
// options; options on any other type are rejected.
func (s Schema) Check() error {
	for field, d := range s {
		if _, ok := operatorCatalog[d.Type]; !ok {
			return fmt.Errorf("field %q: unknown semantic type %q", field, d.Type)
		}
		if d.Type == TypeEnum && len(d.Options) == 0 {
			return fmt.Errorf("field %q: enum field must declare options", field)
		}
		if d.Type != TypeEnum && len(d.Options) > 0 {
			return fmt.Errorf("field %q: options are only valid on enum fields", field)
		}
	}
	return nil
}

// MustSchema checks a schema definition and panics on error.
// Use for package-level schema registration.
func MustSchema(s Schema) Schema {
	if err := s.Check(); err != nil {
		panic(fmt.Sprintf("invalid filter schema: %v", err))
	}
	return s
}

// Merge combines the base schema with request-time extensions, so callers can
// register extra virtual fields (e.g. a tag membership pseudo-field) per query.
// Extensions win on name collision. The receiver is not mutated.
func (s Schema) Merge(extra ...Schema) Schema {
	merged := make(Schema, len(s))
	for field, d := range s {
		merged[field] = d
	}
	for _, ext := range extra {
		for field, d := range ext {
			merged[field] = d
		}
	}
	return merged
}
