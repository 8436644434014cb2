package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/domain/filter"
	"memberbase/internal/infrastructure/storage/postgres/filtersql"
)

func TestParseTokens(t *testing.T) {
	tagA := id.New()
	tagB := id.New()

	add, remove, err := parseTokens([]string{"+" + tagA.String(), "-" + tagB.String()})
	require.NoError(t, err)
	assert.Equal(t, []id.ID{tagA}, add)
	assert.Equal(t, []id.ID{tagB}, remove)
}

func TestParseTokens_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"missing prefix", id.New().String()},
		{"unknown prefix", "~" + id.New().String()},
		{"empty token", ""},
		{"prefix only", "+"},
		{"garbage id", "+not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseTokens([]string{tt.token})
			require.Error(t, err)

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func newTestManager() *Manager {
	return &Manager{cfg: Config{
		EntityName:      "contact_tag",
		TagTable:        "contact_tags",
		AssignmentTable: "contact_tag_assignments",
		EntityColumn:    "contact_id",
		TagColumn:       "tag_id",
	}}
}

// The bulk add must insert the full entity×tag cross product and tolerate
// pre-existing pairs via the conflict suffix.
func TestAssignmentInsert_SQL(t *testing.T) {
	m := newTestManager()
	e1, e2 := id.New(), id.New()
	t1, t2 := id.New(), id.New()

	sql, args, err := m.assignmentInsert([]id.ID{e1, e2}, []id.ID{t1, t2}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO contact_tag_assignments (contact_id,tag_id) VALUES ($1,$2),($3,$4),($5,$6),($7,$8) ON CONFLICT DO NOTHING",
		sql,
	)
	assert.Equal(t, []any{e1, t1, e1, t2, e2, t1, e2, t2}, args)
}

// The bulk remove must match exact (entity, tag) pairs: only the given tags,
// only on the given entities.
func TestAssignmentDelete_SQL(t *testing.T) {
	m := newTestManager()
	e1, e2 := id.New(), id.New()
	t1 := id.New()

	sql, args, err := m.assignmentDelete([]id.ID{e1, e2}, []id.ID{t1}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"DELETE FROM contact_tag_assignments WHERE contact_id IN ($1,$2) AND tag_id IN ($3)",
		sql,
	)
	assert.Equal(t, []any{e1, e2, t1}, args)
}

func TestEntityTagsQuery_SQL(t *testing.T) {
	m := newTestManager()
	e1, e2 := id.New(), id.New()

	sql, args, err := m.entityTagsQuery([]id.ID{e1, e2}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT a.contact_id AS entity_id, t.id, t.name, t.description "+
			"FROM contact_tag_assignments a "+
			"JOIN contact_tags t ON t.id = a.tag_id "+
			"WHERE a.contact_id IN ($1,$2) "+
			"ORDER BY t.name ASC",
		sql,
	)
	assert.Equal(t, []any{e1, e2}, args)
}

func TestPartitionEntityTags(t *testing.T) {
	e1, e2, e3 := id.New(), id.New(), id.New()
	t1, t2 := id.New(), id.New()

	rows := []entityTagRow{
		{EntityID: e1, ID: t1, Name: "alpha"},
		{EntityID: e1, ID: t2, Name: "beta", Description: "b"},
		{EntityID: e2, ID: t1, Name: "alpha"},
	}

	byEntity := partitionEntityTags(rows)

	require.Len(t, byEntity, 2)
	assert.Equal(t, []Tag{
		{ID: t1, Name: "alpha"},
		{ID: t2, Name: "beta", Description: "b"},
	}, byEntity[e1])
	assert.Equal(t, []Tag{{ID: t1, Name: "alpha"}}, byEntity[e2])

	// An entity with no assignment rows gets no map entry at all.
	_, ok := byEntity[e3]
	assert.False(t, ok)
}

func TestFilterHandler_SQL(t *testing.T) {
	m := newTestManager()
	handler := m.FilterHandler("id")
	tagID := id.New()

	tests := []struct {
		name     string
		rule     filter.Rule
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "has tag",
			rule:     filter.Rule{Field: "tags", Operator: filter.Contains, Value: []any{tagID.String()}},
			wantSQL:  "id IN (SELECT contact_id FROM contact_tag_assignments WHERE tag_id = ?)",
			wantArgs: []any{tagID.String()},
		},
		{
			name:     "does not have tag",
			rule:     filter.Rule{Field: "tags", Operator: filter.NotContains, Value: []any{tagID.String()}},
			wantSQL:  "id NOT IN (SELECT contact_id FROM contact_tag_assignments WHERE tag_id = ?)",
			wantArgs: []any{tagID.String()},
		},
		{
			name:    "has any tag",
			rule:    filter.Rule{Field: "tags", Operator: filter.IsNotEmpty},
			wantSQL: "id IN (SELECT contact_id FROM contact_tag_assignments)",
		},
		{
			name:    "has no tag",
			rule:    filter.Rule{Field: "tags", Operator: filter.IsEmpty},
			wantSQL: "id NOT IN (SELECT contact_id FROM contact_tag_assignments)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validated := filter.ValidatedRule{Rule: tt.rule, Type: filter.TypeArray}
			pred, err := handler(validated, filtersql.Options{})
			require.NoError(t, err)

			sql, args, err := pred.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

// The handler must respect the compile prefix so tag predicates work inside
// correlated sub-queries too.
func TestFilterHandler_Prefix(t *testing.T) {
	m := newTestManager()
	handler := m.FilterHandler("id")

	validated := filter.ValidatedRule{
		Rule: filter.Rule{Field: "tags", Operator: filter.IsNotEmpty},
		Type: filter.TypeArray,
	}
	pred, err := handler(validated, filtersql.Options{Prefix: "c."})
	require.NoError(t, err)

	sql, _, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "c.id IN (SELECT contact_id FROM contact_tag_assignments)", sql)
}
