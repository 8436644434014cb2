package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
	"memberbase/internal/core/settings"
	"memberbase/internal/domain/filter"
	"memberbase/internal/infrastructure/storage/postgres/entity_repo"
)

type thing struct {
	ID   id.ID  `db:"id"`
	Name string `db:"name"`
}

var thingSchema = filter.MustSchema(filter.Schema{
	"name": {Type: filter.TypeText},
})

func newThingTransformer() *Transformer[thing] {
	return &Transformer[thing]{
		EntityName: "thing",
		Schema:     thingSchema,
		Repo:       entity_repo.NewBaseEntityRepo[thing](nil, "things", "id"),
		EntityID:   func(t thing) id.ID { return t.ID },
	}
}

func admin() *security.Principal {
	return &security.Principal{ID: id.New(), Roles: []security.Role{security.RoleAdmin}}
}

func member() *security.Principal {
	return &security.Principal{ID: id.New(), Roles: []security.Role{security.RoleMember}}
}

// Rule-scoped mutations must refuse an absent or empty rule set before any
// store round-trip. The nil repo transaction manager proves no query ran.
func TestUpdate_RefusesUnscopedMutation(t *testing.T) {
	tr := newThingTransformer()
	ctx := context.Background()

	for _, rules := range []*filter.Group{nil, {Condition: filter.ConditionAnd}} {
		_, err := tr.Update(ctx, admin(), rules, map[string]any{"name": "x"})
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeUnscopedMutation, appErr.Code)
	}
}

func TestDelete_RefusesUnscopedMutation(t *testing.T) {
	tr := newThingTransformer()

	_, err := tr.Delete(context.Background(), admin(), nil)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnscopedMutation, appErr.Code)
}

// A non-privileged caller with no applicable authorization rules is refused
// outright, again before any store access.
func TestFetch_DeniesWithoutAuthRules(t *testing.T) {
	tr := newThingTransformer()

	_, err := tr.Fetch(context.Background(), member(), GetQuery{})
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthorized(err))

	// Anonymous callers are treated the same way.
	_, err = tr.Fetch(context.Background(), nil, GetQuery{})
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthorized(err))
}

func TestPrepareRules_MergesAuthRules(t *testing.T) {
	tr := newThingTransformer()
	tr.AuthRules = func(ctx context.Context, p *security.Principal, op security.Operation) []filter.Node {
		return []filter.Node{filter.Rule{Field: "name", Operator: filter.Equal, Value: []any{"mine"}}}
	}

	clientRules := &filter.Group{
		Condition: filter.ConditionOr,
		Rules: []filter.Node{
			filter.Rule{Field: "name", Operator: filter.BeginsWith, Value: []any{"a"}},
		},
	}

	validated, err := tr.prepareRules(context.Background(), member(), clientRules, security.OperationRead)
	require.NoError(t, err)

	// Merged shape: AND(client group, OR(auth rules)). Client rules can
	// narrow the result but never widen it past the auth rules.
	require.NotNil(t, validated)
	assert.Equal(t, filter.ConditionAnd, validated.Condition)
	require.Len(t, validated.Rules, 2)

	clientPart, ok := validated.Rules[0].(*filter.ValidatedGroup)
	require.True(t, ok)
	assert.Equal(t, filter.ConditionOr, clientPart.Condition)

	authPart, ok := validated.Rules[1].(*filter.ValidatedGroup)
	require.True(t, ok)
	assert.Equal(t, filter.ConditionOr, authPart.Condition)
	require.Len(t, authPart.Rules, 1)
}

func TestPrepareRules_PrivilegedPassThrough(t *testing.T) {
	tr := newThingTransformer()

	// Privileged with no rules: match everything, no predicate at all.
	validated, err := tr.prepareRules(context.Background(), admin(), nil, security.OperationRead)
	require.NoError(t, err)
	assert.Nil(t, validated)

	// Privileged with rules: the client group validates as-is, unmerged.
	clientRules := &filter.Group{
		Condition: filter.ConditionOr,
		Rules: []filter.Node{
			filter.Rule{Field: "name", Operator: filter.Equal, Value: []any{"x"}},
		},
	}
	validated, err = tr.prepareRules(context.Background(), admin(), clientRules, security.OperationRead)
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.Equal(t, filter.ConditionOr, validated.Condition)
	assert.Len(t, validated.Rules, 1)
}

func TestOrderBy(t *testing.T) {
	tr := newThingTransformer()

	tests := []struct {
		name    string
		query   GetQuery
		want    []string
		wantErr bool
	}{
		{
			name:  "default falls back to id",
			query: GetQuery{},
			want:  []string{"id ASC"},
		},
		{
			name:  "sort column gets id tie-break",
			query: GetQuery{Sort: "name", Order: "DESC"},
			want:  []string{"name DESC", "id ASC"},
		},
		{
			name:    "unknown column rejected",
			query:   GetQuery{Sort: "password"},
			wantErr: true,
		},
		{
			name:    "bad direction rejected",
			query:   GetQuery{Sort: "name", Order: "SIDEWAYS"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.orderBy(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The max page size bounds positive over-asks only. An explicit -1 always
// means unlimited, even with the default settings in place.
func TestEffectiveLimit(t *testing.T) {
	tr := newThingTransformer()

	// No settings store: default applies, everything else passes through.
	assert.Equal(t, DefaultLimit, tr.effectiveLimit(0))
	assert.Equal(t, -1, tr.effectiveLimit(-1))
	assert.Equal(t, 100000, tr.effectiveLimit(100000))

	tr.Settings = settings.NewStore(settings.Defaults())

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero applies default", 0, DefaultLimit},
		{"explicit unlimited stays unlimited", -1, -1},
		{"within cap passes through", 200, 200},
		{"at cap passes through", 500, 500},
		{"over-ask clamped to cap", 501, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.effectiveLimit(tt.requested))
		})
	}

	// Zeroing the cap makes it opt-out entirely.
	tr.Settings.Update(func(s *settings.Snapshot) { s.MaxPageSize = 0 })
	assert.Equal(t, 9000, tr.effectiveLimit(9000))
}

func TestCheckBatchLimit(t *testing.T) {
	tr := newThingTransformer()

	// No settings store: unlimited.
	require.NoError(t, tr.checkBatchLimit(1000000))

	store := settings.NewStore(settings.Snapshot{MutationBatchLimit: 10})
	tr.Settings = store

	require.NoError(t, tr.checkBatchLimit(10))

	err := tr.checkBatchLimit(11)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)

	// Lifting the limit takes effect through the next snapshot.
	store.Update(func(s *settings.Snapshot) { s.MutationBatchLimit = 0 })
	require.NoError(t, tr.checkBatchLimit(11))
}
