package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbase/internal/core/apperror"
	"memberbase/internal/domain/filter"
)

func TestListRequest_ToQuery(t *testing.T) {
	req := ListRequest{
		Rules:  `{"condition":"AND","rules":[{"field":"email","operator":"equal","value":["a@b.c"]}]}`,
		Limit:  25,
		Offset: 50,
		Sort:   "email",
		Order:  "DESC",
	}

	q, err := req.ToQuery()
	require.NoError(t, err)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, 50, q.Offset)
	assert.Equal(t, "email", q.Sort)
	assert.Equal(t, "DESC", q.Order)
	require.NotNil(t, q.Rules)
	assert.Equal(t, filter.ConditionAnd, q.Rules.Condition)
	assert.Len(t, q.Rules.Rules, 1)
}

func TestListRequest_NoRules(t *testing.T) {
	q, err := ListRequest{Limit: 10}.ToQuery()
	require.NoError(t, err)
	assert.Nil(t, q.Rules)
}

func TestListRequest_MalformedRules(t *testing.T) {
	_, err := ListRequest{Rules: `{"condition":`}.ToQuery()
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestTagTokensRequest_ParseEntityIDs(t *testing.T) {
	req := TagTokensRequest{EntityIDs: []string{"not-a-uuid"}}
	_, err := req.ParseEntityIDs()
	require.Error(t, err)
}
