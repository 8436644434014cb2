package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"memberbase/internal/core/id"
)

type baseRow struct {
	ID        id.ID     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type mockContact struct {
	baseRow
	Email    string   `db:"email"`
	Nickname *string  `db:"nickname"`
	Ignored  string   `db:"-"`
	NoTag    string
	Tags     []string `db:"-"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockContact]()

	assert.Equal(t, []string{"id", "created_at", "email", "nickname"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	nick := "ace"
	c := mockContact{
		baseRow: baseRow{
			ID:        id.New(),
			CreatedAt: now,
		},
		Email:    "a@b.c",
		Nickname: &nick,
		Ignored:  "skip me",
	}

	m := StructToMap(c)

	assert.Equal(t, c.ID, m["id"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "a@b.c", m["email"])
	assert.Equal(t, &nick, m["nickname"])
	assert.NotContains(t, m, "-")
	assert.Len(t, m, 4)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
