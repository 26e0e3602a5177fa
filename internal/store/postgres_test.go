package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(Filter{"tenant_id": "t1", "deleted_at": nil, "id": "c1"})
	// Keys are sorted, so placeholders are deterministic.
	require.Equal(t, ` WHERE "deleted_at" IS NULL AND "id" = $1 AND "tenant_id" = $2`, where)
	require.Equal(t, []any{"c1", "t1"}, args)
}

func TestBuildWhereEmpty(t *testing.T) {
	where, args := buildWhere(nil)
	require.Empty(t, where)
	require.Nil(t, args)
}

func TestBuildWhereOffsetContinuesNumbering(t *testing.T) {
	where, args := buildWhereOffset(Filter{"id": "c1"}, 2)
	require.Equal(t, ` WHERE "id" = $3`, where)
	require.Equal(t, []any{"c1"}, args)
}

func TestBuildSet(t *testing.T) {
	set, args := buildSet(Record{"title": "x", "published": true})
	require.Equal(t, `"published" = $1, "title" = $2`, set)
	require.Equal(t, []any{true, "x"}, args)
}

func TestBuildInsert(t *testing.T) {
	cols, holders, args := buildInsert(Record{"id": "c1", "title": "x"})
	require.Equal(t, `"id", "title"`, cols)
	require.Equal(t, "$1, $2", holders)
	require.Equal(t, []any{"c1", "x"}, args)
}

func TestQuoteIdentEscapes(t *testing.T) {
	require.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}

func TestPolicyRegistry(t *testing.T) {
	course, err := Policy(ModelCourse)
	require.NoError(t, err)
	require.False(t, course.IsGlobal)
	require.True(t, course.SoftDelete)

	tenantPol, err := Policy(ModelTenant)
	require.NoError(t, err)
	require.True(t, tenantPol.IsGlobal)

	_, err = Policy("nope")
	require.ErrorIs(t, err, ErrUnknownModel)
}
