package sqlite

import (
	"fmt"
	"testing"
	"time"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func render(sql string, params []any) []byte {
	return []byte(fmt.Sprintf("%s\n-- params: %v\n", sql, params))
}

func TestGenerateSelectSQL(t *testing.T) {
	m := member("member")
	sub := member("memberSub")
	tm := team("team")

	tests := []struct {
		name    string
		builder query.Builder
		opts    []QueryOption
	}{
		{
			name: "select_entity",
			builder: query.SelectFrom(m).
				Where(m.Username.Eq("member1"), m.Age.Between(10, 30)).
				OrderBy(m.Age.Desc(), m.Username.Asc().NullsLast()).
				Offset(1).Limit(2),
		},
		{
			name: "fetch_join",
			builder: query.SelectFrom(m).
				LeftJoin(m.Team, tm).FetchJoin().
				Where(tm.Name.Eq("teamA")),
		},
		{
			name:    "theta_join",
			builder: query.Select(m.Count()).From(m, tm).Where(m.Username.Eq(tm.Name)),
		},
		{
			name:    "join_on",
			builder: query.Select(m.Username, tm.Name).From(m).LeftJoin(m.Team, tm).On(tm.Name.Eq("teamA")),
		},
		{
			name:    "cross_join",
			builder: query.Select(m.Username).From(m).JoinEntity(tm),
		},
		{
			name: "group_having",
			builder: query.Select(tm.Name, m.Age.Avg()).From(m).Join(m.Team, tm).
				GroupBy(tm.Name).Having(m.Age.Avg().Gt(10)),
		},
		{
			name:    "scalar_subquery",
			builder: query.SelectFrom(m).Where(m.Age.Eq(query.Sub(query.Select(sub.Age.Max()).From(sub)))),
		},
		{
			name:    "in_subquery",
			builder: query.Select(m.Username).From(m).Where(m.Age.In(query.Select(sub.Age).From(sub).Where(sub.Age.Gt(10)))),
		},
		{
			name:    "exists",
			builder: query.Select(tm.Name).From(tm).Where(query.Exists(query.Select(m.ID).From(m).Where(m.Team.Eq(tm.EntityPath)))),
		},
		{
			name:    "in_list",
			builder: query.Select(m.Username).From(m).Where(m.Age.In(10, 20), m.Username.NotIn(), m.Active.IsTrue()),
		},
		{
			name:    "like_escape",
			builder: query.Select(m.Username).From(m).Where(m.Username.Contains("50%").Or(m.Username.IsNull())),
		},
		{
			name: "arithmetic_distinct",
			builder: query.Select(m.Age.Add(1).Multiply(2)).From(m).Distinct().
				Where(query.Not(m.Age.Loe(20))).Offset(3),
		},
		{
			name:    "prefix_datetime",
			builder: query.Select(m.Username).From(m).Where(m.Joined.After(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))),
			opts:    []QueryOption{WithTablePrefix("app_")},
		},
		{
			name:    "native_null_order",
			builder: query.Select(m.Username).From(m).OrderBy(m.Age.Asc()),
			opts:    []QueryOption{WithNullOrdering(query.NullHandlingDefault)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.builder.Build()
			require.NoError(t, err)

			sql, params, layout, err := NewSqliteQuery(tt.opts...).GenerateSelectSQL(q)
			require.NoError(t, err)
			require.NotNil(t, layout)
			golden(t).Assert(t, "select_"+tt.name, render(sql, params))
		})
	}
}

func TestGenerateSelectSQLLayout(t *testing.T) {
	m := member("member")
	tm := team("team")
	q, err := query.Select(m.EntityPath, tm.Name).From(m).LeftJoin(m.Team, tm).FetchJoin().Build()
	require.NoError(t, err)

	_, _, layout, err := NewSqliteQuery().GenerateSelectSQL(q)
	require.NoError(t, err)
	assert.Len(t, layout.Groups, 2)
	assert.Len(t, layout.Columns(), len(memberDef.Fields)+len(teamDef.Fields)+1)
}

func TestGenerateCountSQL(t *testing.T) {
	m := member("member")
	tm := team("team")

	tests := []struct {
		name    string
		builder query.Builder
	}{
		{
			name: "plain",
			builder: query.SelectFrom(m).Where(m.Age.Gt(10)).
				OrderBy(m.Age.Desc()).Offset(1).Limit(2),
		},
		{
			name:    "grouped",
			builder: query.Select(tm.Name, m.Age.Avg()).From(m).Join(m.Team, tm).GroupBy(tm.Name),
		},
		{
			name:    "distinct",
			builder: query.Select(m.Age).From(m).Distinct().Limit(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.builder.Build()
			require.NoError(t, err)

			sql, params, err := NewSqliteQuery().GenerateCountSQL(q)
			require.NoError(t, err)
			golden(t).Assert(t, "count_"+tt.name, render(sql, params))
		})
	}
}

func TestGenerateBulkSQL(t *testing.T) {
	m := member("member")
	sub := member("memberSub")
	gen := NewSqliteQuery()

	t.Run("update", func(t *testing.T) {
		u, err := query.Update(m).Set(m.Age, m.Age.Add(1)).SetNull(m.Username).Where(m.Age.Lt(28)).Build()
		require.NoError(t, err)
		sql, params, err := gen.GenerateUpdateSQL(u)
		require.NoError(t, err)
		golden(t).Assert(t, "update", render(sql, params))
	})

	t.Run("delete", func(t *testing.T) {
		d, err := query.Delete(m).Where(m.Age.Gt(query.Sub(query.Select(sub.Age.Avg()).From(sub)))).Build()
		require.NoError(t, err)
		sql, params, err := gen.GenerateDeleteSQL(d)
		require.NoError(t, err)
		golden(t).Assert(t, "delete", render(sql, params))
	})

	t.Run("delete unfiltered", func(t *testing.T) {
		d, err := query.Delete(m).Unfiltered().Build()
		require.NoError(t, err)
		sql, params, err := gen.GenerateDeleteSQL(d)
		require.NoError(t, err)
		assert.Equal(t, `DELETE FROM "member" AS "member";`, sql)
		assert.Empty(t, params)
	})

	t.Run("update without assignments", func(t *testing.T) {
		_, _, err := gen.GenerateUpdateSQL(query.UpdateStatement{Entity: m.EntityPath})
		assert.Error(t, err)
	})
}

func TestGenerateInsertSQL(t *testing.T) {
	gen := NewSqliteQuery()

	t.Run("record", func(t *testing.T) {
		sql, params, err := gen.GenerateInsertSQL(memberDef, schema.Document{
			"username": "member1",
			"age":      int64(10),
			"team":     nil,
			"active":   true,
		})
		require.NoError(t, err)
		golden(t).Assert(t, "insert", render(sql, params))
	})

	t.Run("default values", func(t *testing.T) {
		sql, params, err := gen.GenerateInsertSQL(helloDef, schema.Document{})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "hello" DEFAULT VALUES RETURNING "id";`, sql)
		assert.Empty(t, params)
	})

	t.Run("nil entity", func(t *testing.T) {
		_, _, err := gen.GenerateInsertSQL(nil, schema.Document{})
		assert.Error(t, err)
	})
}

func TestPrepareValue(t *testing.T) {
	assert.Equal(t, 1, prepareValue(true))
	assert.Equal(t, 0, prepareValue(false))
	assert.Equal(t, "2024-05-06 07:08:09.000000010",
		prepareValue(time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)))
	assert.Equal(t, int64(3), prepareValue(int64(3)))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"member"`, quoteIdentifier("member"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}
