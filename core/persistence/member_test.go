package persistence_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMember_Search(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")

	found, err := persistence.SelectFrom(f, m.Entity()).
		Where(m.Username.Eq("member1").And(m.Age.Between(10, 30))).
		FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, "member1", *found.Username)

	found, err = persistence.SelectFrom(f, m.Entity()).
		Where(m.Username.Eq("member1"), m.Age.Eq(10)).
		FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, found.Age)
}

func TestMember_FetchVariants(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	members := persistence.SelectFrom(f, m.Entity())

	all, err := members.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := members.Where(m.Age.Gt(100)).FetchAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = members.Where(m.Age.Gt(100)).FetchOne(ctx)
	var notFound *query.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = members.FetchOne(ctx)
	var tooMany *query.TooManyResultsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, tooMany.Count)

	first, ok, err := members.OrderBy(m.Age.Desc()).FetchFirst(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40, first.Age)

	_, ok, err = members.Where(m.Age.Gt(100)).FetchFirst(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := members.Where(m.Age.Goe(20)).Limit(1).FetchCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMember_Cursor(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	q := persistence.Select(f, query.Single[string](m.Username)).From(m).OrderBy(m.Age.Asc())

	c, err := q.Fetch(ctx)
	require.NoError(t, err)
	var names []string
	for c.Next() {
		names = append(names, c.Value())
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []string{"member1", "member2", "member3", "member4"}, names)
	assert.False(t, c.Next(), "cursors are not restartable")

	c, err = q.Fetch(ctx)
	require.NoError(t, err)
	names = nil
	for name, err := range c.Seq() {
		require.NoError(t, err)
		names = append(names, name)
		if len(names) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"member1", "member2"}, names)

	c, err = q.Where(m.Age.Gt(100)).Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Next())
	assert.NoError(t, c.Close())
}

func TestMember_Sort(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	persistMember(t, f, &model.Member{Age: 100})
	persistMember(t, f, model.NewMember("member5", 100, nil))
	persistMember(t, f, model.NewMember("member6", 100, nil))
	m := model.NewQMember("member")

	result, err := persistence.SelectFrom(f, m.Entity()).
		Where(m.Age.Eq(100)).
		OrderBy(m.Age.Desc(), m.Username.Asc().NullsLast()).
		FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member5", "member6", "<nil>"}, usernames(result))

	result, err = persistence.SelectFrom(f, m.Entity()).
		Where(m.Age.Eq(100)).
		OrderBy(m.Age.Desc(), m.Username.Asc()).
		FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"<nil>", "member5", "member6"}, usernames(result), "nulls sort first by default")
}

func TestMember_Paging(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	all := []string{"member1", "member2", "member3", "member4"}
	ordered := persistence.SelectFrom(f, m.Entity()).OrderBy(m.Age.Asc())

	results, err := persistence.SelectFrom(f, m.Entity()).
		OrderBy(m.Username.Desc()).
		Offset(1).Limit(2).
		FetchResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), results.Total)
	assert.Equal(t, 1, results.Offset)
	require.NotNil(t, results.Limit)
	assert.Equal(t, 2, *results.Limit)
	assert.Equal(t, []string{"member3", "member2"}, usernames(results.Items))

	for offset := 0; offset <= 5; offset++ {
		from := min(offset, len(all))
		t.Run(fmt.Sprintf("offset %d without limit", offset), func(t *testing.T) {
			page, err := ordered.Offset(offset).FetchAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, all[from:], usernames(page))
		})
		for limit := 0; limit <= 5; limit++ {
			t.Run(fmt.Sprintf("offset %d limit %d", offset, limit), func(t *testing.T) {
				page, err := ordered.Offset(offset).Limit(limit).FetchResults(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(len(all)), page.Total)
				assert.Equal(t, all[from:min(offset+limit, len(all))], usernames(page.Items))
			})
		}
	}
}

func TestMember_Aggregation(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")

	tuple, err := f.SelectTuple(m.Count(), m.Age.Sum(), m.Age.Avg(), m.Age.Max(), m.Age.Min()).
		From(m).
		FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(100), 25.0, int64(40), int64(10)}, tuple.Values())

	avg, err := query.TupleValue[float64](tuple, m.Age.Avg())
	require.NoError(t, err)
	assert.Equal(t, 25.0, avg)
}

func TestMember_Group(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	tm := model.NewQTeam("team")

	tuples, err := f.SelectTuple(tm.Name, m.Age.Avg()).
		From(m).
		Join(m.Team, tm).
		GroupBy(tm.Name).
		OrderBy(tm.Name.Asc()).
		FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, []any{"teamA", 15.0}, tuples[0].Values())
	assert.Equal(t, []any{"teamB", 35.0}, tuples[1].Values())

	count, err := f.SelectTuple(tm.Name).From(m).Join(m.Team, tm).GroupBy(tm.Name).
		Having(m.Age.Avg().Gt(20)).
		FetchCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMember_Joins(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	fx := seed(t, f)
	m := model.NewQMember("member")
	tm := model.NewQTeam("team")

	t.Run("inner join", func(t *testing.T) {
		result, err := persistence.SelectFrom(f, m.Entity()).
			Join(m.Team, tm).
			Where(tm.Name.Eq("teamA")).
			OrderBy(m.Username.Asc()).
			FetchAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"member1", "member2"}, usernames(result))
		assert.Nil(t, result[0].Team, "association is not loaded without a fetch join")
		assert.Equal(t, fx.teamA.ID, *result[0].TeamID)
	})

	t.Run("left join with on", func(t *testing.T) {
		tuples, err := f.SelectTuple(m.Username, tm.Name).
			From(m).
			LeftJoin(m.Team, tm).On(tm.Name.Eq("teamA")).
			OrderBy(m.Username.Asc()).
			FetchAll(ctx)
		require.NoError(t, err)
		require.Len(t, tuples, 4)
		assert.Equal(t, []any{"member1", "teamA"}, tuples[0].Values())
		assert.Equal(t, []any{"member3", nil}, tuples[2].Values())
	})

	t.Run("fetch join", func(t *testing.T) {
		found, err := persistence.SelectFrom(f, m.Entity()).
			Join(m.Team, tm).FetchJoin().
			Where(m.Username.Eq("member1")).
			FetchOne(ctx)
		require.NoError(t, err)
		require.NotNil(t, found.Team)
		assert.Equal(t, "teamA", found.Team.Name)
	})

	t.Run("outer join without condition", func(t *testing.T) {
		_, err := persistence.SelectFrom(f, m.Entity()).LeftJoinEntity(tm).FetchAll(ctx)
		var unsupported *query.UnsupportedJoinError
		assert.ErrorAs(t, err, &unsupported)
	})

	t.Run("left join to an unrelated entity", func(t *testing.T) {
		persistMember(t, f, model.NewMember("teamA", 0, nil))
		tuples, err := f.SelectTuple(m, tm).
			From(m).
			LeftJoinEntity(tm).On(m.Username.Eq(tm.Name)).
			OrderBy(m.Age.Asc()).
			FetchAll(ctx)
		require.NoError(t, err)
		require.Len(t, tuples, 5)

		owner, ok := tuples[0].At(0).(schema.Document)
		require.True(t, ok)
		assert.Equal(t, "teamA", owner["username"])
		team, ok := tuples[0].At(1).(schema.Document)
		require.True(t, ok, "a member named after a team matches it")
		assert.Equal(t, fx.teamA.ID, team["id"])
		assert.Equal(t, "teamA", team["name"])

		for i, tuple := range tuples[1:] {
			member, ok := tuple.At(0).(schema.Document)
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("member%d", i+1), member["username"])
			assert.Nil(t, tuple.At(1), "unmatched rows carry no team")
		}
	})
}

func TestMember_ThetaJoin(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	for _, name := range []string{"teamA", "teamB", "teamC"} {
		persistMember(t, f, model.NewMember(name, 0, nil))
	}
	m := model.NewQMember("member")
	tm := model.NewQTeam("team")

	result, err := persistence.SelectFrom(f, m.Entity()).
		From(tm).
		Where(m.Username.Eq(tm.Name)).
		OrderBy(m.Username.Asc()).
		FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"teamA", "teamB"}, usernames(result))

	result, err = persistence.SelectFrom(f, m.Entity()).
		JoinEntity(tm).On(m.Username.Eq(tm.Name)).
		OrderBy(m.Username.Asc()).
		FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"teamA", "teamB"}, usernames(result))
}

func TestMember_Subqueries(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	sub := model.NewQMember("memberSub")
	members := persistence.SelectFrom(f, m.Entity()).OrderBy(m.Age.Asc())

	oldest, err := members.Where(m.Age.Eq(query.Sub(query.Select(sub.Age.Max()).From(sub)))).FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, oldest.Age)

	result, err := members.Where(m.Age.Goe(query.Sub(query.Select(sub.Age.Avg()).From(sub)))).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member3", "member4"}, usernames(result))

	result, err = members.Where(m.Age.In(query.Select(sub.Age).From(sub).Where(sub.Age.Gt(10)))).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member2", "member3", "member4"}, usernames(result))

	tuples, err := f.SelectTuple(m.Username, query.Sub(query.Select(sub.Age.Avg()).From(sub))).From(m).FetchAll(ctx)
	require.NoError(t, err)
	for _, tuple := range tuples {
		assert.Equal(t, 25.0, tuple.At(1))
	}

	_, err = members.Where(m.Age.Eq(query.Sub(query.Select(m.Age.Max()).From(m)))).FetchAll(ctx)
	var ambiguous *query.AmbiguousAliasError
	assert.ErrorAs(t, err, &ambiguous)
}

func TestMember_Exists(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	_, err := f.Insert(ctx, model.TeamEntity, (&model.Team{Name: "teamC"}).Document())
	require.NoError(t, err)
	m := model.NewQMember("member")
	tm := model.NewQTeam("team")

	names, err := persistence.Select(f, query.Single[string](tm.Name)).From(tm).
		Where(query.NotExists(query.Select(m.ID).From(m).Where(m.Team.Eq(tm.EntityPath)))).
		FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"teamC"}, names)
}

func TestMember_Projections(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")
	want := []model.MemberDto{
		{Username: "member1", Age: 10},
		{Username: "member2", Age: 20},
		{Username: "member3", Age: 30},
		{Username: "member4", Age: 40},
	}

	dtos, err := persistence.Select(f, m.Dto()).From(m).OrderBy(m.Age.Asc()).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, dtos)

	dtos, err = persistence.Select(f, m.DtoFields()).From(m).OrderBy(m.Age.Asc()).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, dtos)

	doubled, err := persistence.Select(f, query.Single[int64](m.Age.Multiply(2))).From(m).
		OrderBy(m.Age.Asc()).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 40, 60, 80}, doubled)

	_, err = persistence.Select(f, query.Single[int64](m.Username)).From(m).FetchAll(ctx)
	var mismatch *query.TypeMismatchError
	assert.ErrorAs(t, err, &mismatch, "projection types are checked before execution")
}

type memberCondition struct {
	Username *string
	AgeGoe   *int
	AgeLoe   *int
}

func TestMember_DynamicQuery(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")

	search := func(cond memberCondition) []*model.Member {
		result, err := persistence.SelectFrom(f, m.Entity()).
			Where(
				query.When(cond.Username, m.Username.Eq),
				query.When(cond.AgeGoe, m.Age.Goe),
				query.When(cond.AgeLoe, m.Age.Loe),
			).
			OrderBy(m.Age.Asc()).
			FetchAll(ctx)
		require.NoError(t, err)
		return result
	}

	assert.Len(t, search(memberCondition{}), 4)
	assert.Equal(t, []string{"member1"}, usernames(search(memberCondition{
		Username: query.StringPtr("member1"),
		AgeGoe:   query.IntPtr(10),
	})))
	assert.Equal(t, []string{"member2", "member3"}, usernames(search(memberCondition{
		AgeGoe: query.IntPtr(20),
		AgeLoe: query.IntPtr(30),
	})))
	assert.Empty(t, search(memberCondition{Username: query.StringPtr("nobody")}))

	builder := query.NewBooleanBuilder()
	for _, name := range []string{"member1", "member4"} {
		builder.Or(m.Username.Eq(name))
	}
	result, err := persistence.SelectFrom(f, m.Entity()).Where(builder.Value()).OrderBy(m.Age.Asc()).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member1", "member4"}, usernames(result))
}

func TestMember_BulkStatements(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t, persistence.WithPersistenceContext(16))
	seed(t, f)
	m := model.NewQMember("member")
	members := persistence.SelectFrom(f, m.Entity()).OrderBy(m.Age.Asc())

	affected, err := f.Update(m).Set(m.Username, "nonmember").Where(m.Age.Lt(30)).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	stale, err := members.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member1", "member2", "member3", "member4"}, usernames(stale),
		"cached entities are returned until the context is cleared")

	f.Context().Clear()
	fresh, err := members.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nonmember", "nonmember", "member3", "member4"}, usernames(fresh))

	affected, err = f.Update(m).Set(m.Age, m.Age.Add(1)).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	sum, err := persistence.Select(f, query.Single[int64](m.Age.Sum())).From(m).FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(104), sum)

	_, err = f.Delete(m).Execute(ctx)
	assert.Error(t, err, "delete without a predicate must be explicit")

	affected, err = f.Delete(m).Where(m.Age.Gt(19)).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	affected, err = f.Delete(m).Unfiltered().Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t, persistence.WithPersistenceContext(16))
	fx := seed(t, f)

	assert.NotZero(t, fx.teamA.ID)
	assert.Equal(t, fx.teamA.ID, *fx.members[0].TeamID)
	assert.Equal(t, 6, f.Context().Len())

	hello, err := persistence.Persist(ctx, f, model.NewQHello("hello").Entity(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hello.ID)

	_, err = persistence.Persist(ctx, f, model.NewQMember("member").Entity(), map[string]any{"username": "x"})
	assert.Error(t, err)
}
