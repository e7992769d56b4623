package model

import (
	"testing"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	names := []string{}
	for _, def := range Registry().Entities() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"Hello", "Team", "Member"}, names)
	assert.Equal(t, "team_id", MemberEntity.FindField("team").ColumnName())
	assert.True(t, MemberEntity.FindField("username").Nullable)
}

func TestMemberFromDocument(t *testing.T) {
	t.Run("reference id", func(t *testing.T) {
		m, err := MemberFromDocument(schema.Document{"id": int64(1), "username": "member1", "age": int64(10), "team": int64(2)})
		require.NoError(t, err)
		assert.Equal(t, "member1", *m.Username)
		assert.Equal(t, 10, m.Age)
		assert.Equal(t, int64(2), *m.TeamID)
		assert.Nil(t, m.Team)
	})

	t.Run("fetched team", func(t *testing.T) {
		m, err := MemberFromDocument(schema.Document{
			"id": int64(1), "username": nil, "age": int64(10),
			"team": schema.Document{"id": int64(2), "name": "teamA"},
		})
		require.NoError(t, err)
		assert.Nil(t, m.Username)
		require.NotNil(t, m.Team)
		assert.Equal(t, "teamA", m.Team.Name)
		assert.Equal(t, int64(2), *m.TeamID)
	})

	t.Run("no team", func(t *testing.T) {
		m, err := MemberFromDocument(schema.Document{"id": int64(1), "age": int64(10), "team": nil})
		require.NoError(t, err)
		assert.Nil(t, m.TeamID)
		assert.Nil(t, m.Team)
	})

	t.Run("bad values", func(t *testing.T) {
		_, err := MemberFromDocument(schema.Document{"id": "one", "age": int64(10)})
		var me *query.MappingError
		assert.ErrorAs(t, err, &me)

		_, err = MemberFromDocument(schema.Document{"id": int64(1), "age": int64(10), "team": "teamA"})
		assert.ErrorAs(t, err, &me)
	})
}

func TestMemberDocument(t *testing.T) {
	team := &Team{ID: 3, Name: "teamA"}
	doc := NewMember("member1", 10, team).Document()
	assert.Equal(t, schema.Document{"username": "member1", "age": 10, "team": int64(3)}, doc)

	doc = (&Member{Age: 5}).Document()
	assert.Nil(t, doc["username"])
	assert.Nil(t, doc["team"])

	validated, err := schema.NewValidator(MemberEntity).Validate(doc, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), validated["age"])
}

func TestProjections(t *testing.T) {
	m := NewQMember("member")
	assert.NoError(t, m.Entity().Err())
	assert.NoError(t, m.Dto().Err())
	assert.NoError(t, m.DtoFields().Err())

	dto, err := m.Dto().Map(query.Row{"member1", int64(10)})
	require.NoError(t, err)
	assert.Equal(t, MemberDto{Username: "member1", Age: 10}, dto)

	dto, err = m.DtoFields().Map(query.Row{nil, int64(20)})
	require.NoError(t, err)
	assert.Equal(t, MemberDto{Age: 20}, dto)

	assert.Equal(t, "team", NewQTeam("team").Alias)
}
