package persistence_test

import (
	"context"
	"testing"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/asaidimu/go-querydsl/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newFactory(t *testing.T, opts ...persistence.Option) *persistence.QueryFactory {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	f, err := persistence.NewQueryFactory(
		sqlite.NewSQLiteInteractor(db, logger, nil, nil),
		append([]persistence.Option{persistence.WithLogger(logger)}, opts...)...,
	)
	require.NoError(t, err)
	require.NoError(t, f.CreateSchema(context.Background(), model.Registry()))
	return f
}

type fixture struct {
	teamA, teamB *model.Team
	members      []*model.Member
}

// seed stores teamA and teamB and member1..member4 aged 10 to 40, the first
// two in teamA.
func seed(t *testing.T, f *persistence.QueryFactory) fixture {
	t.Helper()
	ctx := context.Background()
	qt := model.NewQTeam("team")
	qm := model.NewQMember("member")

	var fx fixture
	var err error
	fx.teamA, err = persistence.Persist(ctx, f, qt.Entity(), (&model.Team{Name: "teamA"}).Document())
	require.NoError(t, err)
	fx.teamB, err = persistence.Persist(ctx, f, qt.Entity(), (&model.Team{Name: "teamB"}).Document())
	require.NoError(t, err)

	for i, name := range []string{"member1", "member2", "member3", "member4"} {
		team := fx.teamA
		if i >= 2 {
			team = fx.teamB
		}
		m, err := persistence.Persist(ctx, f, qm.Entity(), model.NewMember(name, (i+1)*10, team).Document())
		require.NoError(t, err)
		fx.members = append(fx.members, m)
	}
	return fx
}

func persistMember(t *testing.T, f *persistence.QueryFactory, m *model.Member) *model.Member {
	t.Helper()
	stored, err := persistence.Persist(context.Background(), f, model.NewQMember("member").Entity(), m.Document())
	require.NoError(t, err)
	return stored
}

func usernames(members []*model.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		if m.Username == nil {
			out[i] = "<nil>"
			continue
		}
		out[i] = *m.Username
	}
	return out
}
