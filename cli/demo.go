package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/spf13/cobra"
)

type memberView struct {
	ID       int64   `json:"id"`
	Username *string `json:"username"`
	Age      int     `json:"age"`
	Team     *string `json:"team"`
}

func viewOf(m *model.Member) memberView {
	v := memberView{ID: m.ID, Username: m.Username, Age: m.Age}
	if m.Team != nil {
		v.Team = &m.Team.Name
	}
	return v
}

func memberRows(members []memberView) [][]any {
	rows := make([][]any, len(members))
	for i, m := range members {
		row := []any{m.ID, nil, m.Age, nil}
		if m.Username != nil {
			row[1] = *m.Username
		}
		if m.Team != nil {
			row[3] = *m.Team
		}
		rows[i] = row
	}
	return rows
}

type teamAverage struct {
	Team       string  `json:"team"`
	Members    int64   `json:"members"`
	AverageAge float64 `json:"averageAge"`
}

type demoResult struct {
	Members []memberView  `json:"members"`
	Teams   []teamAverage `json:"teams"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Store the membership fixture and query it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), rootOpts, cmd.OutOrStdout())
		},
	}
}

// seedMembership stores teamA and teamB and member1..member4 aged 10 to 40,
// the first two in teamA.
func seedMembership(ctx context.Context, f *persistence.QueryFactory) error {
	return f.Transact(ctx, func(tx *persistence.QueryFactory) error {
		qt := model.NewQTeam("team")
		qm := model.NewQMember("member")
		var teams []*model.Team
		for _, name := range []string{"teamA", "teamB"} {
			team, err := persistence.Persist(ctx, tx, qt.Entity(), (&model.Team{Name: name}).Document())
			if err != nil {
				return err
			}
			teams = append(teams, team)
		}
		for i := range 4 {
			m := model.NewMember(fmt.Sprintf("member%d", i+1), (i+1)*10, teams[i/2])
			if _, err := persistence.Persist(ctx, tx, qm.Entity(), m.Document()); err != nil {
				return err
			}
		}
		return nil
	})
}

func runDemo(ctx context.Context, opts *RootOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := seedMembership(ctx, s.factory); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	m := model.NewQMember("member")
	t := model.NewQTeam("team")

	members, err := persistence.SelectFrom(s.factory, m.Entity()).
		LeftJoin(m.Team, t).FetchJoin().
		OrderBy(m.Age.Asc()).
		FetchAll(ctx)
	if err != nil {
		return err
	}

	tuples, err := s.factory.SelectTuple(t.Name, m.Count(), m.Age.Avg()).
		From(m).
		Join(m.Team, t).
		GroupBy(t.Name).
		OrderBy(t.Name.Asc()).
		FetchAll(ctx)
	if err != nil {
		return err
	}

	result := demoResult{Members: make([]memberView, len(members))}
	for i, member := range members {
		result.Members[i] = viewOf(member)
	}
	for _, tuple := range tuples {
		var avg teamAverage
		if avg.Team, err = query.TupleValue[string](tuple, t.Name); err != nil {
			return err
		}
		if avg.Members, err = query.TupleValue[int64](tuple, m.Count()); err != nil {
			return err
		}
		if avg.AverageAge, err = query.TupleValue[float64](tuple, m.Age.Avg()); err != nil {
			return err
		}
		result.Teams = append(result.Teams, avg)
	}

	return newPrinter(opts, w).print(result, func(w io.Writer) error {
		if err := table(w, []string{"ID", "USERNAME", "AGE", "TEAM"}, memberRows(result.Members)); err != nil {
			return err
		}
		fmt.Fprintln(w)
		rows := make([][]any, len(result.Teams))
		for i, t := range result.Teams {
			rows[i] = []any{t.Team, t.Members, fmt.Sprintf("%.1f", t.AverageAge)}
		}
		return table(w, []string{"TEAM", "MEMBERS", "AVG AGE"}, rows)
	})
}
