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

// SearchCondition holds the optional member filters. Nil fields are not
// applied.
type SearchCondition struct {
	Username *string
	Team     *string
	MinAge   *int
	MaxAge   *int
}

type searchResult struct {
	Total   int64        `json:"total"`
	Offset  int          `json:"offset"`
	Members []memberView `json:"members"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		username, team string
		minAge, maxAge int
		offset, limit  int
		seed           bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search members by optional filters",
		Long: `Search members by any combination of username, team and age range.
Filters that are not given are left out of the query.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cond SearchCondition
			flags := cmd.Flags()
			if flags.Changed("username") {
				cond.Username = &username
			}
			if flags.Changed("team") {
				cond.Team = &team
			}
			if flags.Changed("min-age") {
				cond.MinAge = &minAge
			}
			if flags.Changed("max-age") {
				cond.MaxAge = &maxAge
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := openSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			if seed {
				if err := seedMembership(ctx, s.factory); err != nil {
					return fmt.Errorf("failed to seed: %w", err)
				}
			}
			return runSearch(ctx, rootOpts, s.factory, cond, offset, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "exact username")
	cmd.Flags().StringVar(&team, "team", "", "team name")
	cmd.Flags().IntVar(&minAge, "min-age", 0, "minimum age (inclusive)")
	cmd.Flags().IntVar(&maxAge, "max-age", 0, "maximum age (inclusive)")
	cmd.Flags().IntVar(&offset, "offset", 0, "results to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results, 0 for all")
	cmd.Flags().BoolVar(&seed, "seed", false, "store the demo fixture before searching")
	return cmd
}

// SearchMembers builds the member search for a condition.
func SearchMembers(f *persistence.QueryFactory, cond SearchCondition) persistence.TypedQuery[*model.Member] {
	m := model.NewQMember("member")
	t := model.NewQTeam("team")
	return persistence.SelectFrom(f, m.Entity()).
		LeftJoin(m.Team, t).FetchJoin().
		Where(
			query.When(cond.Username, m.Username.Eq),
			query.When(cond.Team, t.Name.Eq),
			query.When(cond.MinAge, m.Age.Goe),
			query.When(cond.MaxAge, m.Age.Loe),
		).
		OrderBy(m.Age.Asc(), m.Username.Asc())
}

func runSearch(ctx context.Context, opts *RootOptions, f *persistence.QueryFactory, cond SearchCondition, offset, limit int, w io.Writer) error {
	q := SearchMembers(f, cond)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	results, err := q.FetchResults(ctx)
	if err != nil {
		return err
	}
	out := searchResult{Total: results.Total, Offset: results.Offset, Members: make([]memberView, len(results.Items))}
	for i, m := range results.Items {
		out.Members[i] = viewOf(m)
	}

	return newPrinter(opts, w).print(out, func(w io.Writer) error {
		if err := table(w, []string{"ID", "USERNAME", "AGE", "TEAM"}, memberRows(out.Members)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d of %d\n", len(out.Members), out.Total)
		return err
	})
}
