package query

import (
	"errors"
	"fmt"
	"slices"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// Builder provides a fluent API for building Query descriptors. A Builder is
// an immutable value: every method returns a new Builder and leaves the
// receiver untouched, so partially built queries can be shared and extended
// from several goroutines.
//
// Type errors in expressions do not panic; they are carried by the nodes and
// reported together by Build.
type Builder struct {
	q    Query
	errs []error
}

// Select starts a query projecting the given expressions.
func Select(exprs ...Expression) Builder {
	return Builder{}.Select(exprs...)
}

// SelectFrom starts a query selecting and reading from a single entity.
func SelectFrom(e Source) Builder {
	return Builder{}.Select(e.Path()).From(e)
}

// From starts a query reading from the given sources. Without an explicit
// projection the first source is selected.
func From(sources ...Source) Builder {
	return Builder{}.From(sources...)
}

func (b Builder) clone() Builder {
	b.q.Projections = slices.Clone(b.q.Projections)
	b.q.Sources = slices.Clone(b.q.Sources)
	b.q.Joins = slices.Clone(b.q.Joins)
	b.q.GroupBy = slices.Clone(b.q.GroupBy)
	b.q.OrderBy = slices.Clone(b.q.OrderBy)
	b.errs = slices.Clone(b.errs)
	return b
}

// Select replaces the projection.
func (b Builder) Select(exprs ...Expression) Builder {
	b = b.clone()
	b.q.Projections = make([]Expression, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			b.errs = append(b.errs, &QueryValidationError{Field: "select", Message: "projection cannot be nil"})
			continue
		}
		b.q.Projections = append(b.q.Projections, Unwrap(e))
	}
	return b
}

// From adds source entities. Several sources form a cartesian product that
// Where narrows down (a theta join).
func (b Builder) From(sources ...Source) Builder {
	b = b.clone()
	for _, s := range sources {
		b.q.Sources = append(b.q.Sources, s.Path())
	}
	return b
}

func (b Builder) join(t JoinType, relation *ReferencePath, target Source) Builder {
	b = b.clone()
	j := Join{Type: t, Target: target.Path()}
	if relation != nil {
		j.Relation = relation.Column()
	}
	b.q.Joins = append(b.q.Joins, j)
	return b
}

// Join inner-joins target along a reference field of an already bound
// entity.
func (b Builder) Join(relation ReferencePath, target Source) Builder {
	return b.join(JoinTypeInner, &relation, target)
}

// InnerJoin is an alias of Join.
func (b Builder) InnerJoin(relation ReferencePath, target Source) Builder {
	return b.join(JoinTypeInner, &relation, target)
}

// LeftJoin left-joins target along a reference field.
func (b Builder) LeftJoin(relation ReferencePath, target Source) Builder {
	return b.join(JoinTypeLeft, &relation, target)
}

// RightJoin right-joins target along a reference field.
func (b Builder) RightJoin(relation ReferencePath, target Source) Builder {
	return b.join(JoinTypeRight, &relation, target)
}

// JoinEntity inner-joins an entity with no declared relation. Without an
// on-clause it is a cross join.
func (b Builder) JoinEntity(target Source) Builder {
	return b.join(JoinTypeInner, nil, target)
}

// LeftJoinEntity left-joins an entity with no declared relation. The join
// must be followed by On.
func (b Builder) LeftJoinEntity(target Source) Builder {
	return b.join(JoinTypeLeft, nil, target)
}

// RightJoinEntity right-joins an entity with no declared relation. The join
// must be followed by On.
func (b Builder) RightJoinEntity(target Source) Builder {
	return b.join(JoinTypeRight, nil, target)
}

// On adds conditions to the most recent join. For relation joins they are
// conjoined with the key equality.
func (b Builder) On(preds ...Predicate) Builder {
	b = b.clone()
	if len(b.q.Joins) == 0 {
		b.errs = append(b.errs, &QueryValidationError{Field: "on", Message: "on-clause without a preceding join"})
		return b
	}
	last := &b.q.Joins[len(b.q.Joins)-1]
	last.On = And(append([]Predicate{last.On}, preds...)...)
	return b
}

// FetchJoin marks the most recent join as a fetch join: the joined entity is
// loaded together with its owner in the same round trip.
func (b Builder) FetchJoin() Builder {
	b = b.clone()
	if len(b.q.Joins) == 0 {
		b.errs = append(b.errs, &QueryValidationError{Field: "fetchJoin", Message: "fetch join without a preceding join"})
		return b
	}
	b.q.Joins[len(b.q.Joins)-1].Fetch = true
	return b
}

// Where conjoins predicates with the existing filter. Nil predicates are
// ignored, so optional filters can be passed directly.
func (b Builder) Where(preds ...Predicate) Builder {
	b = b.clone()
	b.q.Where = And(append([]Predicate{b.q.Where}, preds...)...)
	return b
}

// GroupBy appends grouping keys.
func (b Builder) GroupBy(exprs ...Expression) Builder {
	b = b.clone()
	for _, e := range exprs {
		b.q.GroupBy = append(b.q.GroupBy, Unwrap(e))
	}
	return b
}

// Having conjoins predicates with the existing group filter.
func (b Builder) Having(preds ...Predicate) Builder {
	b = b.clone()
	b.q.Having = And(append([]Predicate{b.q.Having}, preds...)...)
	return b
}

// OrderBy appends order keys.
func (b Builder) OrderBy(specs ...OrderSpecifier) Builder {
	b = b.clone()
	for _, o := range specs {
		o.Target = Unwrap(o.Target)
		b.q.OrderBy = append(b.q.OrderBy, o)
	}
	return b
}

// Offset skips the first n rows.
func (b Builder) Offset(n int) Builder {
	b = b.clone()
	b.q.Offset = &n
	return b
}

// Limit caps the number of rows.
func (b Builder) Limit(n int) Builder {
	b = b.clone()
	b.q.Limit = &n
	return b
}

// Distinct removes duplicate rows.
func (b Builder) Distinct() Builder {
	b = b.clone()
	b.q.Distinct = true
	return b
}

// String returns a readable representation of the query built so far.
func (b Builder) String() string {
	return b.q.String()
}

// Build validates the builder and freezes it into a Query. All construction
// errors are reported at once, joined with errors.Join.
func (b Builder) Build() (Query, error) {
	q := b.clone().q
	if len(q.Projections) == 0 && len(q.Sources) > 0 {
		q.Projections = []Expression{q.Sources[0]}
	}

	errs := slices.Clone(b.errs)
	collect := func(e Expression) {
		if e == nil {
			return
		}
		if err := e.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, s := range q.Sources {
		collect(s)
	}
	for _, p := range q.Projections {
		collect(p)
	}
	for _, j := range q.Joins {
		collect(j.Target)
		if j.Relation != nil {
			collect(j.Relation)
		}
		if j.On != nil {
			collect(j.On)
		}
	}
	if q.Where != nil {
		collect(q.Where)
	}
	for _, g := range q.GroupBy {
		collect(g)
	}
	if q.Having != nil {
		collect(q.Having)
	}
	for _, o := range q.OrderBy {
		collect(o.Target)
	}
	if len(errs) > 0 {
		return q, errors.Join(errs...)
	}

	if len(q.Sources) == 0 {
		errs = append(errs, &QueryValidationError{Field: "from", Message: "query has no source entity"})
	}
	errs = append(errs, validateAliases(q)...)
	errs = append(errs, validateJoins(q)...)
	errs = append(errs, validateOrder(q)...)

	if q.Offset != nil && *q.Offset < 0 {
		errs = append(errs, &QueryValidationError{Field: "offset", Message: "offset cannot be negative"})
	}
	if q.Limit != nil && *q.Limit < 0 {
		errs = append(errs, &QueryValidationError{Field: "limit", Message: "limit cannot be negative"})
	}

	if err := checkSubqueryScopes(q, nil); err != nil {
		errs = append(errs, err)
	}
	return q, errors.Join(errs...)
}

func validateAliases(q Query) []error {
	var errs []error
	seen := make(map[string]bool)
	for _, alias := range q.Aliases() {
		if seen[alias] {
			errs = append(errs, &AmbiguousAliasError{Alias: alias})
		}
		seen[alias] = true
	}
	return errs
}

func validateJoins(q Query) []error {
	var errs []error
	bound := make(map[string]bool)
	for _, s := range q.Sources {
		bound[s.Alias] = true
	}

	projected := make(map[string]bool)
	for _, p := range q.Projections {
		if e, ok := p.(EntityPath); ok {
			projected[e.Alias] = true
		}
	}

	for i, j := range q.Joins {
		field := fmt.Sprintf("joins[%d]", i)
		if j.Relation != nil {
			if !bound[j.Relation.Alias] {
				errs = append(errs, &QueryValidationError{
					Field:   field,
					Message: fmt.Sprintf("relation '%s' belongs to unbound alias '%s'", j.Relation, j.Relation.Alias),
				})
			}
			if j.Relation.Field.Reference != j.Target.Definition.Name {
				errs = append(errs, &QueryValidationError{
					Field:   field,
					Message: fmt.Sprintf("relation '%s' references %s, not %s", j.Relation, j.Relation.Field.Reference, j.Target.Definition.Name),
				})
			}
		} else if j.On == nil && j.Type != JoinTypeInner {
			errs = append(errs, &UnsupportedJoinError{
				Alias:  j.Target.Alias,
				Type:   j.Type,
				Reason: "an outer join to an unrelated entity requires an on-clause",
			})
		}

		if j.Fetch {
			switch {
			case j.Relation == nil:
				errs = append(errs, &UnsupportedJoinError{Alias: j.Target.Alias, Type: j.Type, Reason: "fetch joins must follow a relation"})
			case !projected[j.Relation.Alias]:
				errs = append(errs, &UnsupportedJoinError{
					Alias:  j.Target.Alias,
					Type:   j.Type,
					Reason: fmt.Sprintf("owner '%s' of the fetched association is not selected", j.Relation.Alias),
				})
			case j.Type == JoinTypeRight:
				errs = append(errs, &UnsupportedJoinError{Alias: j.Target.Alias, Type: j.Type, Reason: "right joins cannot be fetched"})
			}
		}
		bound[j.Target.Alias] = true
	}
	return errs
}

func validateOrder(q Query) []error {
	var errs []error
	bound := make(map[string]bool)
	for _, alias := range q.Aliases() {
		bound[alias] = true
	}
	for i, o := range q.OrderBy {
		field := fmt.Sprintf("orderBy[%d]", i)
		if o.Target.Type() == schema.FieldTypeEntity {
			errs = append(errs, &QueryValidationError{Field: field, Message: "cannot order by an entity"})
			continue
		}
		walk(o.Target, func(e Expression) {
			if c, ok := e.(*ColumnExpr); ok && !bound[c.Alias] {
				errs = append(errs, &QueryValidationError{
					Field:   field,
					Message: fmt.Sprintf("order key '%s' references unbound alias '%s'", c, c.Alias),
				})
			}
		})
	}
	return errs
}

// subqueries returns the subqueries directly nested in q's clauses.
func subqueries(q Query) []*SubqueryExpr {
	var subs []*SubqueryExpr
	visit := func(e Expression) {
		walk(e, func(n Expression) {
			if s, ok := n.(*SubqueryExpr); ok {
				subs = append(subs, s)
			}
		})
	}
	for _, p := range q.Projections {
		visit(p)
	}
	for _, j := range q.Joins {
		visit(j.On)
	}
	visit(q.Where)
	for _, g := range q.GroupBy {
		visit(g)
	}
	visit(q.Having)
	for _, o := range q.OrderBy {
		visit(o.Target)
	}
	return subs
}

// checkSubqueryScopes reports a subquery that binds an alias already bound by
// an enclosing query. Such a subquery would silently correlate with, or
// shadow, the outer entity.
func checkSubqueryScopes(q Query, outer map[string]bool) error {
	scope := make(map[string]bool, len(outer))
	for alias := range outer {
		scope[alias] = true
	}
	for _, alias := range q.Aliases() {
		scope[alias] = true
	}
	for _, sub := range subqueries(q) {
		for _, alias := range sub.Query.Aliases() {
			if scope[alias] {
				return &AmbiguousAliasError{Alias: alias, Scope: "an enclosing query"}
			}
		}
		if err := checkSubqueryScopes(sub.Query, scope); err != nil {
			return err
		}
	}
	return nil
}
