package persistence

import (
	"context"
	"errors"
	"iter"

	"github.com/asaidimu/go-querydsl/core/query"
)

// TypedQuery is a query builder bound to a factory and a projection. Like
// query.Builder it is an immutable value; its terminal operations execute
// the query and map every row into a T.
type TypedQuery[T any] struct {
	f       *QueryFactory
	builder query.Builder
	project query.Projection[T]
}

// Select starts a query producing values of the projection.
func Select[T any](f *QueryFactory, p query.Projection[T]) TypedQuery[T] {
	return TypedQuery[T]{f: f, builder: query.Select(p.Expressions()...), project: p}
}

// SelectFrom starts a query selecting and reading from the projected entity.
func SelectFrom[T any](f *QueryFactory, p query.EntityProjection[T]) TypedQuery[T] {
	return TypedQuery[T]{f: f, builder: query.SelectFrom(p.Path()), project: p}
}

// Project binds an existing builder to a projection, replacing its select
// list.
func Project[T any](f *QueryFactory, b query.Builder, p query.Projection[T]) TypedQuery[T] {
	return TypedQuery[T]{f: f, builder: b.Select(p.Expressions()...), project: p}
}

// SelectTuple starts a query producing tuples of the expressions.
func (f *QueryFactory) SelectTuple(exprs ...query.Expression) TypedQuery[query.Tuple] {
	return Select[query.Tuple](f, query.TupleOf(exprs...))
}

func (t TypedQuery[T]) with(b query.Builder) TypedQuery[T] {
	t.builder = b
	return t
}

func (t TypedQuery[T]) From(sources ...query.Source) TypedQuery[T] {
	return t.with(t.builder.From(sources...))
}

func (t TypedQuery[T]) Join(relation query.ReferencePath, target query.Source) TypedQuery[T] {
	return t.with(t.builder.Join(relation, target))
}

func (t TypedQuery[T]) InnerJoin(relation query.ReferencePath, target query.Source) TypedQuery[T] {
	return t.with(t.builder.InnerJoin(relation, target))
}

func (t TypedQuery[T]) LeftJoin(relation query.ReferencePath, target query.Source) TypedQuery[T] {
	return t.with(t.builder.LeftJoin(relation, target))
}

func (t TypedQuery[T]) RightJoin(relation query.ReferencePath, target query.Source) TypedQuery[T] {
	return t.with(t.builder.RightJoin(relation, target))
}

func (t TypedQuery[T]) JoinEntity(target query.Source) TypedQuery[T] {
	return t.with(t.builder.JoinEntity(target))
}

func (t TypedQuery[T]) LeftJoinEntity(target query.Source) TypedQuery[T] {
	return t.with(t.builder.LeftJoinEntity(target))
}

func (t TypedQuery[T]) RightJoinEntity(target query.Source) TypedQuery[T] {
	return t.with(t.builder.RightJoinEntity(target))
}

func (t TypedQuery[T]) On(preds ...query.Predicate) TypedQuery[T] {
	return t.with(t.builder.On(preds...))
}

func (t TypedQuery[T]) FetchJoin() TypedQuery[T] {
	return t.with(t.builder.FetchJoin())
}

func (t TypedQuery[T]) Where(preds ...query.Predicate) TypedQuery[T] {
	return t.with(t.builder.Where(preds...))
}

func (t TypedQuery[T]) GroupBy(exprs ...query.Expression) TypedQuery[T] {
	return t.with(t.builder.GroupBy(exprs...))
}

func (t TypedQuery[T]) Having(preds ...query.Predicate) TypedQuery[T] {
	return t.with(t.builder.Having(preds...))
}

func (t TypedQuery[T]) OrderBy(specs ...query.OrderSpecifier) TypedQuery[T] {
	return t.with(t.builder.OrderBy(specs...))
}

func (t TypedQuery[T]) Offset(n int) TypedQuery[T] {
	return t.with(t.builder.Offset(n))
}

func (t TypedQuery[T]) Limit(n int) TypedQuery[T] {
	return t.with(t.builder.Limit(n))
}

func (t TypedQuery[T]) Distinct() TypedQuery[T] {
	return t.with(t.builder.Distinct())
}

// Builder returns the untyped builder, for use as a subquery.
func (t TypedQuery[T]) Builder() query.Builder {
	return t.builder
}

func (t TypedQuery[T]) String() string {
	return t.builder.String()
}

// Build validates the projection and the query and freezes the query.
func (t TypedQuery[T]) Build() (query.Query, error) {
	q, err := t.builder.Build()
	return q, errors.Join(t.project.Err(), err)
}

func (t TypedQuery[T]) open(ctx context.Context, q query.Query) (*Cursor[T], error) {
	rows, err := t.f.executor.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	c := &Cursor[T]{rows: rows, project: t.project, pctx: t.f.pctx}
	c.identified, _ = t.project.(query.IdentifiedProjection)
	if c.identified != nil {
		groups := query.NewResultLayout(q).Groups
		c.refresh = len(groups) == 1 && len(groups[0].Fetched) > 0
	}
	return c, nil
}

// Fetch executes the query and returns a cursor over its results. The cursor
// holds a connection until it is exhausted or closed.
func (t TypedQuery[T]) Fetch(ctx context.Context) (*Cursor[T], error) {
	q, err := t.Build()
	if err != nil {
		return nil, err
	}
	return t.open(ctx, q)
}

// FetchAll executes the query and returns every result. The slice is empty,
// never nil, when nothing matches.
func (t TypedQuery[T]) FetchAll(ctx context.Context) ([]T, error) {
	c, err := t.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return c.All()
}

// FetchOne returns the single result of the query. It fails with a
// *query.NotFoundError when nothing matches and a *query.TooManyResultsError
// when more than one row does. At most two rows are read.
func (t TypedQuery[T]) FetchOne(ctx context.Context) (T, error) {
	var zero T
	q, err := t.Build()
	if err != nil {
		return zero, err
	}
	if q.Limit == nil || *q.Limit > 2 {
		q.Limit = query.IntPtr(2)
	}
	c, err := t.open(ctx, q)
	if err != nil {
		return zero, err
	}
	items, err := c.All()
	if err != nil {
		return zero, err
	}
	switch len(items) {
	case 0:
		return zero, &query.NotFoundError{Query: q.String()}
	case 1:
		return items[0], nil
	default:
		return zero, &query.TooManyResultsError{Query: q.String(), Count: len(items)}
	}
}

// FetchFirst returns the first result of the query. The second result is
// false when nothing matches.
func (t TypedQuery[T]) FetchFirst(ctx context.Context) (T, bool, error) {
	var zero T
	items, err := t.Limit(1).FetchAll(ctx)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

// FetchCount returns the number of results the query would produce,
// ignoring its offset and limit.
func (t TypedQuery[T]) FetchCount(ctx context.Context) (int64, error) {
	q, err := t.Build()
	if err != nil {
		return 0, err
	}
	return t.f.executor.Count(ctx, q)
}

// Results is one page of results along with the total across all pages.
type Results[T any] struct {
	Items  []T
	Total  int64
	Offset int
	Limit  *int
}

// FetchResults returns the current page and the total count. The page and
// the count are read by two separate statements, so concurrent writes
// between them can make the two disagree.
func (t TypedQuery[T]) FetchResults(ctx context.Context) (Results[T], error) {
	q, err := t.Build()
	if err != nil {
		return Results[T]{}, err
	}
	items, err := t.FetchAll(ctx)
	if err != nil {
		return Results[T]{}, err
	}
	total, err := t.f.executor.Count(ctx, q)
	if err != nil {
		return Results[T]{}, err
	}
	r := Results[T]{Items: items, Total: total, Limit: q.Limit}
	if q.Offset != nil {
		r.Offset = *q.Offset
	}
	return r, nil
}

// Cursor iterates over the results of a query. A cursor is not restartable
// and must be closed unless it was read to the end.
type Cursor[T any] struct {
	rows       Rows
	project    query.Projection[T]
	identified query.IdentifiedProjection
	pctx       *PersistenceContext
	// refresh replaces cached entities with the row read, so fetched
	// associations are never hidden behind an instance loaded without them.
	refresh    bool
	current    T
	err        error
	done       bool
}

// Next advances to the next result. It returns false when the results are
// exhausted or an error occurred, closing the cursor.
func (c *Cursor[T]) Next() bool {
	if c.done {
		return false
	}
	if !c.rows.Next() {
		c.err = errors.Join(c.err, c.rows.Err(), c.Close())
		return false
	}
	value, err := c.materialize(c.rows.Row())
	if err != nil {
		c.err = errors.Join(err, c.Close())
		return false
	}
	c.current = value
	return true
}

func (c *Cursor[T]) materialize(row query.Row) (T, error) {
	if c.identified == nil || c.pctx == nil {
		return c.project.Map(row)
	}
	entity, id, ok := c.identified.EntityKey(row)
	if ok && !c.refresh {
		if cached, found := c.pctx.Lookup(entity, id); found {
			if value, isT := cached.(T); isT {
				return value, nil
			}
		}
	}
	value, err := c.project.Map(row)
	if err == nil && ok {
		c.pctx.Store(entity, id, value)
	}
	return value, err
}

// Value returns the current result.
func (c *Cursor[T]) Value() T {
	return c.current
}

// Err returns the error that stopped the iteration, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor[T]) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	return c.rows.Close()
}

// All reads the remaining results and closes the cursor.
func (c *Cursor[T]) All() ([]T, error) {
	defer c.Close()
	items := make([]T, 0)
	for c.Next() {
		items = append(items, c.Value())
	}
	if c.err != nil {
		return nil, c.err
	}
	return items, nil
}

// Seq returns an iterator over the remaining results. An error ends the
// sequence as its last element. The cursor is closed when the loop ends.
func (c *Cursor[T]) Seq() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.Value(), nil) {
				return
			}
		}
		if c.err != nil {
			var zero T
			yield(zero, c.err)
		}
	}
}
