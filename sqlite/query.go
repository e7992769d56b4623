package sqlite

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
)

// DateTimeLayout is the storage format of datetime values. The fixed width
// keeps lexical order equal to chronological order.
const DateTimeLayout = "2006-01-02 15:04:05.000000000"

// QueryOption configures a SqliteQuery.
type QueryOption func(*SqliteQuery)

// WithTablePrefix prepends prefix to every table name.
func WithTablePrefix(prefix string) QueryOption {
	return func(s *SqliteQuery) { s.tablePrefix = prefix }
}

// WithNullOrdering sets where NULL keys sort when an order specifier leaves
// it unspecified. NullHandlingDefault leaves the placement to SQLite.
func WithNullOrdering(n query.NullHandling) QueryOption {
	return func(s *SqliteQuery) { s.defaultNulls = n }
}

// SqliteQuery translates frozen queries and bulk statements into SQLite SQL.
// It holds no per-query state and is safe for concurrent use.
type SqliteQuery struct {
	tablePrefix  string
	defaultNulls query.NullHandling
}

var _ query.QueryGenerator = (*SqliteQuery)(nil)

// NewSqliteQuery creates a generator. Unless configured otherwise NULL keys
// sort first.
func NewSqliteQuery(opts ...QueryOption) *SqliteQuery {
	s := &SqliteQuery{defaultNulls: query.NullHandlingFirst}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (s *SqliteQuery) tableName(def *schema.EntityDefinition) string {
	return quoteIdentifier(s.tablePrefix + def.TableName())
}

// prepareValue converts a literal into the storage representation SQLite
// expects: booleans as 0/1 and datetimes as fixed-width UTC text.
func prepareValue(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return v.UTC().Format(DateTimeLayout)
	default:
		return value
	}
}

// renderer accumulates positional parameters while walking an expression
// tree. Bulk statements render bare column names; nested subqueries always
// qualify theirs.
type renderer struct {
	gen     *SqliteQuery
	params  *[]any
	qualify bool
}

func (s *SqliteQuery) newRenderer(params *[]any, qualify bool) *renderer {
	return &renderer{gen: s, params: params, qualify: qualify}
}

func (r *renderer) nested() *renderer {
	return &renderer{gen: r.gen, params: r.params, qualify: true}
}

func (r *renderer) bind(value any) string {
	if value == nil {
		return "NULL"
	}
	*r.params = append(*r.params, prepareValue(value))
	return "?"
}

func (r *renderer) column(alias, column string) string {
	if !r.qualify {
		return quoteIdentifier(column)
	}
	return quoteIdentifier(alias) + "." + quoteIdentifier(column)
}

func (r *renderer) expr(e query.Expression) (string, error) {
	switch n := query.Unwrap(e).(type) {
	case nil:
		return "", fmt.Errorf("cannot render a nil expression")
	case *query.ColumnExpr:
		name := n.Name
		if n.Field != nil {
			name = n.Field.ColumnName()
		}
		return r.column(n.Alias, name), nil
	case query.EntityPath:
		return r.column(n.Alias, n.Definition.IdentifierName()), nil
	case *query.LiteralExpr:
		return r.bind(n.Value), nil
	case *query.ComparisonExpr:
		return r.comparison(n)
	case *query.LogicalExpr:
		parts := make([]string, len(n.Operands))
		for i, op := range n.Operands {
			sql, err := r.expr(op)
			if err != nil {
				return "", err
			}
			parts[i] = sql
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(n.Op))+" ") + ")", nil
	case *query.NotExpr:
		inner, err := r.expr(n.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case *query.NullCheckExpr:
		inner, err := r.expr(n.Operand)
		if err != nil {
			return "", err
		}
		if n.Negated {
			return inner + " IS NOT NULL", nil
		}
		return inner + " IS NULL", nil
	case *query.AggregateExpr:
		inner, err := r.expr(n.Operand)
		if err != nil {
			return "", err
		}
		switch n.Func {
		case query.AggregationTypeCount:
			return "COUNT(" + inner + ")", nil
		case query.AggregationTypeCountDistinct:
			return "COUNT(DISTINCT " + inner + ")", nil
		case query.AggregationTypeSum:
			return "SUM(" + inner + ")", nil
		case query.AggregationTypeAvg:
			return "AVG(" + inner + ")", nil
		case query.AggregationTypeMin:
			return "MIN(" + inner + ")", nil
		case query.AggregationTypeMax:
			return "MAX(" + inner + ")", nil
		}
		return "", fmt.Errorf("unsupported aggregation: %s", n.Func)
	case *query.ArithmeticExpr:
		left, err := r.expr(n.Left)
		if err != nil {
			return "", err
		}
		right, err := r.expr(n.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + string(n.Op) + " " + right + ")", nil
	case *query.SubqueryExpr:
		sql, err := r.nested().subquery(n.Query, false)
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	case *query.ExistsExpr:
		sql, err := r.nested().subquery(n.Subquery.Query, true)
		if err != nil {
			return "", err
		}
		if n.Negated {
			return "NOT EXISTS (" + sql + ")", nil
		}
		return "EXISTS (" + sql + ")", nil
	default:
		return "", fmt.Errorf("unsupported expression type %T", n)
	}
}

func (r *renderer) comparison(c *query.ComparisonExpr) (string, error) {
	left, err := r.expr(c.Left)
	if err != nil {
		return "", err
	}

	switch c.Op {
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		keyword := "IN"
		if c.Op == query.ComparisonOperatorNin {
			keyword = "NOT IN"
		}
		list, ok := c.Right.(*query.ListExpr)
		if !ok {
			right, err := r.expr(c.Right)
			if err != nil {
				return "", err
			}
			return left + " " + keyword + " " + right, nil
		}
		if len(list.Values) == 0 {
			if c.Op == query.ComparisonOperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		items := make([]string, len(list.Values))
		for i, v := range list.Values {
			sql, err := r.expr(v)
			if err != nil {
				return "", err
			}
			items[i] = sql
		}
		return left + " " + keyword + " (" + strings.Join(items, ", ") + ")", nil

	case query.ComparisonOperatorBetween:
		list, ok := c.Right.(*query.ListExpr)
		if !ok || len(list.Values) != 2 {
			return "", fmt.Errorf("between requires two bounds")
		}
		lo, err := r.expr(list.Values[0])
		if err != nil {
			return "", err
		}
		hi, err := r.expr(list.Values[1])
		if err != nil {
			return "", err
		}
		return left + " BETWEEN " + lo + " AND " + hi, nil

	case query.ComparisonOperatorLike:
		right, err := r.expr(c.Right)
		if err != nil {
			return "", err
		}
		return left + " LIKE " + right + ` ESCAPE '\'`, nil
	}

	right, err := r.expr(c.Right)
	if err != nil {
		return "", err
	}
	return left + " " + c.Op.Symbol() + " " + right, nil
}

// subquery renders a nested select without a terminator. Existence tests
// only need a row, so their select list collapses to a constant.
func (r *renderer) subquery(q query.Query, exists bool) (string, error) {
	list := "1"
	if !exists {
		cols := make([]string, len(q.Projections))
		for i, p := range q.Projections {
			sql, err := r.expr(p)
			if err != nil {
				return "", err
			}
			cols[i] = sql
		}
		list = strings.Join(cols, ", ")
	}
	return r.body(q, list, true)
}

// body renders everything from SELECT to the row window. Ordering and the
// window are skipped for count statements.
func (r *renderer) body(q query.Query, selectList string, window bool) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(selectList)

	if err := r.from(&sb, q); err != nil {
		return "", err
	}
	if err := r.filters(&sb, q); err != nil {
		return "", err
	}
	if !window {
		return sb.String(), nil
	}

	if len(q.OrderBy) > 0 {
		keys := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			key, err := r.order(o)
			if err != nil {
				return "", fmt.Errorf("error building ORDER BY clause: %w", err)
			}
			keys[i] = key
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}

	switch {
	case q.Limit != nil:
		sb.WriteString(" LIMIT " + strconv.Itoa(*q.Limit))
	case q.Offset != nil && *q.Offset > 0:
		sb.WriteString(" LIMIT -1")
	}
	if q.Offset != nil && *q.Offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(*q.Offset))
	}
	return sb.String(), nil
}

func (r *renderer) from(sb *strings.Builder, q query.Query) error {
	if len(q.Sources) == 0 {
		return fmt.Errorf("query has no source")
	}
	sources := make([]string, len(q.Sources))
	for i, src := range q.Sources {
		sources[i] = r.gen.tableName(src.Definition) + " AS " + quoteIdentifier(src.Alias)
	}
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(sources, ", "))

	for _, j := range q.Joins {
		clause, err := r.join(j)
		if err != nil {
			return fmt.Errorf("error building JOIN clause: %w", err)
		}
		sb.WriteString(" ")
		sb.WriteString(clause)
	}
	return nil
}

func (r *renderer) join(j query.Join) (string, error) {
	target := r.gen.tableName(j.Target.Definition) + " AS " + quoteIdentifier(j.Target.Alias)

	var conditions []string
	if j.Relation != nil {
		conditions = append(conditions, r.column(j.Target.Alias, j.Target.Definition.IdentifierName())+
			" = "+r.column(j.Relation.Alias, j.Relation.Field.ColumnName()))
	}
	if j.On != nil {
		on, err := r.expr(j.On)
		if err != nil {
			return "", err
		}
		conditions = append(conditions, on)
	}

	if len(conditions) == 0 {
		if j.Type != query.JoinTypeInner {
			return "", fmt.Errorf("%s join of '%s' needs a condition", j.Type, j.Target.Alias)
		}
		return "CROSS JOIN " + target, nil
	}

	keyword := "INNER JOIN"
	switch j.Type {
	case query.JoinTypeLeft:
		keyword = "LEFT JOIN"
	case query.JoinTypeRight:
		keyword = "RIGHT JOIN"
	}
	return keyword + " " + target + " ON " + strings.Join(conditions, " AND "), nil
}

func (r *renderer) filters(sb *strings.Builder, q query.Query) error {
	if q.Where != nil {
		where, err := r.expr(q.Where)
		if err != nil {
			return fmt.Errorf("error building WHERE clause: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if len(q.GroupBy) > 0 {
		keys := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			key, err := r.expr(g)
			if err != nil {
				return fmt.Errorf("error building GROUP BY clause: %w", err)
			}
			keys[i] = key
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	if q.Having != nil {
		having, err := r.expr(q.Having)
		if err != nil {
			return fmt.Errorf("error building HAVING clause: %w", err)
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(having)
	}
	return nil
}

func (r *renderer) order(o query.OrderSpecifier) (string, error) {
	key, err := r.expr(o.Target)
	if err != nil {
		return "", err
	}
	if o.Direction == query.SortDirectionDesc {
		key += " DESC"
	} else {
		key += " ASC"
	}
	nulls := o.Nulls
	if nulls == query.NullHandlingDefault {
		nulls = r.gen.defaultNulls
	}
	switch nulls {
	case query.NullHandlingFirst:
		key += " NULLS FIRST"
	case query.NullHandlingLast:
		key += " NULLS LAST"
	}
	return key, nil
}

func (r *renderer) selectList(layout *query.ResultLayout) (string, error) {
	var cols []string
	for _, g := range layout.Groups {
		if !g.IsEntity() {
			sql, err := r.expr(g.Expression)
			if err != nil {
				return "", fmt.Errorf("error building SELECT list: %w", err)
			}
			cols = append(cols, sql)
			continue
		}
		for _, c := range g.Columns {
			cols = append(cols, r.column(c.Alias, c.Column))
		}
		for _, f := range g.Fetched {
			for _, c := range f.Columns {
				cols = append(cols, r.column(c.Alias, c.Column))
			}
		}
	}
	return strings.Join(cols, ", "), nil
}

// GenerateSelectSQL creates a complete SQL SELECT statement, its parameters
// and the layout of its result columns.
func (s *SqliteQuery) GenerateSelectSQL(q query.Query) (string, []any, *query.ResultLayout, error) {
	params := []any{}
	r := s.newRenderer(&params, true)
	layout := query.NewResultLayout(q)

	list, err := r.selectList(layout)
	if err != nil {
		return "", nil, nil, err
	}
	body, err := r.body(q, list, true)
	if err != nil {
		return "", nil, nil, err
	}
	return body + ";", params, layout, nil
}

// GenerateCountSQL creates a statement counting the rows q would return
// without its window. Grouped and distinct queries are counted through a
// derived table.
func (s *SqliteQuery) GenerateCountSQL(q query.Query) (string, []any, error) {
	params := []any{}
	r := s.newRenderer(&params, true)

	if len(q.GroupBy) == 0 && !q.Distinct {
		body, err := r.body(q, "COUNT(*)", false)
		if err != nil {
			return "", nil, err
		}
		return body + ";", params, nil
	}

	list, err := r.selectList(query.NewResultLayout(q))
	if err != nil {
		return "", nil, err
	}
	body, err := r.body(q, list, false)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM (" + body + ") AS " + quoteIdentifier("_count") + ";", params, nil
}

// GenerateUpdateSQL creates a bulk UPDATE statement. The table keeps its alias
// so correlated subqueries can refer to it.
func (s *SqliteQuery) GenerateUpdateSQL(u query.UpdateStatement) (string, []any, error) {
	if len(u.Assignments) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update")
	}
	params := []any{}
	r := s.newRenderer(&params, false)

	sets := make([]string, len(u.Assignments))
	for i, a := range u.Assignments {
		value, err := r.expr(a.Value)
		if err != nil {
			return "", nil, fmt.Errorf("error building SET clause: %w", err)
		}
		sets[i] = quoteIdentifier(a.Column.Field.ColumnName()) + " = " + value
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + s.tableName(u.Entity.Definition) + " AS " + quoteIdentifier(u.Entity.Alias))
	sb.WriteString(" SET " + strings.Join(sets, ", "))
	if u.Where != nil {
		where, err := r.expr(u.Where)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
		sb.WriteString(" WHERE " + where)
	}
	sb.WriteString(";")
	return sb.String(), params, nil
}

// GenerateDeleteSQL creates a bulk DELETE statement.
func (s *SqliteQuery) GenerateDeleteSQL(d query.DeleteStatement) (string, []any, error) {
	params := []any{}
	r := s.newRenderer(&params, false)

	var sb strings.Builder
	sb.WriteString("DELETE FROM " + s.tableName(d.Entity.Definition) + " AS " + quoteIdentifier(d.Entity.Alias))
	if d.Where != nil {
		where, err := r.expr(d.Where)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
		sb.WriteString(" WHERE " + where)
	}
	sb.WriteString(";")
	return sb.String(), params, nil
}

// GenerateInsertSQL creates an INSERT of one record. Columns follow the
// entity's declaration order and the stored row is returned in the same
// order.
func (s *SqliteQuery) GenerateInsertSQL(entity *schema.EntityDefinition, record schema.Document) (string, []any, error) {
	if entity == nil {
		return "", nil, fmt.Errorf("entity definition cannot be nil")
	}
	var columns, placeholders, returning []string
	params := []any{}
	for _, f := range entity.Fields {
		returning = append(returning, quoteIdentifier(f.ColumnName()))
		value, ok := record[f.Name]
		if !ok {
			continue
		}
		columns = append(columns, quoteIdentifier(f.ColumnName()))
		if value == nil {
			placeholders = append(placeholders, "NULL")
			continue
		}
		placeholders = append(placeholders, "?")
		params = append(params, prepareValue(value))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + s.tableName(entity))
	if len(columns) == 0 {
		sb.WriteString(" DEFAULT VALUES")
	} else {
		sb.WriteString(" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")")
	}
	sb.WriteString(" RETURNING " + strings.Join(returning, ", ") + ";")
	return sb.String(), params, nil
}
