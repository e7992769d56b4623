package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// Expression is a node of the expression tree. Every node has a statically
// known semantic type. Construction never panics: an invalid combination
// produces a node whose Err is non-nil, and Builder.Build reports it before
// anything is executed.
//
// The interface is sealed; the typed handles in this package (NumberExpression,
// StringExpression and the others) implement it by wrapping a node.
type Expression interface {
	Type() schema.FieldType
	Err() error
	// String returns the canonical rendering of the node. Tuples are keyed by
	// it, so two expressions with the same rendering address the same value.
	String() string
	node() Expression
}

// Predicate is a boolean-valued expression usable in where, on and having
// clauses.
type Predicate interface {
	Expression
	And(others ...Predicate) Predicate
	Or(others ...Predicate) Predicate
	Not() Predicate
}

// Unwrap returns the canonical node behind an expression or typed handle.
func Unwrap(e Expression) Expression {
	if e == nil {
		return nil
	}
	return e.node()
}

// ColumnExpr references a field of an aliased entity.
type ColumnExpr struct {
	Entity *schema.EntityDefinition
	Alias  string
	Name   string
	Field  *schema.FieldDefinition
	err    error
}

func (c *ColumnExpr) Type() schema.FieldType {
	if c.Field == nil {
		return schema.FieldTypeNull
	}
	return c.Field.Type
}

func (c *ColumnExpr) Err() error       { return c.err }
func (c *ColumnExpr) String() string   { return c.Alias + "." + c.Name }
func (c *ColumnExpr) node() Expression { return c }

// LiteralExpr is a constant operand. Values are normalized on construction:
// integers to int64, floats to float64.
type LiteralExpr struct {
	Value     any
	ValueType schema.FieldType
	err       error
}

func (l *LiteralExpr) Type() schema.FieldType { return l.ValueType }
func (l *LiteralExpr) Err() error             { return l.err }
func (l *LiteralExpr) node() Expression       { return l }

func (l *LiteralExpr) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ListExpr is the right-hand operand of in and not in.
type ListExpr struct {
	Values   []Expression
	ElemType schema.FieldType
}

func (l *ListExpr) Type() schema.FieldType { return l.ElemType }
func (l *ListExpr) node() Expression       { return l }

func (l *ListExpr) Err() error {
	errs := make([]error, len(l.Values))
	for i, v := range l.Values {
		errs[i] = v.Err()
	}
	return errors.Join(errs...)
}

func (l *ListExpr) String() string {
	return "(" + joinExpressions(l.Values) + ")"
}

// ComparisonExpr compares two operands.
type ComparisonExpr struct {
	Op    ComparisonOperator
	Left  Expression
	Right Expression
	err   error
}

func (c *ComparisonExpr) Type() schema.FieldType { return schema.FieldTypeBoolean }
func (c *ComparisonExpr) node() Expression       { return c }

func (c *ComparisonExpr) Err() error {
	return errors.Join(c.err, c.Left.Err(), c.Right.Err())
}

func (c *ComparisonExpr) String() string {
	if c.Op == ComparisonOperatorBetween {
		if list, ok := c.Right.(*ListExpr); ok && len(list.Values) == 2 {
			return fmt.Sprintf("%s between %s and %s", c.Left, list.Values[0], list.Values[1])
		}
	}
	return fmt.Sprintf("%s %s %s", c.Left, c.Op.Symbol(), c.Right)
}

func (c *ComparisonExpr) And(others ...Predicate) Predicate { return And(append([]Predicate{c}, others...)...) }
func (c *ComparisonExpr) Or(others ...Predicate) Predicate  { return Or(append([]Predicate{c}, others...)...) }
func (c *ComparisonExpr) Not() Predicate                    { return &NotExpr{Operand: c} }

// LogicalExpr combines two or more predicates.
type LogicalExpr struct {
	Op       LogicalOperator
	Operands []Predicate
}

func (l *LogicalExpr) Type() schema.FieldType { return schema.FieldTypeBoolean }
func (l *LogicalExpr) node() Expression       { return l }

func (l *LogicalExpr) Err() error {
	errs := make([]error, len(l.Operands))
	for i, op := range l.Operands {
		errs[i] = op.Err()
	}
	return errors.Join(errs...)
}

func (l *LogicalExpr) String() string {
	parts := make([]string, len(l.Operands))
	for i, op := range l.Operands {
		if inner, ok := op.(*LogicalExpr); ok && inner.Op != l.Op {
			parts[i] = "(" + inner.String() + ")"
		} else {
			parts[i] = op.String()
		}
	}
	return strings.Join(parts, " "+string(l.Op)+" ")
}

func (l *LogicalExpr) And(others ...Predicate) Predicate { return And(append([]Predicate{l}, others...)...) }
func (l *LogicalExpr) Or(others ...Predicate) Predicate  { return Or(append([]Predicate{l}, others...)...) }
func (l *LogicalExpr) Not() Predicate                    { return &NotExpr{Operand: l} }

// NotExpr negates a predicate.
type NotExpr struct {
	Operand Predicate
}

func (n *NotExpr) Type() schema.FieldType { return schema.FieldTypeBoolean }
func (n *NotExpr) Err() error             { return n.Operand.Err() }
func (n *NotExpr) String() string         { return "not (" + n.Operand.String() + ")" }
func (n *NotExpr) node() Expression       { return n }

func (n *NotExpr) And(others ...Predicate) Predicate { return And(append([]Predicate{n}, others...)...) }
func (n *NotExpr) Or(others ...Predicate) Predicate  { return Or(append([]Predicate{n}, others...)...) }
func (n *NotExpr) Not() Predicate                    { return n.Operand }

// NullCheckExpr tests an operand for NULL.
type NullCheckExpr struct {
	Operand Expression
	Negated bool
}

func (n *NullCheckExpr) Type() schema.FieldType { return schema.FieldTypeBoolean }
func (n *NullCheckExpr) Err() error             { return n.Operand.Err() }
func (n *NullCheckExpr) node() Expression       { return n }

func (n *NullCheckExpr) String() string {
	if n.Negated {
		return n.Operand.String() + " is not null"
	}
	return n.Operand.String() + " is null"
}

func (n *NullCheckExpr) And(others ...Predicate) Predicate { return And(append([]Predicate{n}, others...)...) }
func (n *NullCheckExpr) Or(others ...Predicate) Predicate  { return Or(append([]Predicate{n}, others...)...) }
func (n *NullCheckExpr) Not() Predicate {
	return &NullCheckExpr{Operand: n.Operand, Negated: !n.Negated}
}

// AggregateExpr applies an aggregate function to an operand. Aggregates skip
// NULL inputs; sum, avg, min and max of an empty set are NULL.
type AggregateExpr struct {
	Func    AggregationType
	Operand Expression
	typ     schema.FieldType
	err     error
}

func (a *AggregateExpr) Type() schema.FieldType { return a.typ }
func (a *AggregateExpr) Err() error             { return errors.Join(a.err, a.Operand.Err()) }
func (a *AggregateExpr) node() Expression       { return a }

func (a *AggregateExpr) String() string {
	return fmt.Sprintf("%s(%s)", a.Func, a.Operand)
}

func newAggregate(fn AggregationType, operand Expression) *AggregateExpr {
	operand = Unwrap(operand)
	a := &AggregateExpr{Func: fn, Operand: operand, typ: operand.Type()}
	t := operand.Type()
	switch fn {
	case AggregationTypeCount, AggregationTypeCountDistinct:
		a.typ = schema.FieldTypeInteger
	case AggregationTypeSum:
		if !t.IsNumeric() {
			a.err = &TypeMismatchError{Op: string(fn), Left: t}
		}
	case AggregationTypeAvg:
		a.typ = schema.FieldTypeNumber
		if !t.IsNumeric() {
			a.err = &TypeMismatchError{Op: string(fn), Left: t}
		}
	case AggregationTypeMin, AggregationTypeMax:
		if !t.IsOrdered() {
			a.err = &TypeMismatchError{Op: string(fn), Left: t}
		}
	}
	return a
}

// ArithmeticExpr combines two numeric operands. The result is an integer when
// both operands are integers (division truncates, as in SQL) and a number
// otherwise.
type ArithmeticExpr struct {
	Op    ArithmeticOperator
	Left  Expression
	Right Expression
	typ   schema.FieldType
	err   error
}

func (a *ArithmeticExpr) Type() schema.FieldType { return a.typ }
func (a *ArithmeticExpr) node() Expression       { return a }

func (a *ArithmeticExpr) Err() error {
	return errors.Join(a.err, a.Left.Err(), a.Right.Err())
}

func (a *ArithmeticExpr) String() string {
	return fmt.Sprintf("%s %s %s", wrapOperand(a.Left), a.Op, wrapOperand(a.Right))
}

func wrapOperand(e Expression) string {
	if _, ok := e.(*ArithmeticExpr); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func newArithmetic(op ArithmeticOperator, left Expression, right any) *ArithmeticExpr {
	l := Unwrap(left)
	r := toExpression(right)
	a := &ArithmeticExpr{Op: op, Left: l, Right: r, typ: schema.FieldTypeNumber}
	lt, rt := l.Type(), r.Type()
	switch {
	case !lt.IsNumeric() || !rt.IsNumeric():
		a.err = &TypeMismatchError{Op: string(op), Left: lt, Right: rt}
	case lt == schema.FieldTypeInteger && rt == schema.FieldTypeInteger:
		a.typ = schema.FieldTypeInteger
	}
	return a
}

// SubqueryExpr embeds a query as an operand. A subquery used as an operand
// must project exactly one non-entity expression.
type SubqueryExpr struct {
	Query Query
	typ   schema.FieldType
	err   error
}

func (s *SubqueryExpr) Type() schema.FieldType { return s.typ }
func (s *SubqueryExpr) Err() error             { return s.err }
func (s *SubqueryExpr) String() string         { return "(" + s.Query.String() + ")" }
func (s *SubqueryExpr) node() Expression       { return s }

// Sub freezes a builder into a single-column subquery operand.
func Sub(b Builder) *SubqueryExpr {
	q, err := b.Build()
	if err != nil {
		return &SubqueryExpr{Query: q, typ: schema.FieldTypeNull, err: err}
	}
	if len(q.Projections) != 1 {
		return &SubqueryExpr{Query: q, typ: schema.FieldTypeNull, err: &QueryValidationError{
			Field:   "subquery.select",
			Message: fmt.Sprintf("subquery must select exactly one expression, got %d", len(q.Projections)),
		}}
	}
	t := q.Projections[0].Type()
	if t == schema.FieldTypeEntity {
		return &SubqueryExpr{Query: q, typ: t, err: &QueryValidationError{
			Field:   "subquery.select",
			Message: "subquery cannot select an entity; select its identifier instead",
		}}
	}
	return &SubqueryExpr{Query: q, typ: t}
}

// ExistsExpr tests whether a subquery returns any row.
type ExistsExpr struct {
	Subquery *SubqueryExpr
	Negated  bool
}

// Exists returns a predicate that holds when the subquery has rows. Unlike
// Sub, any projection arity is accepted.
func Exists(b Builder) *ExistsExpr {
	q, err := b.Build()
	return &ExistsExpr{Subquery: &SubqueryExpr{Query: q, typ: schema.FieldTypeBoolean, err: err}}
}

// NotExists is the negation of Exists.
func NotExists(b Builder) *ExistsExpr {
	e := Exists(b)
	e.Negated = true
	return e
}

func (e *ExistsExpr) Type() schema.FieldType { return schema.FieldTypeBoolean }
func (e *ExistsExpr) Err() error             { return e.Subquery.Err() }
func (e *ExistsExpr) node() Expression       { return e }

func (e *ExistsExpr) String() string {
	if e.Negated {
		return "not exists " + e.Subquery.String()
	}
	return "exists " + e.Subquery.String()
}

func (e *ExistsExpr) And(others ...Predicate) Predicate { return And(append([]Predicate{e}, others...)...) }
func (e *ExistsExpr) Or(others ...Predicate) Predicate  { return Or(append([]Predicate{e}, others...)...) }
func (e *ExistsExpr) Not() Predicate {
	return &ExistsExpr{Subquery: e.Subquery, Negated: !e.Negated}
}

// Literal wraps a Go value as a constant operand.
func Literal(v any) *LiteralExpr {
	switch x := v.(type) {
	case nil:
		return &LiteralExpr{ValueType: schema.FieldTypeNull}
	case string:
		return &LiteralExpr{Value: x, ValueType: schema.FieldTypeString}
	case bool:
		return &LiteralExpr{Value: x, ValueType: schema.FieldTypeBoolean}
	case time.Time:
		return &LiteralExpr{Value: x, ValueType: schema.FieldTypeDateTime}
	case float32:
		return &LiteralExpr{Value: float64(x), ValueType: schema.FieldTypeNumber}
	case float64:
		return &LiteralExpr{Value: x, ValueType: schema.FieldTypeNumber}
	case *string:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	case *int64:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	case *int:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	case *float64:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	case *bool:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	case *time.Time:
		if x == nil {
			return Literal(nil)
		}
		return Literal(*x)
	}
	if i, ok := toInt64(v); ok {
		return &LiteralExpr{Value: i, ValueType: schema.FieldTypeInteger}
	}
	return &LiteralExpr{
		Value:     v,
		ValueType: schema.FieldTypeNull,
		err:       fmt.Errorf("unsupported operand type %T", v),
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

// toExpression turns an operand into a canonical node. Builders become
// subqueries; anything that is not an Expression becomes a literal.
func toExpression(v any) Expression {
	switch x := v.(type) {
	case nil:
		return Literal(nil)
	case Builder:
		return Sub(x)
	case Expression:
		return x.node()
	}
	return Literal(v)
}

func isNullLiteral(e Expression) bool {
	lit, ok := e.(*LiteralExpr)
	return ok && lit.Value == nil && lit.err == nil
}

func checkComparison(op ComparisonOperator, left, right Expression) error {
	lt, rt := left.Type(), right.Type()
	if isNullLiteral(right) {
		return fmt.Errorf("cannot compare %s with nil using %s; use IsNull or IsNotNull", left, op)
	}
	if !lt.Comparable(rt) {
		return &TypeMismatchError{Op: string(op), Left: lt, Right: rt}
	}
	if op.IsOrdering() && (!lt.IsOrdered() || !rt.IsOrdered()) {
		return &TypeMismatchError{Op: string(op), Left: lt, Right: rt}
	}
	if op == ComparisonOperatorLike && (lt != schema.FieldTypeString || rt != schema.FieldTypeString) {
		return &TypeMismatchError{Op: string(op), Left: lt, Right: rt}
	}
	return nil
}

func compare(op ComparisonOperator, left Expression, right any) *ComparisonExpr {
	l := Unwrap(left)
	r := toExpression(right)
	return &ComparisonExpr{Op: op, Left: l, Right: r, err: checkComparison(op, l, r)}
}

func between(left Expression, lo, hi any) *ComparisonExpr {
	l := Unwrap(left)
	from, to := toExpression(lo), toExpression(hi)
	c := &ComparisonExpr{
		Op:    ComparisonOperatorBetween,
		Left:  l,
		Right: &ListExpr{Values: []Expression{from, to}, ElemType: from.Type()},
	}
	c.err = errors.Join(
		checkComparison(ComparisonOperatorBetween, l, from),
		checkComparison(ComparisonOperatorBetween, l, to),
	)
	return c
}

// membership builds in/not in. A single Builder or subquery operand produces a
// set subquery; anything else is a literal list. A single slice of a common
// element type is spread.
func membership(op ComparisonOperator, left Expression, values []any) *ComparisonExpr {
	l := Unwrap(left)
	if len(values) == 1 {
		switch v := values[0].(type) {
		case Builder, *SubqueryExpr:
			r := toExpression(v)
			c := &ComparisonExpr{Op: op, Left: l, Right: r}
			if r.Err() == nil && !l.Type().Comparable(r.Type()) {
				c.err = &TypeMismatchError{Op: string(op), Left: l.Type(), Right: r.Type()}
			}
			return c
		}
		if spread, ok := spreadSlice(values[0]); ok {
			values = spread
		}
	}

	list := &ListExpr{Values: make([]Expression, len(values)), ElemType: l.Type()}
	var errs []error
	for i, v := range values {
		e := toExpression(v)
		list.Values[i] = e
		if isNullLiteral(e) {
			errs = append(errs, fmt.Errorf("%s list for %s contains nil", op, l))
			continue
		}
		if !l.Type().Comparable(e.Type()) {
			errs = append(errs, &TypeMismatchError{Op: string(op), Left: l.Type(), Right: e.Type()})
		}
	}
	return &ComparisonExpr{Op: op, Left: l, Right: list, err: errors.Join(errs...)}
}

func spreadSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		return spread(s), true
	case []int:
		return spread(s), true
	case []int64:
		return spread(s), true
	case []float64:
		return spread(s), true
	case []time.Time:
		return spread(s), true
	}
	return nil, false
}

func spread[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// walk visits e and its descendants in pre-order. Subqueries are visited but
// not descended into.
func walk(e Expression, fn func(Expression)) {
	if e == nil {
		return
	}
	e = e.node()
	fn(e)
	switch n := e.(type) {
	case *ListExpr:
		for _, v := range n.Values {
			walk(v, fn)
		}
	case *ComparisonExpr:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case *LogicalExpr:
		for _, op := range n.Operands {
			walk(op, fn)
		}
	case *NotExpr:
		walk(n.Operand, fn)
	case *NullCheckExpr:
		walk(n.Operand, fn)
	case *AggregateExpr:
		walk(n.Operand, fn)
	case *ArithmeticExpr:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case *ExistsExpr:
		fn(n.Subquery)
	}
}
