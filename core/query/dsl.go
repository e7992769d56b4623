// Package query defines the expression tree, the immutable builder and the
// frozen Query descriptor used to describe queries over schema entities.
// Nothing in this package talks to a database: a QueryGenerator turns a Query
// into a dialect's SQL and the persistence package executes it.
package query

import (
	"fmt"
	"strings"
)

// ComparisonOperator defines the binary operators of a comparison predicate.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq      ComparisonOperator = "eq"
	ComparisonOperatorNeq     ComparisonOperator = "neq"
	ComparisonOperatorLt      ComparisonOperator = "lt"
	ComparisonOperatorLte     ComparisonOperator = "lte"
	ComparisonOperatorGt      ComparisonOperator = "gt"
	ComparisonOperatorGte     ComparisonOperator = "gte"
	ComparisonOperatorLike    ComparisonOperator = "like"
	ComparisonOperatorIn      ComparisonOperator = "in"
	ComparisonOperatorNin     ComparisonOperator = "nin"
	ComparisonOperatorBetween ComparisonOperator = "between"
)

var comparisonSymbols = map[ComparisonOperator]string{
	ComparisonOperatorEq:      "=",
	ComparisonOperatorNeq:     "<>",
	ComparisonOperatorLt:      "<",
	ComparisonOperatorLte:     "<=",
	ComparisonOperatorGt:      ">",
	ComparisonOperatorGte:     ">=",
	ComparisonOperatorLike:    "like",
	ComparisonOperatorIn:      "in",
	ComparisonOperatorNin:     "not in",
	ComparisonOperatorBetween: "between",
}

// Symbol returns the infix form of the operator.
func (c ComparisonOperator) Symbol() string {
	if s, ok := comparisonSymbols[c]; ok {
		return s
	}
	return string(c)
}

// IsOrdering reports whether the operator needs ordered operands.
func (c ComparisonOperator) IsOrdering() bool {
	switch c {
	case ComparisonOperatorLt, ComparisonOperatorLte, ComparisonOperatorGt,
		ComparisonOperatorGte, ComparisonOperatorBetween:
		return true
	}
	return false
}

// LogicalOperator combines predicates.
type LogicalOperator string

// Logical operators for combining predicates.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
)

// AggregationType specifies the aggregate function applied to an expression.
type AggregationType string

// Supported aggregation types.
const (
	AggregationTypeCount         AggregationType = "count"
	AggregationTypeCountDistinct AggregationType = "countDistinct"
	AggregationTypeSum           AggregationType = "sum"
	AggregationTypeAvg           AggregationType = "avg"
	AggregationTypeMin           AggregationType = "min"
	AggregationTypeMax           AggregationType = "max"
)

// ArithmeticOperator defines the operators of a numeric expression.
type ArithmeticOperator string

// Supported arithmetic operators.
const (
	ArithmeticOperatorAdd ArithmeticOperator = "+"
	ArithmeticOperatorSub ArithmeticOperator = "-"
	ArithmeticOperatorMul ArithmeticOperator = "*"
	ArithmeticOperatorDiv ArithmeticOperator = "/"
)

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// NullHandling places NULL sort keys. The zero value defers to the
// generator's configured default.
type NullHandling string

// Supported null placements.
const (
	NullHandlingDefault NullHandling = ""
	NullHandlingFirst   NullHandling = "first"
	NullHandlingLast    NullHandling = "last"
)

// OrderSpecifier is a single order-by key.
type OrderSpecifier struct {
	Target    Expression
	Direction SortDirection
	Nulls     NullHandling
}

// NullsFirst returns a copy that sorts NULL keys before all others.
func (o OrderSpecifier) NullsFirst() OrderSpecifier {
	o.Nulls = NullHandlingFirst
	return o
}

// NullsLast returns a copy that sorts NULL keys after all others.
func (o OrderSpecifier) NullsLast() OrderSpecifier {
	o.Nulls = NullHandlingLast
	return o
}

func (o OrderSpecifier) String() string {
	s := fmt.Sprintf("%s %s", o.Target, o.Direction)
	if o.Nulls != NullHandlingDefault {
		s += " nulls " + string(o.Nulls)
	}
	return s
}

// JoinType specifies the type of join to be performed.
type JoinType string

// Supported join types.
const (
	JoinTypeInner JoinType = "inner"
	JoinTypeLeft  JoinType = "left"
	JoinTypeRight JoinType = "right"
)

// Join describes one join of a query. Relation joins follow a reference field of an
// already bound entity; entity joins (Relation == nil) bind an unrelated
// entity and rely on On alone.
type Join struct {
	Type     JoinType
	Target   EntityPath
	Relation *ColumnExpr
	On       Predicate
	Fetch    bool
}

func (j Join) String() string {
	var sb strings.Builder
	sb.WriteString(string(j.Type))
	sb.WriteString(" join ")
	if j.Fetch {
		sb.WriteString("fetch ")
	}
	if j.Relation != nil {
		sb.WriteString(j.Relation.String())
		sb.WriteString(" ")
		sb.WriteString(j.Target.Alias)
	} else {
		sb.WriteString(j.Target.Definition.Name)
		sb.WriteString(" ")
		sb.WriteString(j.Target.Alias)
	}
	if j.On != nil {
		sb.WriteString(" on ")
		sb.WriteString(j.On.String())
	}
	return sb.String()
}

// Query is the frozen, immutable description of a select query produced by
// Builder.Build. A Query is safe to share and to execute any number of times.
type Query struct {
	Projections []Expression
	Sources     []EntityPath
	Joins       []Join
	Where       Predicate
	GroupBy     []Expression
	Having      Predicate
	OrderBy     []OrderSpecifier
	Offset      *int
	Limit       *int
	Distinct    bool
}

// Aliases returns every alias bound by the query's sources and joins.
func (q Query) Aliases() []string {
	aliases := make([]string, 0, len(q.Sources)+len(q.Joins))
	for _, s := range q.Sources {
		aliases = append(aliases, s.Alias)
	}
	for _, j := range q.Joins {
		aliases = append(aliases, j.Target.Alias)
	}
	return aliases
}

// String returns a readable rendering of the query, independent of any SQL
// dialect.
func (q Query) String() string {
	var parts []string

	sel := "select "
	if q.Distinct {
		sel += "distinct "
	}
	parts = append(parts, sel+joinExpressions(q.Projections))

	froms := make([]string, len(q.Sources))
	for i, s := range q.Sources {
		froms[i] = s.Definition.Name + " " + s.Alias
	}
	parts = append(parts, "from "+strings.Join(froms, ", "))

	for _, j := range q.Joins {
		parts = append(parts, j.String())
	}
	if q.Where != nil {
		parts = append(parts, "where "+q.Where.String())
	}
	if len(q.GroupBy) > 0 {
		parts = append(parts, "group by "+joinExpressions(q.GroupBy))
	}
	if q.Having != nil {
		parts = append(parts, "having "+q.Having.String())
	}
	if len(q.OrderBy) > 0 {
		keys := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			keys[i] = o.String()
		}
		parts = append(parts, "order by "+strings.Join(keys, ", "))
	}
	if q.Limit != nil {
		parts = append(parts, fmt.Sprintf("limit %d", *q.Limit))
	}
	if q.Offset != nil {
		parts = append(parts, fmt.Sprintf("offset %d", *q.Offset))
	}
	return strings.Join(parts, " ")
}

func joinExpressions(exprs []Expression) string {
	s := make([]string, len(exprs))
	for i, e := range exprs {
		s[i] = e.String()
	}
	return strings.Join(s, ", ")
}

// Assignment is a single SET entry of a bulk update.
type Assignment struct {
	Column *ColumnExpr
	Value  Expression
}

// UpdateStatement is the frozen form of an UpdateClause.
type UpdateStatement struct {
	Entity      EntityPath
	Assignments []Assignment
	Where       Predicate
}

// DeleteStatement is the frozen form of a DeleteClause. A nil Where deletes
// every row and is only produced by an explicitly unfiltered clause.
type DeleteStatement struct {
	Entity EntityPath
	Where  Predicate
}
