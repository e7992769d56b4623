package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// EntityPath binds an entity definition to an alias. It is both a query
// source and an expression selecting the whole entity.
type EntityPath struct {
	Definition *schema.EntityDefinition
	Alias      string
}

// NewEntityPath creates a path for the entity under the given alias. An empty
// alias defaults to the lowercased entity name.
func NewEntityPath(def *schema.EntityDefinition, alias string) EntityPath {
	if alias == "" && def != nil {
		alias = strings.ToLower(def.Name)
	}
	return EntityPath{Definition: def, Alias: alias}
}

// Source is implemented by EntityPath and by generated types embedding it.
type Source interface {
	Path() EntityPath
}

// Path returns the receiver; it makes EntityPath a Source.
func (e EntityPath) Path() EntityPath { return e }

// As returns the same entity bound to another alias. Self-joins and
// subqueries over an entity of the outer query need a distinct alias.
func (e EntityPath) As(alias string) EntityPath {
	return EntityPath{Definition: e.Definition, Alias: alias}
}

func (e EntityPath) Type() schema.FieldType { return schema.FieldTypeEntity }
func (e EntityPath) String() string         { return e.Alias }
func (e EntityPath) node() Expression       { return e }

func (e EntityPath) Err() error {
	if e.Definition == nil {
		return fmt.Errorf("entity path '%s' has no definition", e.Alias)
	}
	if e.Alias == "" {
		return fmt.Errorf("entity path for '%s' has no alias", e.Definition.Name)
	}
	return nil
}

// Column returns the column for a field. An unknown field yields a column
// whose Err reports it.
func (e EntityPath) Column(name string) *ColumnExpr {
	c := &ColumnExpr{Entity: e.Definition, Alias: e.Alias, Name: name}
	if e.Definition == nil {
		c.err = e.Err()
		return c
	}
	c.Field = e.Definition.FindField(name)
	if c.Field == nil {
		c.err = fmt.Errorf("entity '%s' has no field '%s'", e.Definition.Name, name)
	}
	return c
}

func (e EntityPath) typedColumn(name string, accept ...schema.FieldType) *ColumnExpr {
	c := e.Column(name)
	if c.err != nil {
		return c
	}
	for _, t := range accept {
		if c.Field.Type == t {
			return c
		}
	}
	c.err = fmt.Errorf("field '%s.%s' is %s, not %s", e.Definition.Name, name, c.Field.Type, accept[0])
	return c
}

// Identifier returns the identifier column as a number expression.
func (e EntityPath) Identifier() NumberExpression {
	name := "id"
	if e.Definition != nil {
		name = e.Definition.IdentifierName()
	}
	return e.NumberField(name)
}

// StringField returns a typed handle for a string field.
func (e EntityPath) StringField(name string) StringExpression {
	return StringExpression{comparableOf(e.typedColumn(name, schema.FieldTypeString))}
}

// NumberField returns a typed handle for an integer or number field.
func (e EntityPath) NumberField(name string) NumberExpression {
	return NumberExpression{comparableOf(e.typedColumn(name, schema.FieldTypeInteger, schema.FieldTypeNumber))}
}

// BooleanField returns a typed handle for a boolean field.
func (e EntityPath) BooleanField(name string) BooleanExpression {
	return BooleanExpression{SimpleExpression{e.typedColumn(name, schema.FieldTypeBoolean)}}
}

// DateTimeField returns a typed handle for a datetime field.
func (e EntityPath) DateTimeField(name string) DateTimeExpression {
	return DateTimeExpression{comparableOf(e.typedColumn(name, schema.FieldTypeDateTime))}
}

// ReferenceField returns the handle of a reference field, usable as a join
// relation.
func (e EntityPath) ReferenceField(name string) ReferencePath {
	c := e.typedColumn(name, schema.FieldTypeReference)
	return ReferencePath{SimpleExpression{c}, c}
}

// Count counts the entity's rows by identifier.
func (e EntityPath) Count() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeCount, e.identity()))}
}

// CountDistinct counts distinct identifiers, which differs from Count under
// one-to-many joins.
func (e EntityPath) CountDistinct() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeCountDistinct, e.identity()))}
}

func (e EntityPath) identity() Expression {
	if e.Definition == nil {
		return e.Column("id")
	}
	return e.Column(e.Definition.IdentifierName())
}

// Eq compares entity identity with another entity path or an identifier.
func (e EntityPath) Eq(other any) Predicate {
	if p, ok := other.(EntityPath); ok {
		return compare(ComparisonOperatorEq, e.identity(), p.identity())
	}
	return compare(ComparisonOperatorEq, e.identity(), other)
}

// SimpleExpression is the typed handle shared by every field and derived
// expression. It offers the operators valid for any comparable type.
type SimpleExpression struct {
	expr Expression
}

func (s SimpleExpression) Type() schema.FieldType { return s.expr.Type() }
func (s SimpleExpression) Err() error             { return s.expr.Err() }
func (s SimpleExpression) String() string         { return s.expr.String() }
func (s SimpleExpression) node() Expression       { return s.expr }

// Eq creates an equality predicate. Comparing with nil is an error; use IsNull.
func (s SimpleExpression) Eq(v any) Predicate { return compare(ComparisonOperatorEq, s.expr, v) }

// Ne creates a not-equal predicate.
func (s SimpleExpression) Ne(v any) Predicate { return compare(ComparisonOperatorNeq, s.expr, v) }

// In creates a membership predicate over literal values or a subquery. An
// empty list matches nothing.
func (s SimpleExpression) In(values ...any) Predicate {
	return membership(ComparisonOperatorIn, s.expr, values)
}

// NotIn is the negation of In. An empty list matches everything.
func (s SimpleExpression) NotIn(values ...any) Predicate {
	return membership(ComparisonOperatorNin, s.expr, values)
}

func (s SimpleExpression) IsNull() Predicate    { return &NullCheckExpr{Operand: s.expr} }
func (s SimpleExpression) IsNotNull() Predicate { return &NullCheckExpr{Operand: s.expr, Negated: true} }

// Asc orders by the expression ascending.
func (s SimpleExpression) Asc() OrderSpecifier {
	return OrderSpecifier{Target: s.expr, Direction: SortDirectionAsc}
}

// Desc orders by the expression descending.
func (s SimpleExpression) Desc() OrderSpecifier {
	return OrderSpecifier{Target: s.expr, Direction: SortDirectionDesc}
}

func (s SimpleExpression) Count() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeCount, s.expr))}
}

func (s SimpleExpression) CountDistinct() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeCountDistinct, s.expr))}
}

// ComparableExpression adds the ordering operators.
type ComparableExpression struct {
	SimpleExpression
}

func comparableOf(e Expression) ComparableExpression {
	return ComparableExpression{SimpleExpression{e}}
}

func (c ComparableExpression) Gt(v any) Predicate  { return compare(ComparisonOperatorGt, c.expr, v) }
func (c ComparableExpression) Goe(v any) Predicate { return compare(ComparisonOperatorGte, c.expr, v) }
func (c ComparableExpression) Lt(v any) Predicate  { return compare(ComparisonOperatorLt, c.expr, v) }
func (c ComparableExpression) Loe(v any) Predicate { return compare(ComparisonOperatorLte, c.expr, v) }

// Between matches values in the closed range [from, to].
func (c ComparableExpression) Between(from, to any) Predicate {
	return between(c.expr, from, to)
}

// NumberExpression is the handle of an integer or number valued expression.
type NumberExpression struct {
	ComparableExpression
}

// NumberOf wraps an arbitrary numeric expression, such as a scalar subquery.
func NumberOf(e Expression) NumberExpression {
	e = Unwrap(e)
	if !e.Type().IsNumeric() && e.Err() == nil {
		e = &invalidExpr{inner: e, err: &TypeMismatchError{Op: "number", Left: e.Type()}}
	}
	return NumberExpression{comparableOf(e)}
}

func (n NumberExpression) Sum() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeSum, n.expr))}
}

func (n NumberExpression) Avg() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeAvg, n.expr))}
}

func (n NumberExpression) Max() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeMax, n.expr))}
}

func (n NumberExpression) Min() NumberExpression {
	return NumberExpression{comparableOf(newAggregate(AggregationTypeMin, n.expr))}
}

func (n NumberExpression) Add(v any) NumberExpression {
	return NumberExpression{comparableOf(newArithmetic(ArithmeticOperatorAdd, n.expr, v))}
}

func (n NumberExpression) Subtract(v any) NumberExpression {
	return NumberExpression{comparableOf(newArithmetic(ArithmeticOperatorSub, n.expr, v))}
}

func (n NumberExpression) Multiply(v any) NumberExpression {
	return NumberExpression{comparableOf(newArithmetic(ArithmeticOperatorMul, n.expr, v))}
}

func (n NumberExpression) Divide(v any) NumberExpression {
	return NumberExpression{comparableOf(newArithmetic(ArithmeticOperatorDiv, n.expr, v))}
}

// StringExpression is the handle of a string valued expression.
type StringExpression struct {
	ComparableExpression
}

// StringOf wraps an arbitrary string expression.
func StringOf(e Expression) StringExpression {
	e = Unwrap(e)
	if e.Type() != schema.FieldTypeString && e.Err() == nil {
		e = &invalidExpr{inner: e, err: &TypeMismatchError{Op: "string", Left: e.Type()}}
	}
	return StringExpression{comparableOf(e)}
}

// Like matches a SQL LIKE pattern. '%' and '_' are wildcards and '\' escapes
// them.
func (s StringExpression) Like(pattern string) Predicate {
	return compare(ComparisonOperatorLike, s.expr, pattern)
}

// Contains matches values containing the substring literally.
func (s StringExpression) Contains(sub string) Predicate {
	return s.Like("%" + escapeLike(sub) + "%")
}

func (s StringExpression) StartsWith(prefix string) Predicate {
	return s.Like(escapeLike(prefix) + "%")
}

func (s StringExpression) EndsWith(suffix string) Predicate {
	return s.Like("%" + escapeLike(suffix))
}

func (s StringExpression) Max() StringExpression {
	return StringExpression{comparableOf(newAggregate(AggregationTypeMax, s.expr))}
}

func (s StringExpression) Min() StringExpression {
	return StringExpression{comparableOf(newAggregate(AggregationTypeMin, s.expr))}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DateTimeExpression is the handle of a datetime valued expression.
type DateTimeExpression struct {
	ComparableExpression
}

// Before matches instants strictly before t.
func (d DateTimeExpression) Before(t time.Time) Predicate { return d.Lt(t) }

// After matches instants strictly after t.
func (d DateTimeExpression) After(t time.Time) Predicate { return d.Gt(t) }

func (d DateTimeExpression) Max() DateTimeExpression {
	return DateTimeExpression{comparableOf(newAggregate(AggregationTypeMax, d.expr))}
}

func (d DateTimeExpression) Min() DateTimeExpression {
	return DateTimeExpression{comparableOf(newAggregate(AggregationTypeMin, d.expr))}
}

// BooleanExpression is the handle of a boolean valued expression.
type BooleanExpression struct {
	SimpleExpression
}

func (b BooleanExpression) IsTrue() Predicate  { return b.Eq(true) }
func (b BooleanExpression) IsFalse() Predicate { return b.Eq(false) }

// ReferencePath is the handle of a reference field. It is the relation
// argument of relation joins and compares with identifiers or entity paths.
type ReferencePath struct {
	SimpleExpression
	column *ColumnExpr
}

// Target returns the name of the referenced entity.
func (r ReferencePath) Target() string {
	if r.column.Field == nil {
		return ""
	}
	return r.column.Field.Reference
}

// Column returns the underlying foreign key column.
func (r ReferencePath) Column() *ColumnExpr { return r.column }

// Eq compares the reference with an identifier or with an entity path, in
// which case the entity's identifier is used.
func (r ReferencePath) Eq(v any) Predicate {
	if p, ok := v.(EntityPath); ok {
		return compare(ComparisonOperatorEq, r.expr, p.identity())
	}
	return r.SimpleExpression.Eq(v)
}

// Ne is the negation of Eq.
func (r ReferencePath) Ne(v any) Predicate {
	if p, ok := v.(EntityPath); ok {
		return compare(ComparisonOperatorNeq, r.expr, p.identity())
	}
	return r.SimpleExpression.Ne(v)
}

// invalidExpr carries a construction error for a handle whose operand has
// the wrong type.
type invalidExpr struct {
	inner Expression
	err   error
}

func (i *invalidExpr) Type() schema.FieldType { return i.inner.Type() }
func (i *invalidExpr) Err() error             { return i.err }
func (i *invalidExpr) String() string         { return i.inner.String() }
func (i *invalidExpr) node() Expression       { return i }
