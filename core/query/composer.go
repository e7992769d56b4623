package query

// And conjoins predicates. Nil predicates are the identity and are skipped:
// And() and And(nil) are nil, and And(p) is p. Nested conjunctions are
// flattened.
func And(preds ...Predicate) Predicate {
	return combine(LogicalOperatorAnd, preds)
}

// Or disjoins predicates with the same nil handling as And.
func Or(preds ...Predicate) Predicate {
	return combine(LogicalOperatorOr, preds)
}

func combine(op LogicalOperator, preds []Predicate) Predicate {
	var operands []Predicate
	for _, p := range preds {
		if isNil(p) {
			continue
		}
		if l, ok := p.(*LogicalExpr); ok && l.Op == op {
			operands = append(operands, l.Operands...)
			continue
		}
		operands = append(operands, p)
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return &LogicalExpr{Op: op, Operands: operands}
}

// isNil reports whether p is nil or a nil node pointer, as returned by
// helpers typed to a concrete node.
func isNil(p Predicate) bool {
	switch x := p.(type) {
	case nil:
		return true
	case *ComparisonExpr:
		return x == nil
	case *LogicalExpr:
		return x == nil
	case *NotExpr:
		return x == nil
	case *NullCheckExpr:
		return x == nil
	case *ExistsExpr:
		return x == nil
	}
	return false
}

// Not negates a predicate; Not(nil) is nil.
func Not(p Predicate) Predicate {
	if isNil(p) {
		return nil
	}
	return p.Not()
}

// When maps an optional filter value to a predicate. A nil value yields nil,
// which And and Or ignore.
//
//	query.And(
//		query.When(cond.Username, m.Username.Eq),
//		query.When(cond.AgeGoe, m.Age.Goe),
//	)
func When[T any](value *T, fn func(any) Predicate) Predicate {
	if value == nil {
		return nil
	}
	return fn(*value)
}

// WhenNotZero is like When for plain values, treating the zero value as
// absent.
func WhenNotZero[T comparable](value T, fn func(any) Predicate) Predicate {
	var zero T
	if value == zero {
		return nil
	}
	return fn(value)
}

// BooleanBuilder accumulates predicates. Unlike the rest of this package it
// is mutable and not safe for concurrent use; it suits loops that add
// filters conditionally.
type BooleanBuilder struct {
	predicate Predicate
}

// NewBooleanBuilder creates a builder, optionally seeded with an initial
// predicate.
func NewBooleanBuilder(initial ...Predicate) *BooleanBuilder {
	return &BooleanBuilder{predicate: And(initial...)}
}

// And conjoins p with the accumulated predicate. Nil is ignored.
func (b *BooleanBuilder) And(p Predicate) *BooleanBuilder {
	b.predicate = And(b.predicate, p)
	return b
}

// Or disjoins p with the accumulated predicate. Nil is ignored.
func (b *BooleanBuilder) Or(p Predicate) *BooleanBuilder {
	b.predicate = Or(b.predicate, p)
	return b
}

// HasValue reports whether any predicate was added.
func (b *BooleanBuilder) HasValue() bool {
	return b.predicate != nil
}

// Value returns the accumulated predicate, or nil.
func (b *BooleanBuilder) Value() Predicate {
	return b.predicate
}
