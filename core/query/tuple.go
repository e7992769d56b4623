package query

import "fmt"

// Tuple is a result row of a multi-expression projection. Values are
// addressed by the expression that produced them.
type Tuple struct {
	exprs  []Expression
	values []any
	index  map[string]int
}

func newTuple(exprs []Expression, values []any) Tuple {
	index := make(map[string]int, len(exprs))
	for i, e := range exprs {
		if _, exists := index[e.String()]; !exists {
			index[e.String()] = i
		}
	}
	return Tuple{exprs: exprs, values: values, index: index}
}

// Get returns the value produced by e. The second result is false when e is
// not part of the projection.
func (t Tuple) Get(e Expression) (any, bool) {
	if e == nil {
		return nil, false
	}
	i, ok := t.index[Unwrap(e).String()]
	if !ok {
		return nil, false
	}
	return t.values[i], true
}

// At returns the value at position i.
func (t Tuple) At(i int) any {
	return t.values[i]
}

// Len returns the number of values.
func (t Tuple) Len() int {
	return len(t.values)
}

// Values returns a copy of the values in projection order.
func (t Tuple) Values() []any {
	out := make([]any, len(t.values))
	copy(out, t.values)
	return out
}

func (t Tuple) String() string {
	return fmt.Sprint(t.values)
}

// TupleValue returns the value produced by e converted to V.
func TupleValue[V any](t Tuple, e Expression) (V, error) {
	v, ok := t.Get(e)
	if !ok {
		var zero V
		return zero, fmt.Errorf("expression '%s' is not part of the tuple", e)
	}
	return convert[V](Unwrap(e), v)
}
