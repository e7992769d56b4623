package query

import (
	"errors"
	"fmt"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// Projection declares the expressions a query selects and how a result row
// becomes a T. Projections are checked when declared: Err reports any value
// type that cannot be mapped, before the query is executed.
type Projection[T any] interface {
	Expressions() []Expression
	Err() error
	Map(row Row) (T, error)
}

// IdentifiedProjection is implemented by projections that materialize a
// single entity, so results can be cached by identity.
type IdentifiedProjection interface {
	EntityKey(row Row) (entity string, id any, ok bool)
}

// SingleProjection maps a single expression to a scalar.
type SingleProjection[T any] struct {
	expr Expression
	err  error
}

// Single projects one expression converted to T.
func Single[T any](e Expression) SingleProjection[T] {
	if e == nil {
		return SingleProjection[T]{err: errors.New("single projection requires an expression")}
	}
	e = Unwrap(e)
	return SingleProjection[T]{expr: e, err: checkGoType[T](e)}
}

func (p SingleProjection[T]) Expressions() []Expression { return []Expression{p.expr} }
func (p SingleProjection[T]) Err() error                { return p.err }

func (p SingleProjection[T]) Map(row Row) (T, error) {
	return convert[T](p.expr, row[0])
}

// TupleProjection maps several expressions to a Tuple.
type TupleProjection struct {
	exprs []Expression
}

// TupleOf projects the expressions into tuples.
func TupleOf(exprs ...Expression) TupleProjection {
	unwrapped := make([]Expression, len(exprs))
	for i, e := range exprs {
		unwrapped[i] = Unwrap(e)
	}
	return TupleProjection{exprs: unwrapped}
}

func (p TupleProjection) Expressions() []Expression { return p.exprs }

func (p TupleProjection) Err() error {
	if len(p.exprs) == 0 {
		return errors.New("tuple projection requires at least one expression")
	}
	for i, e := range p.exprs {
		if e == nil {
			return fmt.Errorf("tuple projection expression %d is nil", i)
		}
	}
	return nil
}

func (p TupleProjection) Map(row Row) (Tuple, error) {
	values := make([]any, len(row))
	copy(values, row)
	return newTuple(p.exprs, values), nil
}

// EntityProjection materializes an entity from its document.
type EntityProjection[T any] struct {
	path    EntityPath
	fromDoc func(schema.Document) (T, error)
}

// Entity projects a whole entity, mapped by fromDoc. A fetched association
// appears in the document under its reference field as a nested
// schema.Document.
func Entity[T any](path EntityPath, fromDoc func(schema.Document) (T, error)) EntityProjection[T] {
	return EntityProjection[T]{path: path, fromDoc: fromDoc}
}

// Path returns the projected entity.
func (p EntityProjection[T]) Path() EntityPath          { return p.path }
func (p EntityProjection[T]) Expressions() []Expression { return []Expression{p.path} }

func (p EntityProjection[T]) Err() error {
	if p.fromDoc == nil {
		return fmt.Errorf("entity projection of '%s' has no mapper", p.path)
	}
	return p.path.Err()
}

func (p EntityProjection[T]) Map(row Row) (T, error) {
	doc, ok := row[0].(schema.Document)
	if !ok {
		var zero T
		if row[0] == nil {
			return zero, nil
		}
		return zero, &MappingError{Expression: p.path.String(), Value: row[0], Target: fmt.Sprintf("%T", zero)}
	}
	return p.fromDoc(doc)
}

func (p EntityProjection[T]) EntityKey(row Row) (string, any, bool) {
	doc, ok := row[0].(schema.Document)
	if !ok {
		return "", nil, false
	}
	id := doc[p.path.Definition.IdentifierName()]
	return p.path.Definition.Name, id, id != nil
}

// Binding assigns one projected value to a field of T.
type Binding[T any] struct {
	expr   Expression
	assign func(*T, any) error
	err    error
}

// Bind declares that the value of e is stored into T by set. The value type
// V is checked against the expression's type at declaration.
func Bind[T, V any](e Expression, set func(*T, V)) Binding[T] {
	if e == nil {
		return Binding[T]{err: errors.New("binding requires an expression")}
	}
	e = Unwrap(e)
	return Binding[T]{
		expr: e,
		err:  checkGoType[V](e),
		assign: func(dst *T, value any) error {
			v, err := convert[V](e, value)
			if err != nil {
				return err
			}
			set(dst, v)
			return nil
		},
	}
}

// FieldsProjection fills a T field by field, the reflection-free counterpart
// of setter or field injection.
type FieldsProjection[T any] struct {
	bindings []Binding[T]
}

// Fields projects into T using the given bindings, in order.
func Fields[T any](bindings ...Binding[T]) FieldsProjection[T] {
	return FieldsProjection[T]{bindings: bindings}
}

func (p FieldsProjection[T]) Expressions() []Expression {
	exprs := make([]Expression, len(p.bindings))
	for i, b := range p.bindings {
		exprs[i] = b.expr
	}
	return exprs
}

func (p FieldsProjection[T]) Err() error {
	if len(p.bindings) == 0 {
		return errors.New("fields projection requires at least one binding")
	}
	errs := make([]error, len(p.bindings))
	for i, b := range p.bindings {
		errs[i] = b.err
	}
	return errors.Join(errs...)
}

func (p FieldsProjection[T]) Map(row Row) (T, error) {
	var out T
	for i, b := range p.bindings {
		if err := b.assign(&out, row[i]); err != nil {
			var zero T
			return zero, err
		}
	}
	return out, nil
}

// ConstructorProjection builds T by passing the projected values, in order,
// to a constructor function.
type ConstructorProjection[T any] struct {
	exprs []Expression
	build func(Row) (T, error)
	err   error
}

func (p ConstructorProjection[T]) Expressions() []Expression { return p.exprs }
func (p ConstructorProjection[T]) Err() error                { return p.err }
func (p ConstructorProjection[T]) Map(row Row) (T, error)    { return p.build(row) }

func unwrapAll(exprs ...Expression) ([]Expression, error) {
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		if e == nil {
			return nil, fmt.Errorf("constructor argument %d is nil", i)
		}
		out[i] = Unwrap(e)
	}
	return out, nil
}

// Constructor1 maps a one-expression projection through fn.
func Constructor1[T, A any](a Expression, fn func(A) T) ConstructorProjection[T] {
	exprs, err := unwrapAll(a)
	if err != nil {
		return ConstructorProjection[T]{err: err}
	}
	return ConstructorProjection[T]{
		exprs: exprs,
		err:   checkGoType[A](exprs[0]),
		build: func(row Row) (T, error) {
			var zero T
			va, err := convert[A](exprs[0], row[0])
			if err != nil {
				return zero, err
			}
			return fn(va), nil
		},
	}
}

// Constructor2 maps a two-expression projection through fn.
func Constructor2[T, A, B any](a, b Expression, fn func(A, B) T) ConstructorProjection[T] {
	exprs, err := unwrapAll(a, b)
	if err != nil {
		return ConstructorProjection[T]{err: err}
	}
	return ConstructorProjection[T]{
		exprs: exprs,
		err:   errors.Join(checkGoType[A](exprs[0]), checkGoType[B](exprs[1])),
		build: func(row Row) (T, error) {
			var zero T
			va, err := convert[A](exprs[0], row[0])
			if err != nil {
				return zero, err
			}
			vb, err := convert[B](exprs[1], row[1])
			if err != nil {
				return zero, err
			}
			return fn(va, vb), nil
		},
	}
}

// Constructor3 maps a three-expression projection through fn.
func Constructor3[T, A, B, C any](a, b, c Expression, fn func(A, B, C) T) ConstructorProjection[T] {
	exprs, err := unwrapAll(a, b, c)
	if err != nil {
		return ConstructorProjection[T]{err: err}
	}
	return ConstructorProjection[T]{
		exprs: exprs,
		err:   errors.Join(checkGoType[A](exprs[0]), checkGoType[B](exprs[1]), checkGoType[C](exprs[2])),
		build: func(row Row) (T, error) {
			var zero T
			va, err := convert[A](exprs[0], row[0])
			if err != nil {
				return zero, err
			}
			vb, err := convert[B](exprs[1], row[1])
			if err != nil {
				return zero, err
			}
			vc, err := convert[C](exprs[2], row[2])
			if err != nil {
				return zero, err
			}
			return fn(va, vb, vc), nil
		},
	}
}

// Constructor4 maps a four-expression projection through fn.
func Constructor4[T, A, B, C, D any](a, b, c, d Expression, fn func(A, B, C, D) T) ConstructorProjection[T] {
	exprs, err := unwrapAll(a, b, c, d)
	if err != nil {
		return ConstructorProjection[T]{err: err}
	}
	return ConstructorProjection[T]{
		exprs: exprs,
		err: errors.Join(checkGoType[A](exprs[0]), checkGoType[B](exprs[1]),
			checkGoType[C](exprs[2]), checkGoType[D](exprs[3])),
		build: func(row Row) (T, error) {
			var zero T
			va, err := convert[A](exprs[0], row[0])
			if err != nil {
				return zero, err
			}
			vb, err := convert[B](exprs[1], row[1])
			if err != nil {
				return zero, err
			}
			vc, err := convert[C](exprs[2], row[2])
			if err != nil {
				return zero, err
			}
			vd, err := convert[D](exprs[3], row[3])
			if err != nil {
				return zero, err
			}
			return fn(va, vb, vc, vd), nil
		},
	}
}
