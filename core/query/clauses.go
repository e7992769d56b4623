package query

import (
	"errors"
	"fmt"
	"slices"
)

// UpdateClause builds a bulk update. Bulk statements run directly against
// storage and never touch cached entities.
type UpdateClause struct {
	entity      EntityPath
	assignments []Assignment
	where       Predicate
	errs        []error
}

// Update starts a bulk update of the entity's table.
func Update(e Source) UpdateClause {
	return UpdateClause{entity: e.Path()}
}

func (u UpdateClause) target(path Expression) (*ColumnExpr, error) {
	col, ok := Unwrap(path).(*ColumnExpr)
	if !ok {
		return nil, fmt.Errorf("update target '%s' is not a column", path)
	}
	if col.Alias != u.entity.Alias {
		return nil, fmt.Errorf("update target '%s' does not belong to '%s'", col, u.entity.Alias)
	}
	if err := col.Err(); err != nil {
		return nil, err
	}
	if u.entity.Definition != nil && col.Name == u.entity.Definition.IdentifierName() {
		return nil, fmt.Errorf("identifier '%s' cannot be updated", col)
	}
	return col, nil
}

// Set assigns a value or an expression over the same entity to a field.
func (u UpdateClause) Set(path Expression, value any) UpdateClause {
	u.assignments = slices.Clone(u.assignments)
	u.errs = slices.Clone(u.errs)

	col, err := u.target(path)
	if err != nil {
		u.errs = append(u.errs, err)
		return u
	}
	v := toExpression(value)
	switch {
	case isNullLiteral(v):
		u.errs = append(u.errs, fmt.Errorf("cannot set '%s' to nil; use SetNull", col))
		return u
	case v.Err() != nil:
		u.errs = append(u.errs, v.Err())
		return u
	case !col.Type().Comparable(v.Type()):
		u.errs = append(u.errs, &TypeMismatchError{Op: "set", Left: col.Type(), Right: v.Type()})
		return u
	}
	foreign := false
	walk(v, func(e Expression) {
		if c, ok := e.(*ColumnExpr); ok && c.Alias != u.entity.Alias {
			foreign = true
		}
	})
	if foreign {
		u.errs = append(u.errs, fmt.Errorf("value of '%s' references another entity", col))
		return u
	}
	u.assignments = append(u.assignments, Assignment{Column: col, Value: v})
	return u
}

// SetNull assigns NULL to a nullable field.
func (u UpdateClause) SetNull(path Expression) UpdateClause {
	u.assignments = slices.Clone(u.assignments)
	u.errs = slices.Clone(u.errs)

	col, err := u.target(path)
	if err != nil {
		u.errs = append(u.errs, err)
		return u
	}
	if !col.Field.Nullable {
		u.errs = append(u.errs, fmt.Errorf("field '%s' is not nullable", col))
		return u
	}
	u.assignments = append(u.assignments, Assignment{Column: col, Value: Literal(nil)})
	return u
}

// Where conjoins predicates with the update's filter. Without any predicate
// every row is updated.
func (u UpdateClause) Where(preds ...Predicate) UpdateClause {
	u.where = And(append([]Predicate{u.where}, preds...)...)
	return u
}

// Build validates the clause.
func (u UpdateClause) Build() (UpdateStatement, error) {
	errs := slices.Clone(u.errs)
	if err := u.entity.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(u.assignments) == 0 {
		errs = append(errs, &QueryValidationError{Field: "set", Message: "update has no assignments"})
	}
	errs = append(errs, checkStatementFilter(u.entity, u.where)...)
	values := make([]Expression, len(u.assignments))
	for i, a := range u.assignments {
		values[i] = a.Value
	}
	if err := checkSubqueryScopes(Query{Projections: values}, map[string]bool{u.entity.Alias: true}); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return UpdateStatement{}, errors.Join(errs...)
	}
	return UpdateStatement{Entity: u.entity, Assignments: slices.Clone(u.assignments), Where: u.where}, nil
}

// DeleteClause builds a bulk delete.
type DeleteClause struct {
	entity     EntityPath
	where      Predicate
	unfiltered bool
}

// Delete starts a bulk delete from the entity's table.
func Delete(e Source) DeleteClause {
	return DeleteClause{entity: e.Path()}
}

// Where conjoins predicates with the delete's filter.
func (d DeleteClause) Where(preds ...Predicate) DeleteClause {
	d.where = And(append([]Predicate{d.where}, preds...)...)
	return d
}

// Unfiltered allows the delete to run without a predicate, removing every
// row of the table.
func (d DeleteClause) Unfiltered() DeleteClause {
	d.unfiltered = true
	return d
}

// Build validates the clause. A delete without a predicate is rejected
// unless Unfiltered was called.
func (d DeleteClause) Build() (DeleteStatement, error) {
	var errs []error
	if err := d.entity.Err(); err != nil {
		errs = append(errs, err)
	}
	if d.where == nil && !d.unfiltered {
		errs = append(errs, &QueryValidationError{
			Field:   "where",
			Message: "delete without a predicate must be marked Unfiltered",
		})
	}
	errs = append(errs, checkStatementFilter(d.entity, d.where)...)
	if len(errs) > 0 {
		return DeleteStatement{}, errors.Join(errs...)
	}
	return DeleteStatement{Entity: d.entity, Where: d.where}, nil
}

func checkStatementFilter(entity EntityPath, where Predicate) []error {
	if where == nil {
		return nil
	}
	var errs []error
	if err := where.Err(); err != nil {
		return []error{err}
	}
	walk(where, func(e Expression) {
		if c, ok := e.(*ColumnExpr); ok && c.Alias != entity.Alias {
			errs = append(errs, &QueryValidationError{
				Field:   "where",
				Message: fmt.Sprintf("'%s' does not belong to '%s'; use a subquery", c, entity.Alias),
			})
		}
	})
	outer := map[string]bool{entity.Alias: true}
	q := Query{Where: where}
	if err := checkSubqueryScopes(q, outer); err != nil {
		errs = append(errs, err)
	}
	return errs
}
