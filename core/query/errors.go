package query

import (
	"fmt"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for a QueryValidationError.
func (ve *QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// AmbiguousAliasError is returned when an alias is bound twice, either within
// one query or by a subquery that re-binds an alias of an enclosing scope.
type AmbiguousAliasError struct {
	Alias string
	Scope string
}

func (e *AmbiguousAliasError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("alias '%s' is already bound in %s", e.Alias, e.Scope)
	}
	return fmt.Sprintf("alias '%s' is bound more than once", e.Alias)
}

// TypeMismatchError is returned when an operator combines operands of
// incompatible semantic types. It is detected when the expression is built.
type TypeMismatchError struct {
	Op    string
	Left  schema.FieldType
	Right schema.FieldType
}

func (e *TypeMismatchError) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("type mismatch: %s is not applicable to %s", e.Op, e.Left)
	}
	return fmt.Sprintf("type mismatch: cannot apply %s to %s and %s", e.Op, e.Left, e.Right)
}

// UnsupportedJoinError is returned for joins the engine cannot express, such
// as an outer join without an on-clause or a fetch join on an unrelated entity.
type UnsupportedJoinError struct {
	Alias  string
	Type   JoinType
	Reason string
}

func (e *UnsupportedJoinError) Error() string {
	return fmt.Sprintf("unsupported %s join on '%s': %s", e.Type, e.Alias, e.Reason)
}

// NotFoundError is returned by FetchOne when no row matches.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no result found for query: %s", e.Query)
}

// TooManyResultsError is returned by FetchOne when more than one row matches.
type TooManyResultsError struct {
	Query string
	Count int
}

func (e *TooManyResultsError) Error() string {
	return fmt.Sprintf("expected one result but found at least %d for query: %s", e.Count, e.Query)
}

// MappingError is returned when a result value cannot be converted to the
// type a projection declares.
type MappingError struct {
	Expression string
	Value      any
	Target     string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map %T value of '%s' to %s", e.Value, e.Expression, e.Target)
}
