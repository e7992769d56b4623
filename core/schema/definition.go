// Package schema describes the entities a query can address: their fields,
// the SQL columns those fields map to and the relations between entities.
// Definitions are static metadata, usually produced from a descriptor file
// (see LoadFile) and shared read-only by every query built against them.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the semantic types supported by the schema system.
type FieldType string

const (
	FieldTypeString    FieldType = "string"    // Text data
	FieldTypeInteger   FieldType = "integer"   // Whole numbers
	FieldTypeNumber    FieldType = "number"    // Floating point numbers
	FieldTypeBoolean   FieldType = "boolean"   // True/false values
	FieldTypeDateTime  FieldType = "datetime"  // Points in time
	FieldTypeReference FieldType = "reference" // Foreign key to another entity's identifier
	FieldTypeEntity    FieldType = "entity"    // A whole entity; only valid as a projection type
	FieldTypeNull      FieldType = "null"      // The untyped null literal
)

// IsNumeric reports whether values of the type take part in arithmetic.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeInteger || t == FieldTypeNumber
}

// IsOrdered reports whether values of the type support <, <=, > and >=.
func (t FieldType) IsOrdered() bool {
	return t.IsNumeric() || t == FieldTypeString || t == FieldTypeDateTime
}

// Comparable reports whether two semantic types may be compared with each other.
// Numeric types compare across integer/number, references compare with
// integers (they hold identifiers) and null compares with anything.
func (t FieldType) Comparable(other FieldType) bool {
	if t == FieldTypeNull || other == FieldTypeNull {
		return true
	}
	if t == other {
		return t != FieldTypeEntity
	}
	norm := func(ft FieldType) FieldType {
		if ft == FieldTypeReference {
			return FieldTypeInteger
		}
		return ft
	}
	a, b := norm(t), norm(other)
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a == b
}

// Valid reports whether the type may be declared on a persisted field.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeInteger, FieldTypeNumber, FieldTypeBoolean,
		FieldTypeDateTime, FieldTypeReference:
		return true
	}
	return false
}

// Document is a single row of an entity keyed by field name.
type Document map[string]any

// FieldDefinition defines a persisted field of an entity.
type FieldDefinition struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
	// Column is the SQL column backing the field. Defaults to Name.
	Column string `json:"column,omitempty" yaml:"column,omitempty"`
	// Nullable fields may hold NULL and may be omitted on insert.
	Nullable bool `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	// Reference names the target entity of a reference field.
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
	// Description provides a brief explanation of the field.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ColumnName returns the SQL column for the field.
func (f *FieldDefinition) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// EntityDefinition is the descriptor of a persisted entity.
type EntityDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Table       string `json:"table,omitempty" yaml:"table,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Identifier names the primary key field. Defaults to "id".
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	// Generated marks the identifier as assigned by the store on insert.
	Generated bool `json:"generated,omitempty" yaml:"generated,omitempty"`
	// Fields are kept in declaration order; that order is the column order
	// of every entity projection.
	Fields []*FieldDefinition `json:"fields" yaml:"fields"`
}

// TableName returns the SQL table for the entity.
func (e *EntityDefinition) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return strings.ToLower(e.Name)
}

// IdentifierName returns the name of the identifier field.
func (e *EntityDefinition) IdentifierName() string {
	if e.Identifier != "" {
		return e.Identifier
	}
	return "id"
}

// IdentifierField returns the identifier's definition, or nil if undeclared.
func (e *EntityDefinition) IdentifierField() *FieldDefinition {
	return e.FindField(e.IdentifierName())
}

// FindField returns the field with the given name, or nil.
func (e *EntityDefinition) FindField(name string) *FieldDefinition {
	for _, field := range e.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// FieldNames returns the field names in declaration order.
func (e *EntityDefinition) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// References returns the reference fields in declaration order.
func (e *EntityDefinition) References() []*FieldDefinition {
	var refs []*FieldDefinition
	for _, f := range e.Fields {
		if f.Type == FieldTypeReference {
			refs = append(refs, f)
		}
	}
	return refs
}

// Validate checks the structural invariants of the definition: a name, at
// least one field, unique field and column names, valid types, an existing
// identifier and a target for every reference.
func (e *EntityDefinition) Validate() error {
	var issues []Issue
	if e.Name == "" {
		issues = append(issues, Issue{Code: "ENTITY_NAME_MISSING", Message: "entity name cannot be empty"})
	}
	if len(e.Fields) == 0 {
		issues = append(issues, Issue{Code: "ENTITY_FIELDS_MISSING", Message: "entity must declare at least one field", Path: e.Name})
	}

	names := make(map[string]struct{}, len(e.Fields))
	columns := make(map[string]struct{}, len(e.Fields))
	for i, f := range e.Fields {
		path := fmt.Sprintf("%s.fields[%d]", e.Name, i)
		if f == nil || f.Name == "" {
			issues = append(issues, Issue{Code: "FIELD_NAME_MISSING", Message: "field name cannot be empty", Path: path})
			continue
		}
		if _, dup := names[f.Name]; dup {
			issues = append(issues, Issue{Code: "DUPLICATE_FIELD", Message: fmt.Sprintf("field '%s' declared more than once", f.Name), Path: path})
		}
		names[f.Name] = struct{}{}
		if _, dup := columns[f.ColumnName()]; dup {
			issues = append(issues, Issue{Code: "DUPLICATE_COLUMN", Message: fmt.Sprintf("column '%s' mapped more than once", f.ColumnName()), Path: path})
		}
		columns[f.ColumnName()] = struct{}{}
		if !f.Type.Valid() {
			issues = append(issues, Issue{Code: "INVALID_FIELD_TYPE", Message: fmt.Sprintf("field '%s' has unsupported type '%s'", f.Name, f.Type), Path: path})
		}
		if f.Type == FieldTypeReference && f.Reference == "" {
			issues = append(issues, Issue{Code: "REFERENCE_TARGET_MISSING", Message: fmt.Sprintf("reference field '%s' has no target entity", f.Name), Path: path})
		}
	}

	if len(e.Fields) > 0 {
		id := e.IdentifierField()
		switch {
		case id == nil:
			issues = append(issues, Issue{Code: "IDENTIFIER_MISSING", Message: fmt.Sprintf("identifier field '%s' is not declared", e.IdentifierName()), Path: e.Name})
		case id.Nullable:
			issues = append(issues, Issue{Code: "IDENTIFIER_NULLABLE", Message: "identifier field cannot be nullable", Path: e.Name})
		case e.Generated && id.Type != FieldTypeInteger:
			issues = append(issues, Issue{Code: "IDENTIFIER_NOT_GENERATABLE", Message: "generated identifiers must be integers", Path: e.Name})
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Entity: e.Name, Issues: issues}
	}
	return nil
}
