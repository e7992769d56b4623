package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Issue represents a single validation problem.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ValidationError reports every issue found while validating a definition or
// a record.
type ValidationError struct {
	Entity string
	Issues []Issue
}

// Error returns the joined issue messages.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return fmt.Sprintf("validation failed for '%s': %s", e.Entity, strings.Join(msgs, "; "))
}

// Validator checks records against an entity definition before they are
// written. It checks for unknown fields, missing non-nullable fields and
// values whose Go type cannot be stored in the field's semantic type.
type Validator struct {
	entity *EntityDefinition
}

// NewValidator creates a new Validator for the given entity.
func NewValidator(entity *EntityDefinition) *Validator {
	return &Validator{entity: entity}
}

// Validate checks a record and returns the coerced copy that should be
// written. A generated identifier may be omitted. When loose is true, missing
// non-nullable fields are not reported (partial updates).
func (v *Validator) Validate(record Document, loose bool) (Document, error) {
	var issues []Issue
	out := make(Document, len(record))

	for _, field := range v.entity.Fields {
		value, exists := record[field.Name]
		if !exists || value == nil {
			if loose || field.Nullable {
				if exists {
					out[field.Name] = nil
				}
				continue
			}
			if field.Name == v.entity.IdentifierName() && v.entity.Generated {
				continue
			}
			issues = append(issues, Issue{
				Code:    "REQUIRED_FIELD_MISSING",
				Message: fmt.Sprintf("required field '%s' is missing", field.Name),
				Path:    field.Name,
			})
			continue
		}

		coerced, ok := CoerceValue(value, field.Type)
		if !ok {
			issues = append(issues, Issue{
				Code:    "TYPE_MISMATCH",
				Message: fmt.Sprintf("field '%s' expects %s, got %T", field.Name, field.Type, value),
				Path:    field.Name,
			})
			continue
		}
		out[field.Name] = coerced
	}

	for key := range record {
		if v.entity.FindField(key) == nil {
			issues = append(issues, Issue{
				Code:    "UNEXPECTED_FIELD",
				Message: fmt.Sprintf("unexpected field '%s' not defined in entity", key),
				Path:    key,
			})
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Entity: v.entity.Name, Issues: issues}
	}
	return out, nil
}

// CoerceValue converts a Go value to the canonical representation of a
// semantic type: int64 for integers and references, float64 for numbers,
// bool, string and time.Time. Strings are parsed where the conversion is
// lossless. The second result is false when no conversion applies.
func CoerceValue(value any, t FieldType) (any, bool) {
	if value == nil {
		return nil, true
	}
	switch t {
	case FieldTypeString:
		switch v := value.(type) {
		case string:
			return v, true
		case []byte:
			return string(v), true
		}
	case FieldTypeInteger, FieldTypeReference:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int8:
			return int64(v), true
		case int16:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		case uint8:
			return int64(v), true
		case uint16:
			return int64(v), true
		case uint32:
			return int64(v), true
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i, true
			}
		}
	case FieldTypeNumber:
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int32:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	case FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case int64:
			return v != 0, true
		case int:
			return v != 0, true
		case string:
			switch strings.ToLower(v) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
	case FieldTypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return v, true
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return ts, true
			}
		}
	}
	return value, false
}
