package query

import (
	"fmt"
	"time"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// checkGoType verifies at declaration time that values of the expression's
// semantic type can be mapped to V. Pointer types accept NULL; interface
// types accept anything.
func checkGoType[V any](e Expression) error {
	var zero V
	t := e.Type()
	ok := false
	switch any(zero).(type) {
	case nil:
		ok = true
	case string, *string:
		ok = t == schema.FieldTypeString
	case int64, *int64, int, *int, int32, *int32:
		ok = t == schema.FieldTypeInteger || t == schema.FieldTypeReference
	case float64, *float64, float32, *float32:
		ok = t.IsNumeric()
	case bool, *bool:
		ok = t == schema.FieldTypeBoolean
	case time.Time, *time.Time:
		ok = t == schema.FieldTypeDateTime
	case schema.Document:
		ok = t == schema.FieldTypeEntity
	}
	if t == schema.FieldTypeNull {
		ok = true
	}
	if !ok {
		return &TypeMismatchError{Op: fmt.Sprintf("mapping to %T", zero), Left: t}
	}
	return nil
}

// convert maps a normalized column value to V. NULL maps to the zero value,
// which is nil for pointer types.
func convert[V any](e Expression, value any) (V, error) {
	var out V
	if value == nil {
		return out, nil
	}
	fail := func() (V, error) {
		var zero V
		return zero, &MappingError{Expression: e.String(), Value: value, Target: fmt.Sprintf("%T", zero)}
	}

	switch dst := any(&out).(type) {
	case *string:
		s, ok := value.(string)
		if !ok {
			return fail()
		}
		*dst = s
	case **string:
		s, ok := value.(string)
		if !ok {
			return fail()
		}
		*dst = &s
	case *int64:
		i, ok := asInt64(value)
		if !ok {
			return fail()
		}
		*dst = i
	case **int64:
		i, ok := asInt64(value)
		if !ok {
			return fail()
		}
		*dst = &i
	case *int:
		i, ok := asInt64(value)
		if !ok {
			return fail()
		}
		*dst = int(i)
	case **int:
		i, ok := asInt64(value)
		if !ok {
			return fail()
		}
		n := int(i)
		*dst = &n
	case *int32:
		i, ok := asInt64(value)
		if !ok {
			return fail()
		}
		*dst = int32(i)
	case *float64:
		f, ok := asFloat64(value)
		if !ok {
			return fail()
		}
		*dst = f
	case **float64:
		f, ok := asFloat64(value)
		if !ok {
			return fail()
		}
		*dst = &f
	case *float32:
		f, ok := asFloat64(value)
		if !ok {
			return fail()
		}
		*dst = float32(f)
	case *bool:
		b, ok := value.(bool)
		if !ok {
			return fail()
		}
		*dst = b
	case **bool:
		b, ok := value.(bool)
		if !ok {
			return fail()
		}
		*dst = &b
	case *time.Time:
		ts, ok := value.(time.Time)
		if !ok {
			return fail()
		}
		*dst = ts
	case **time.Time:
		ts, ok := value.(time.Time)
		if !ok {
			return fail()
		}
		*dst = &ts
	default:
		v, ok := value.(V)
		if !ok {
			return fail()
		}
		out = v
	}
	return out, nil
}

func asInt64(v any) (int64, bool) {
	if i, ok := toInt64(v); ok {
		return i, true
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}
