package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(memberDefinition())

	t.Run("generated identifier may be omitted", func(t *testing.T) {
		out, err := v.Validate(Document{"username": "member1", "age": 10}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(10), out["age"])
		assert.Equal(t, "member1", out["username"])
		_, hasID := out["id"]
		assert.False(t, hasID)
	})

	t.Run("nullable fields accept nil", func(t *testing.T) {
		out, err := v.Validate(Document{"age": 10, "username": nil}, false)
		require.NoError(t, err)
		assert.Nil(t, out["username"])
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := v.Validate(Document{"username": "member1"}, false)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Issues, 1)
		assert.Equal(t, "REQUIRED_FIELD_MISSING", verr.Issues[0].Code)
		assert.Equal(t, "age", verr.Issues[0].Path)
	})

	t.Run("loose mode skips required check", func(t *testing.T) {
		_, err := v.Validate(Document{"username": "member1"}, true)
		assert.NoError(t, err)
	})

	t.Run("type mismatch and unknown field", func(t *testing.T) {
		_, err := v.Validate(Document{"age": "ten", "nickname": "x"}, false)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Issues, 2)
		assert.Contains(t, err.Error(), "validation failed for 'Member'")
	})
}

func TestCoerceValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    any
		typ      FieldType
		expected any
		ok       bool
	}{
		{"int to integer", 5, FieldTypeInteger, int64(5), true},
		{"whole float to integer", 5.0, FieldTypeInteger, int64(5), true},
		{"fraction to integer", 5.5, FieldTypeInteger, 5.5, false},
		{"numeric string to integer", "42", FieldTypeInteger, int64(42), true},
		{"int to number", 3, FieldTypeNumber, float64(3), true},
		{"int64 to boolean", int64(1), FieldTypeBoolean, true, true},
		{"string to boolean", "FALSE", FieldTypeBoolean, false, true},
		{"bytes to string", []byte("abc"), FieldTypeString, "abc", true},
		{"string to datetime", ts.Format(time.RFC3339Nano), FieldTypeDateTime, ts, true},
		{"reference from int", 7, FieldTypeReference, int64(7), true},
		{"nil passes", nil, FieldTypeString, nil, true},
		{"bool to string", true, FieldTypeString, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceValue(tt.value, tt.typ)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
