package query

// Ptr returns a pointer to v. Optional filter values passed to When are
// usually built with it.
func Ptr[T any](v T) *T {
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}

// asFloat64 converts an integer or floating point value to float64. Strings
// are not parsed.
func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
