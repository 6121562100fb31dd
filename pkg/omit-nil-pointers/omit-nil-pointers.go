package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers returns a copy of fields without nil entries, with every
// non-nil pointer replaced by the value it points to. The result is safe to
// pass to HSET, which rejects nil and pointer arguments.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if v, ok := deref(value); ok {
			omitted[key] = v
		}
	}

	return omitted
}

func deref(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case *string:
		if v == nil {
			return nil, false
		}
		return *v, true
	case *int64:
		if v == nil {
			return nil, false
		}
		return *v, true
	case *float64:
		if v == nil {
			return nil, false
		}
		return *v, true
	case *bool:
		if v == nil {
			return nil, false
		}
		return *v, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer {
		return value, true
	}
	if rv.IsNil() {
		return nil, false
	}

	return rv.Elem().Interface(), true
}
