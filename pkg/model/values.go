package model

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// IsEmpty reports whether v counts as missing: nil, "", or an empty
// slice or map.
func IsEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case []string:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Truthy applies loose truthiness: nil, false, zero numbers, NaN and ""
// are falsy, everything else is truthy.
func Truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case float64:
		return value != 0 && !math.IsNaN(value)
	case float32:
		return value != 0 && !math.IsNaN(float64(value))
	case int:
		return value != 0
	case int64:
		return value != 0
	case int32:
		return value != 0
	case uint:
		return value != 0
	case uint64:
		return value != 0
	}
	return true
}

// Stringify renders v the way it would appear in a URL or comparison:
// nil is "", integral floats drop their fraction.
func Stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case fmt.Stringer:
		return value.String()
	}
	return fmt.Sprint(v)
}

// CloneState returns a shallow copy of state.
func CloneState(state FormState) FormState {
	out := make(FormState, len(state))
	for key, value := range state {
		out[key] = value
	}
	return out
}
