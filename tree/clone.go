package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// ErrUnsupportedValue reports a value that cannot be represented in a tree.
var ErrUnsupportedValue = errors.New("tree: unsupported value")

// Clone returns a deep copy of v. Objects and sequences are copied
// recursively; scalars are returned as is. Containers that are not already
// in the generic representation (typed maps with string keys, typed slices,
// arrays, pointers to them) are converted while copying.
func Clone(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = Clone(value)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := newSequence(len(typed))
		for i, value := range typed {
			out[i] = Clone(value)
		}
		return out
	}
	return cloneValue(reflect.ValueOf(v))
}

func cloneValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return Clone(v.Elem().Interface())
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface()
		}
		if v.IsNil() {
			return map[string]any(nil)
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Clone(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return cloneBytes(v)
		}
		if v.IsNil() {
			return []any(nil)
		}
		return cloneSequence(v)
	case reflect.Array:
		return cloneSequence(v)
	default:
		return v.Interface()
	}
}

func cloneSequence(v reflect.Value) []any {
	out := newSequence(v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = Clone(v.Index(i).Interface())
	}
	return out
}

func cloneBytes(v reflect.Value) any {
	if v.IsNil() {
		return v.Interface()
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)
	return out.Interface()
}

// newSequence allocates a sequence with a private backing array. Capacity is
// never zero so that empty sequences still get a distinct identity.
func newSequence(n int) []any {
	return make([]any, n, max(n, 1))
}

// Normalize converts v into the generic tree representation. Structs are
// converted through their JSON encoding, so field names follow json tags and
// numbers inside them decode as float64. Functions, channels and maps with
// non-string keys are rejected with ErrUnsupportedValue.
func Normalize(v any) (any, error) {
	return normalizeValue(reflect.ValueOf(v), "$")
}

// NormalizeObject is Normalize for a value that must be an object node. A nil
// input yields an empty object.
func NormalizeObject(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	switch typed := normalized.(type) {
	case map[string]any:
		if typed == nil {
			return map[string]any{}, nil
		}
		return typed, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("%w: root must be an object, got %T", ErrUnsupportedValue, normalized)
	}
}

func normalizeValue(v reflect.Value, path string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeValue(v.Elem(), path)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s has map key type %s", ErrUnsupportedValue, path, v.Type().Key())
		}
		if v.IsNil() {
			return map[string]any(nil), nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			value, err := normalizeValue(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return cloneBytes(v), nil
		}
		if v.IsNil() {
			return []any(nil), nil
		}
		return normalizeSequence(v, path)
	case reflect.Array:
		return normalizeSequence(v, path)
	case reflect.Struct:
		return normalizeStruct(v, path)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("%w: %s has kind %s", ErrUnsupportedValue, path, v.Kind())
	default:
		return v.Interface(), nil
	}
}

func normalizeSequence(v reflect.Value, path string) ([]any, error) {
	out := newSequence(v.Len())
	for i := 0; i < v.Len(); i++ {
		value, err := normalizeValue(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

func normalizeStruct(v reflect.Value, path string) (any, error) {
	if v.Type() == timeType {
		return v.Interface(), nil
	}
	return normalizeJSON(v, path)
}

func normalizeJSON(v reflect.Value, path string) (any, error) {
	raw, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, err)
	}
	// json decoding allocates sequences without spare capacity.
	return Clone(decoded), nil
}
