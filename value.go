package objsync

import (
	"reflect"
	"time"
)

// Kind classifies a node of an object graph.
type Kind int

const (
	// KindLeaf is any primitive value, including nil.
	KindLeaf Kind = iota
	// KindDate is a time.Time leaf.
	KindDate
	// KindArray is a []any node whose elements are addressable by index.
	KindArray
	// KindObject is a map[string]any node whose keys are addressable.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "leaf"
	}
}

// KindOf returns the kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	case time.Time:
		return KindDate
	default:
		return KindLeaf
	}
}

type invalidAccess struct{}

func (invalidAccess) String() string { return "<invalid access>" }

// InvalidAccess is returned by reads whose path cannot be resolved. It is
// distinct from nil, which is a legitimate stored value.
var InvalidAccess any = invalidAccess{}

// IsInvalid reports whether v is the InvalidAccess sentinel.
func IsInvalid(v any) bool {
	_, ok := v.(invalidAccess)
	return ok
}

// IsArray reports whether v is an array node.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsPlainObject reports whether v is an object node.
func IsPlainObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsDate reports whether v is a date leaf.
func IsDate(v any) bool {
	return KindOf(v) == KindDate
}

// IsDefined reports whether v holds a value.
func IsDefined(v any) bool {
	if v == nil || IsInvalid(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// IsEmpty reports whether v is undefined, an empty array or an empty object.
func IsEmpty(v any) bool {
	if !IsDefined(v) {
		return true
	}
	switch typed := v.(type) {
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

// SameRef reports whether a and b are the same container. Maps and slices
// compare by the pointer backing them; other values never share identity.
func SameRef(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		return ok && x != nil && y != nil && reflect.ValueOf(x).UnsafePointer() == reflect.ValueOf(y).UnsafePointer()
	case []any:
		y, ok := b.([]any)
		// zero-length slices may share the runtime's zero allocation
		if !ok || len(x) == 0 || len(x) != len(y) {
			return false
		}
		return &x[0] == &y[0]
	}
	return false
}

// DeepEqual compares two graphs structurally. Dates compare by instant.
func DeepEqual(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for key, value := range x {
			other, exists := y[key]
			if !exists || !DeepEqual(value, other) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !DeepEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// leafEqual is the comparison used by the diff engine: identity for
// containers, instants for dates, value equality otherwise.
func leafEqual(a, b any) bool {
	if SameRef(a, b) {
		return true
	}
	if x, ok := a.(time.Time); ok {
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}
