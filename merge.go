package objsync

// Merge deep-merges source into target and returns the merged value.
// Objects are merged key by key, arrays element by element with the target
// length forced to the source length, and dates and primitives are assigned.
// Target objects are updated in place; arrays may be reallocated, so callers
// must use the returned value.
func Merge(target, source any) any {
	switch src := source.(type) {
	case map[string]any:
		return mergeObject(target, src)
	case []any:
		return mergeArray(target, src)
	default:
		return source
	}
}

func mergeObject(target any, src map[string]any) map[string]any {
	dst, ok := target.(map[string]any)
	if !ok || dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		switch typed := value.(type) {
		case map[string]any:
			dst[key] = mergeObject(dst[key], typed)
		case []any:
			dst[key] = mergeArray(dst[key], typed)
		default:
			dst[key] = value
		}
	}
	return dst
}

func mergeArray(target any, src []any) []any {
	dst, _ := target.([]any)
	out := growSlice(dst, len(src))[:len(src)]
	if out == nil {
		out = []any{}
	}
	for i, item := range src {
		// nested arrays are copied, only objects merge into their slot
		if obj, ok := item.(map[string]any); ok {
			out[i] = mergeObject(out[i], obj)
			continue
		}
		out[i] = Clone(item)
	}
	return out
}

// Clone returns a deep copy of value. Leaves are shared.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			out[i] = Clone(child)
		}
		return out
	default:
		return value
	}
}
