// Package layering composes object trees ordered from strongest to weakest.
package layering

import "strings"

// Compose merges layers, strongest first, into a new tree. Objects merge key
// by key; any other value from a stronger layer replaces the weaker one
// whole. Nil values are undefined and never override. The result shares no
// containers with the inputs.
func Compose(layers ...map[string]any) map[string]any {
	out, _ := compose(layers, false)
	return out
}

// Origins reports, for every leaf path of Compose(layers...), the index of
// the layer that supplied it. Paths are dot separated; array values are
// leaves.
func Origins(layers ...map[string]any) map[string]int {
	_, origins := compose(layers, true)
	return origins
}

func compose(layers []map[string]any, track bool) (map[string]any, map[string]int) {
	out := map[string]any{}
	var origins map[string]int
	if track {
		origins = map[string]int{}
	}
	for i := len(layers) - 1; i >= 0; i-- {
		overlay(out, layers[i], "", i, origins)
	}
	return out, origins
}

func overlay(dst, src map[string]any, prefix string, index int, origins map[string]int) {
	for key, value := range src {
		if value == nil {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		obj, isObject := value.(map[string]any)
		if !isObject {
			dst[key] = cloneTree(value)
			if origins != nil {
				forget(origins, path)
				origins[path] = index
			}
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
			if origins != nil {
				delete(origins, path)
			}
		}
		overlay(existing, obj, path, index, origins)
	}
}

// forget drops the origins recorded below path.
func forget(origins map[string]int, path string) {
	prefix := path + "."
	for key := range origins {
		if strings.HasPrefix(key, prefix) {
			delete(origins, key)
		}
	}
}

func cloneTree(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = cloneTree(child)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			out[i] = cloneTree(child)
		}
		return out
	default:
		return value
	}
}
