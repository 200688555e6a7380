package objsync

import (
	"sort"
	"strconv"
)

// ShapeNode is one position reached by WalkShape.
type ShapeNode struct {
	Path  string
	Kind  Kind
	Value any
	// Leaf is set for primitives, dates and, in skip-array mode, arrays.
	Leaf bool
}

// WalkShape visits every position below source breadth first, object keys in
// sorted order. Returning false from visit prunes the children of a branch.
// The root itself is not visited.
func WalkShape(source any, skipArray bool, visit func(ShapeNode) bool) {
	type pending struct {
		path  string
		value any
	}
	queue := []pending{}
	enqueue := func(prefix string, value any) {
		switch typed := value.(type) {
		case map[string]any:
			for _, key := range sortedKeys(typed) {
				queue = append(queue, pending{path: joinPath(prefix, key), value: typed[key]})
			}
		case []any:
			for i, item := range typed {
				queue = append(queue, pending{path: joinPath(prefix, strconv.Itoa(i)), value: item})
			}
		}
	}

	enqueue("", source)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		kind := KindOf(next.value)
		node := ShapeNode{
			Path:  next.path,
			Kind:  kind,
			Value: next.value,
			Leaf:  kind == KindLeaf || kind == KindDate || (kind == KindArray && skipArray),
		}
		if !visit(node) || node.Leaf {
			continue
		}
		enqueue(next.path, next.value)
	}
}

// CollectPaths returns the leaf paths of source in breadth-first order.
func CollectPaths(source any, skipArray bool) []string {
	var paths []string
	WalkShape(source, skipArray, func(node ShapeNode) bool {
		if node.Leaf {
			paths = append(paths, node.Path)
		}
		return true
	})
	return paths
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// lookupLive walks value by path without an accessor or memo.
func lookupLive(value any, path string) (any, bool) {
	current := value
	for _, segment := range splitPath(path) {
		child, exists, res := readChild(current, segment)
		if res != SetApplied || !exists {
			return nil, false
		}
		current = child
	}
	return current, true
}
