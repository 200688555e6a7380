package objsync

import (
	"fmt"
	"sort"
)

// FieldDescriptor describes a path and the inferred type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Describe lists the leaf positions of value with their Go types, sorted by
// path. Arrays are described as a whole by their first element; empty
// objects are reported so their position is not lost.
func Describe(value any) []FieldDescriptor {
	fields := []FieldDescriptor{}
	WalkShape(value, true, func(node ShapeNode) bool {
		switch {
		case node.Kind == KindArray:
			elementType := "any"
			if arr := node.Value.([]any); len(arr) > 0 {
				elementType = typeName(arr[0])
			}
			fields = append(fields, FieldDescriptor{Path: node.Path, Type: "[]" + elementType})
		case node.Leaf:
			fields = append(fields, FieldDescriptor{Path: node.Path, Type: typeName(node.Value)})
		case node.Kind == KindObject && len(node.Value.(map[string]any)) == 0:
			fields = append(fields, FieldDescriptor{Path: node.Path, Type: "map[string]any"})
		}
		return true
	})
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Path < fields[j].Path
	})
	return fields
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
