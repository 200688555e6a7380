// Package hydrate moves values between Go structs and JSON-shaped trees of
// map[string]any, []any and primitives.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Options tunes Decode.
type Options struct {
	// Strict rejects tree keys with no matching struct field.
	Strict bool
	// UseNumber decodes numbers into interface fields as json.Number.
	UseNumber bool
}

// Validator is implemented by decoded types that check themselves.
type Validator interface {
	Validate() error
}

// Decode converts tree into T through its json tags. When *T implements
// Validator the decoded value is validated before it is returned.
func Decode[T any](tree any, opts Options) (T, error) {
	var zero T
	if tree == nil {
		return zero, fmt.Errorf("hydrate: tree is nil")
	}
	buffer, err := json.Marshal(tree)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal tree: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if opts.Strict {
		decoder.DisallowUnknownFields()
	}
	if opts.UseNumber {
		decoder.UseNumber()
	}

	var out T
	if err := decoder.Decode(&out); err != nil {
		return zero, fmt.Errorf("hydrate: decode %T: %w", out, err)
	}
	if validator, ok := any(&out).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return zero, fmt.Errorf("hydrate: validate %T: %w", out, err)
		}
	}
	return out, nil
}

// ToTree lowers value to a JSON-shaped tree. Trees are copied.
func ToTree(value any) (any, error) {
	buffer, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("hydrate: marshal %T: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, fmt.Errorf("hydrate: unmarshal %T: %w", value, err)
	}
	return out, nil
}
