// Package source loads object trees from JSON, YAML and MessagePack
// documents.
//
// Decoded documents are normalised to the canonical tree shape used by
// objsync: map[string]any objects, []any arrays, float64 numbers, strings,
// booleans and nil.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	objsync "github.com/goliatone/go-objsync"
	"github.com/goliatone/go-objsync/internal/hydrate"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

var (
	// ErrEmptyData is returned when the input data is empty.
	ErrEmptyData = errors.New("empty data")
	// ErrPathNotFound is returned when a selection path is missing from the
	// document.
	ErrPathNotFound = errors.New("path not found")
	// ErrUnknownFormat is returned for unsupported formats or extensions.
	ErrUnknownFormat = errors.New("unknown document format")
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Decode parses data and returns the tree at path. Path uses dotted
// segments with numeric array indices ("items.0.name"); an empty path
// returns the whole document.
func Decode(data []byte, format Format, path string) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	var (
		raw any
		err error
	)
	switch format {
	case FormatYAML:
		raw, err = decodeYAML(data, path)
		if err != nil {
			return nil, err
		}
		// the path has already been applied
		return normalise(raw)
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", format, err)
	}

	tree, err := normalise(raw)
	if err != nil {
		return nil, err
	}
	return selectPath(tree, path)
}

// Encode renders tree in format. JSON output is indented.
func Encode(tree any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(tree, "", "  ")
	case FormatYAML:
		return yaml.Marshal(tree)
	case FormatMsgpack:
		return msgpack.Marshal(tree)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeYAML(data []byte, path string) (any, error) {
	var out any
	if path == "" {
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
		return out, nil
	}

	pathObj, err := yaml.PathString(yamlPath(path))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := pathObj.Read(bytes.NewReader(data), &out); err != nil {
		if yaml.IsNotFoundNodeError(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("reading path %q: %w", path, err)
	}
	return out, nil
}

// yamlPath converts "a.0.b" to the goccy/go-yaml form "$.a[0].b".
func yamlPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, segment := range strings.Split(path, ".") {
		if _, err := strconv.Atoi(segment); err == nil {
			b.WriteString("[" + segment + "]")
			continue
		}
		b.WriteString("." + segment)
	}
	return b.String()
}

func selectPath(tree any, path string) (any, error) {
	if path == "" {
		return tree, nil
	}
	value, ok := objsync.NewAccessor(tree).Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return value, nil
}

func normalise(raw any) (any, error) {
	tree, err := hydrate.ToTree(raw)
	if err != nil {
		return nil, fmt.Errorf("normalise document: %w", err)
	}
	return tree, nil
}
