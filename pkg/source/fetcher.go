package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPathIsDirectory is returned when a Fetcher path points to a directory.
var ErrPathIsDirectory = errors.New("path is a directory, not a file")

// Fetcher reads a document file at construction time and caches its bytes.
type Fetcher struct {
	filepath string
	format   Format
	data     []byte
}

// NewFetcher returns a constructor for a Fetcher over fpath. The file is read
// when the constructor runs, which lets an fx container decide when that
// happens. The document format is inferred from the file extension.
func NewFetcher(fpath string) func() (*Fetcher, error) {
	return func() (*Fetcher, error) {
		cleanPath := filepath.Clean(fpath)

		stat, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("stat file %q: %w", cleanPath, err)
		}
		if stat.IsDir() {
			return nil, fmt.Errorf("path %q: %w", cleanPath, ErrPathIsDirectory)
		}

		format, err := FormatFromPath(cleanPath)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is cleaned and validated
		if err != nil {
			return nil, fmt.Errorf("reading file %q: %w", cleanPath, err)
		}

		return &Fetcher{filepath: cleanPath, format: format, data: data}, nil
	}
}

// Path returns the cleaned file path.
func (f *Fetcher) Path() string {
	return f.filepath
}

// Format returns the format inferred from the file extension.
func (f *Fetcher) Format() Format {
	return f.format
}

// Fetch returns a copy of the cached file contents.
func (f *Fetcher) Fetch() ([]byte, error) {
	result := make([]byte, len(f.data))
	copy(result, f.data)
	return result, nil
}

// Load decodes the cached document and selects path from it.
func (f *Fetcher) Load(path string) (any, error) {
	data, err := f.Fetch()
	if err != nil {
		return nil, err
	}
	tree, err := Decode(data, f.format, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.filepath, err)
	}
	return tree, nil
}
