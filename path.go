package objsync

import (
	"strconv"
	"strings"
)

// PathSeparator delimits segments of a property path.
const PathSeparator = "."

// splitLast splits path into its parent path and final segment.
func splitLast(path string) (string, string) {
	idx := strings.LastIndex(path, PathSeparator)
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	if segment == "" {
		return prefix
	}
	return prefix + PathSeparator + segment
}

// splitPath returns the segments of path; the empty path has none.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// parseIndex accepts decimal, non-negative array indices only.
func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// hasPathPrefix reports whether path equals prefix or lies below it.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+PathSeparator)
}

// trimPathPrefix returns path relative to prefix. The caller checks
// hasPathPrefix first.
func trimPathPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if path == prefix {
		return ""
	}
	return path[len(prefix)+len(PathSeparator):]
}

// pathDepth counts the segments in path.
func pathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, PathSeparator) + 1
}
