package objsync

// SetResult reports the outcome of a write through an accessor.
type SetResult int

const (
	// SetApplied means the value was stored.
	SetApplied SetResult = iota
	// SetSkippedInvalidParent means a segment could not address its
	// container, e.g. a non-numeric segment below an array.
	SetSkippedInvalidParent
	// SetSkippedTypeConflict means an intermediate segment holds a leaf value
	// that cannot contain children.
	SetSkippedTypeConflict
)

func (r SetResult) String() string {
	switch r {
	case SetApplied:
		return "applied"
	case SetSkippedInvalidParent:
		return "skipped: invalid parent"
	case SetSkippedTypeConflict:
		return "skipped: type conflict"
	default:
		return "unknown"
	}
}

// OK reports whether the write was applied.
func (r SetResult) OK() bool {
	return r == SetApplied
}

// PathAccessor reads and writes nested properties by dotted path.
type PathAccessor interface {
	// Get returns the value at path or InvalidAccess. It never mutates.
	Get(path string) any
	// Lookup is Get with an explicit found flag.
	Lookup(path string) (any, bool)
	// GetOrCreate creates missing parents and initialises an absent final
	// segment to defaultValue.
	GetOrCreate(path string, defaultValue any) any
	// Set creates missing parents and stores value at path.
	Set(path string, value any) SetResult
	// Union returns Get for each path in order.
	Union(paths ...string) []any
	// Sub returns a view rooted at path.
	Sub(path string) *ScopedAccessor
}

// Accessor wraps one root object and resolves dotted paths against it.
// Resolved containers are memoised per path for the accessor's lifetime.
// Writes made by the accessor keep the memo consistent; edits made to the
// graph behind its back are not observed.
type Accessor struct {
	root  any
	cache map[string]any
}

var (
	_ PathAccessor = (*Accessor)(nil)
	_ PathAccessor = (*ScopedAccessor)(nil)
)

// NewAccessor wraps root. A nil root becomes an empty object.
func NewAccessor(root any) *Accessor {
	if root == nil {
		root = map[string]any{}
	}
	return &Accessor{
		root:  root,
		cache: map[string]any{},
	}
}

// Root returns the current root. Growing a root array replaces it, so callers
// should read the root back after writes.
func (a *Accessor) Root() any {
	return a.root
}

func (a *Accessor) Get(path string) any {
	if path == "" {
		return a.root
	}
	parentPath, last := splitLast(path)
	parent, res := a.resolve(parentPath, false)
	if res != SetApplied {
		return InvalidAccess
	}
	value, exists, res := readChild(parent, last)
	if res != SetApplied || !exists {
		return InvalidAccess
	}
	if isContainer(value) {
		a.cache[path] = value
	}
	return value
}

func (a *Accessor) Lookup(path string) (any, bool) {
	value := a.Get(path)
	return value, !IsInvalid(value)
}

func (a *Accessor) GetOrCreate(path string, defaultValue any) any {
	if path == "" {
		return a.root
	}
	parentPath, last := splitLast(path)
	parent, res := a.resolve(parentPath, true)
	if res != SetApplied {
		return InvalidAccess
	}
	value, exists, res := readChild(parent, last)
	if res != SetApplied {
		return InvalidAccess
	}
	if !exists {
		if a.put(parentPath, parent, last, defaultValue) != SetApplied {
			return InvalidAccess
		}
		return defaultValue
	}
	if isContainer(value) {
		a.cache[path] = value
	}
	return value
}

func (a *Accessor) Set(path string, value any) SetResult {
	if path == "" {
		a.root = value
		clear(a.cache)
		return SetApplied
	}
	parentPath, last := splitLast(path)
	parent, res := a.resolve(parentPath, true)
	if res != SetApplied {
		return res
	}
	a.invalidate(path)
	return a.put(parentPath, parent, last, value)
}

func (a *Accessor) Union(paths ...string) []any {
	out := make([]any, len(paths))
	for i, path := range paths {
		out[i] = a.Get(path)
	}
	return out
}

func (a *Accessor) Sub(path string) *ScopedAccessor {
	return &ScopedAccessor{host: a, prefix: path}
}

// resolve returns the container stored at path, creating missing objects
// along the way when create is set.
func (a *Accessor) resolve(path string, create bool) (any, SetResult) {
	if path == "" {
		if !isContainer(a.root) {
			return nil, SetSkippedTypeConflict
		}
		return a.root, SetApplied
	}
	if cached, ok := a.cache[path]; ok {
		return cached, SetApplied
	}

	parentPath, last := splitLast(path)
	parent, res := a.resolve(parentPath, create)
	if res != SetApplied {
		return nil, res
	}
	child, exists, res := readChild(parent, last)
	if res != SetApplied {
		return nil, res
	}
	if exists && isContainer(child) {
		a.cache[path] = child
		return child, SetApplied
	}
	if exists && child != nil {
		return nil, SetSkippedTypeConflict
	}
	if !create {
		return nil, SetSkippedInvalidParent
	}

	created := map[string]any{}
	if res := a.put(parentPath, parent, last, created); res != SetApplied {
		return nil, res
	}
	a.cache[path] = created
	return created, SetApplied
}

// put stores value under segment of container, which lives at
// containerPath. Arrays grow as needed and are re-attached to their parent.
func (a *Accessor) put(containerPath string, container any, segment string, value any) SetResult {
	switch typed := container.(type) {
	case map[string]any:
		typed[segment] = value
		return SetApplied
	case []any:
		idx, ok := parseIndex(segment)
		if !ok {
			return SetSkippedInvalidParent
		}
		if idx < len(typed) {
			typed[idx] = value
			return SetApplied
		}
		grown := growSlice(typed, idx+1)
		grown[idx] = value
		return a.attach(containerPath, grown)
	default:
		return SetSkippedTypeConflict
	}
}

// attach replaces the value at path without invalidating memoised children.
func (a *Accessor) attach(path string, value any) SetResult {
	if path == "" {
		a.root = value
		return SetApplied
	}
	parentPath, last := splitLast(path)
	parent, res := a.resolve(parentPath, false)
	if res != SetApplied {
		return res
	}
	if res := a.put(parentPath, parent, last, value); res != SetApplied {
		return res
	}
	a.cache[path] = value
	return SetApplied
}

// invalidate drops memo entries at or below path.
func (a *Accessor) invalidate(path string) {
	for key := range a.cache {
		if hasPathPrefix(key, path) {
			delete(a.cache, key)
		}
	}
}

func readChild(container any, segment string) (any, bool, SetResult) {
	switch typed := container.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok, SetApplied
	case []any:
		idx, ok := parseIndex(segment)
		if !ok {
			return nil, false, SetSkippedInvalidParent
		}
		if idx >= len(typed) {
			return nil, false, SetApplied
		}
		return typed[idx], true, SetApplied
	default:
		return nil, false, SetSkippedTypeConflict
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// growSlice returns a copy of s with length n, zero-filled past len(s).
func growSlice(s []any, n int) []any {
	if n <= len(s) {
		return s
	}
	grown := make([]any, n)
	copy(grown, s)
	return grown
}

// ScopedAccessor is a view over a host Accessor rooted at a fixed prefix.
// It holds no memo of its own.
type ScopedAccessor struct {
	host   *Accessor
	prefix string
}

// Prefix returns the absolute path the view is rooted at.
func (s *ScopedAccessor) Prefix() string {
	return s.prefix
}

// Host returns the accessor the view forwards to.
func (s *ScopedAccessor) Host() *Accessor {
	return s.host
}

func (s *ScopedAccessor) abs(path string) string {
	return joinPath(s.prefix, path)
}

func (s *ScopedAccessor) Get(path string) any {
	return s.host.Get(s.abs(path))
}

func (s *ScopedAccessor) Lookup(path string) (any, bool) {
	return s.host.Lookup(s.abs(path))
}

func (s *ScopedAccessor) GetOrCreate(path string, defaultValue any) any {
	return s.host.GetOrCreate(s.abs(path), defaultValue)
}

func (s *ScopedAccessor) Set(path string, value any) SetResult {
	return s.host.Set(s.abs(path), value)
}

func (s *ScopedAccessor) Union(paths ...string) []any {
	out := make([]any, len(paths))
	for i, path := range paths {
		out[i] = s.Get(path)
	}
	return out
}

func (s *ScopedAccessor) Sub(path string) *ScopedAccessor {
	return &ScopedAccessor{host: s.host, prefix: s.abs(path)}
}
