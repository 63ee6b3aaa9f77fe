package pool

// Handle is a path relative to a pool root plus a cached reference to the
// directory it last resolved to. The cache holds a usage reference, so a
// directory removed while cached is not reclaimed until the handle lets go;
// its identity stamp tells the handle that it is gone.
//
// The zero Handle addresses the root.
type Handle struct {
	path  Path
	arena *arena
	ref   dirRef
}

// NewHandle returns a handle addressing path.
func NewHandle(path Path) *Handle {
	return &Handle{path: path.Clone()}
}

// Path returns a copy of the handle's path.
func (h *Handle) Path() Path {
	return h.path.Clone()
}

// Depth returns the number of segments in the handle's path.
func (h *Handle) Depth() int {
	return len(h.path)
}

// Resolve returns the directory at the handle's path below root, or nil if
// there is none. A cached directory is reused while its identity is intact.
func (h *Handle) Resolve(root *Dir) *Dir {
	if h.arena == root.arena {
		if d := h.arena.lookup(h.ref); d != nil {
			return d
		}
	}
	h.drop()
	d := root.Lookup(h.path)
	if d != nil {
		h.Associate(d)
	}
	return d
}

// Associate binds the handle to d, skipping the walk on the next Resolve. d
// must be the directory at the handle's path.
func (h *Handle) Associate(d *Dir) {
	if h.arena == d.arena && h.ref == d.ref && d.ident != 0 {
		return
	}
	h.drop()
	retain(d)
	h.arena, h.ref = d.arena, d.ref
}

// Cached reports whether the handle currently holds a live directory.
func (h *Handle) Cached() bool {
	return h.arena != nil && h.arena.lookup(h.ref) != nil
}

func (h *Handle) drop() {
	if h.arena == nil {
		return
	}
	release(h.arena.held(h.ref))
	h.arena, h.ref = nil, dirRef{}
}

// SetPath replaces the path. Every path change discards the cache.
func (h *Handle) SetPath(p Path) {
	h.drop()
	h.path = p.Clone()
}

// Append descends by the given segments.
func (h *Handle) Append(segs ...Token) {
	h.drop()
	h.path = h.path.Append(segs...)
}

// Up ascends n levels, stopping at the root, and reports whether all n
// levels were available.
func (h *Handle) Up(n int) bool {
	h.drop()
	n = max(n, 0)
	if n > len(h.path) {
		h.path = h.path[:0]
		return false
	}
	h.path = h.path[:len(h.path)-n]
	return true
}

// Truncate keeps the first n segments.
func (h *Handle) Truncate(n int) {
	h.drop()
	if n < len(h.path) {
		h.path = h.path[:max(n, 0)]
	}
}

// Clone returns an independent handle with the same path and no cache.
func (h *Handle) Clone() *Handle {
	return NewHandle(h.path)
}

// Close releases the cached directory, if any. The handle stays usable.
func (h *Handle) Close() {
	h.drop()
}

func (h *Handle) String() string {
	return h.path.String()
}
