package pool

// Detached is an owned directory tree with no parent and no pool: the
// result of unlinking a subtree, or a clipboard built by Extract or Copy.
// The owner must call Free when done with it.
type Detached struct {
	dir *Dir
}

// NewDetached returns an empty detached directory sized by hint.
func NewDetached(hint SizeHint) *Detached {
	vbits, dbits := hint.bits()
	return &Detached{dir: newDir(newArena(), Token{}, dirRef{}, vbits, dbits)}
}

// Dir returns the top directory of the tree, or nil after Free.
func (det *Detached) Dir() *Dir {
	if det == nil {
		return nil
	}
	return det.dir
}

// Free destroys the tree. Directories still cached by handles stay allocated
// until those handles let go, but no longer resolve.
func (det *Detached) Free() {
	if det == nil || det.dir == nil {
		return
	}
	free(det.dir)
	det.dir = nil
}

func (d *Dir) sizeHint() SizeHint {
	return SizeHint{Entries: len(d.vals) - 1, Dirs: len(d.dirs) - 1}
}

// Paste copies every entry of src into d, replacing existing entries only if
// overwrite is set, and then, unless depth is 0, recurses into the
// subdirectories of src. Missing subdirectories of d are created if mkdir is
// set; otherwise they are skipped and Paste reports false once it is done.
// Pasting a directory into its own subtree copies a snapshot of it.
func (d *Dir) Paste(src *Dir, depth int, overwrite, mkdir bool) bool {
	if src == d || src.isAncestorOf(d) {
		tmp := NewDetached(src.sizeHint())
		defer tmp.Free()
		tmp.dir.Extract(src, depth, false)
		src = tmp.dir
	}
	return d.paste(src, depth, overwrite, mkdir)
}

func (d *Dir) paste(src *Dir, depth int, overwrite, mkdir bool) bool {
	for k, v := range src.All() {
		d.store(k, v.Clone(), true, overwrite)
	}
	if depth == 0 {
		return true
	}
	ok := true
	for c := range src.Subdirs() {
		var dc *Dir
		if mkdir {
			dc = d.Mkdir(Path{c.name}, SizeHint{})
		} else {
			dc = d.Lookup(Path{c.name})
		}
		if dc == nil {
			ok = false
			continue
		}
		if !dc.paste(c, nextDepth(depth), overwrite, mkdir) {
			ok = false
		}
	}
	return ok
}

// Extract copies the entries of src into d, or moves them if cut is set, and
// then, unless depth is 0, does the same for each subdirectory of src,
// creating the matching subdirectories of d with the same table sizes. Cut
// never removes directories from src. Extracting into a directory of the
// source subtree is refused.
func (d *Dir) Extract(src *Dir, depth int, cut bool) bool {
	if src == d || src.isAncestorOf(d) {
		return false
	}
	if cut {
		keys, vals := src.Entries(true)
		for i, k := range keys {
			d.store(k, vals[i], true, true)
		}
	} else {
		for k, v := range src.All() {
			d.store(k, v.Clone(), true, true)
		}
	}
	if depth == 0 {
		return true
	}
	ok := true
	for c := range src.Subdirs() {
		dc := d.Mkdir(Path{c.name}, c.sizeHint())
		if dc == nil || !dc.Extract(c, nextDepth(depth), cut) {
			ok = false
		}
	}
	return ok
}

// CopyEntry returns a detached directory holding a single entry: key with
// the values stored under it in d. With cut set the entry is moved out of d.
// Returns nil if there is no such entry.
func (d *Dir) CopyEntry(key Token, cut bool) *Detached {
	var vals Values
	var ok bool
	if cut {
		vals, ok = d.Cut(key)
	} else {
		vals, ok = d.Get(key)
	}
	if !ok {
		return nil
	}
	det := NewDetached(d.sizeHint())
	det.dir.store(key, vals, true, true)
	return det
}

// CopyTree returns a detached copy of d down to depth levels; see Extract.
func (d *Dir) CopyTree(depth int, cut bool) *Detached {
	det := NewDetached(d.sizeHint())
	if !det.dir.Extract(d, depth, cut) {
		det.Free()
		return nil
	}
	return det
}
