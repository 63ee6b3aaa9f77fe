package pool

import (
	"iter"
	"slices"
)

const (
	defaultEntryBits = 6
	defaultDirBits   = 5
	maxTableBits     = 20
)

// SizeHint gives the expected number of entries and subdirectories of a new
// directory. Zero fields select the defaults (64 entry buckets, 32 directory
// buckets). Bucket tables are never resized afterwards.
type SizeHint struct {
	Entries int
	Dirs    int
}

// Dir is a directory node: two fixed-size hash tables of sorted chains, one
// for entries and one for child directories. A Dir owns its entries and,
// transitively, every directory below it.
type Dir struct {
	name   Token
	next   *Dir   // sibling in the parent's bucket chain
	parent dirRef // structural navigation only, never ownership

	arena *arena
	ref   dirRef
	ident uint64
	usage int

	vbits, dbits int
	vals         []entryBucket
	dirs         []dirBucket
}

type entryBucket struct {
	cnt  int
	head *entry
}

type dirBucket struct {
	cnt  int
	head *Dir
}

// newDir allocates a directory in a and grants the caller one reference.
func newDir(a *arena, name Token, parent dirRef, vbits, dbits int) *Dir {
	d := &Dir{
		name:   name,
		parent: parent,
		arena:  a,
		vbits:  vbits,
		dbits:  dbits,
		vals:   make([]entryBucket, 1<<vbits),
		dirs:   make([]dirBucket, 1<<dbits),
	}
	d.ref = a.alloc(d)
	d.ident = d.ref.ident
	retain(d)
	return d
}

func (h SizeHint) bits() (vbits, dbits int) {
	vbits, dbits = defaultEntryBits, defaultDirBits
	if h.Entries > 0 {
		vbits = bitsFor(h.Entries)
	}
	if h.Dirs > 0 {
		dbits = bitsFor(h.Dirs)
	}
	return
}

// bitsFor returns the number of bits needed to represent n.
func bitsFor(n int) int {
	var b int
	for ; n > 0; n >>= 1 {
		b++
	}
	return min(b, maxTableBits)
}

// foldBits XORs successive bits-wide slices of h together, so that every bit
// of the hash influences the bucket index.
func foldBits(h uint64, bits int) int {
	if bits <= 0 {
		return 0
	}
	mask := uint64(1)<<bits - 1
	var r uint64
	for i := 0; i < 64; i += bits {
		r ^= (h >> i) & mask
	}
	return int(r)
}

func (d *Dir) entryIndex(key Token) int { return foldBits(key.hash(), d.vbits) }
func (d *Dir) dirIndex(name Token) int  { return foldBits(name.hash(), d.dbits) }

// Name returns the token this directory is filed under in its parent. Root
// and detached directories have the null name.
func (d *Dir) Name() Token { return d.name }

// Ident returns the identity stamp of d, or 0 once d has been freed.
func (d *Dir) Ident() uint64 { return d.ident }

// EntrySlots and DirSlots return the fixed bucket table sizes.
func (d *Dir) EntrySlots() int { return len(d.vals) }
func (d *Dir) DirSlots() int   { return len(d.dirs) }

// Parent returns the live parent directory, or nil for a root or detached
// directory.
func (d *Dir) Parent() *Dir {
	if d.parent.IsZero() {
		return nil
	}
	return d.arena.lookup(d.parent)
}

// Path returns the names from the top of d's tree down to d.
func (d *Dir) Path() Path {
	var rev Path
	for cur := d; ; {
		par := cur.Parent()
		if par == nil {
			break
		}
		rev = append(rev, cur.name)
		cur = par
	}
	slices.Reverse(rev)
	return rev
}

func (d *Dir) isAncestorOf(o *Dir) bool {
	for cur := o.Parent(); cur != nil; cur = cur.Parent() {
		if cur == d {
			return true
		}
	}
	return false
}

func (d *Dir) invalidate() {
	if d.ident != 0 {
		d.arena.invalidate(d.ref)
		d.ident = 0
	}
}

func (d *Dir) destroy() {
	d.invalidate()
	d.Clear(true, false)
	d.arena.reclaim(d.ref)
	d.vals, d.dirs = nil, nil
}

// seekDir scans a sorted chain and stops at the first child whose name is
// not less than name.
func seekDir(head *Dir, name Token) (prev, at *Dir, found bool) {
	for at = head; at != nil; prev, at = at, at.next {
		if c := Compare(name, at.name); c <= 0 {
			return prev, at, c == 0
		}
	}
	return prev, nil, false
}

// Mkdir walks path from d, creating every missing directory on the way, and
// returns the directory at the end of it. The hint sizes the final directory
// if it has to be created. Returns nil if path contains an invalid name.
func (d *Dir) Mkdir(path Path, hint SizeHint) *Dir {
	if !path.valid() {
		return nil
	}
	cur := d
	for i, seg := range path {
		b := &cur.dirs[cur.dirIndex(seg)]
		prev, at, found := seekDir(b.head, seg)
		if !found {
			vbits, dbits := defaultEntryBits, defaultDirBits
			if i == len(path)-1 {
				vbits, dbits = hint.bits()
			}
			nd := newDir(cur.arena, seg, cur.ref, vbits, dbits)
			nd.next = at
			if prev != nil {
				prev.next = nd
			} else {
				b.head = nd
			}
			b.cnt++
			at = nd
		}
		cur = at
	}
	return cur
}

// Lookup returns the directory at path below d, or nil if there is none. An
// empty path yields d itself.
func (d *Dir) Lookup(path Path) *Dir {
	cur := d
	for _, seg := range path {
		b := &cur.dirs[cur.dirIndex(seg)]
		_, at, found := seekDir(b.head, seg)
		if !found {
			return nil
		}
		cur = at
	}
	return cur
}

// Detach unlinks the directory at path without freeing it and hands it to
// the caller, who must eventually call Free on the result. The root of the
// walk itself cannot be detached.
func (d *Dir) Detach(path Path) *Detached {
	if len(path) == 0 {
		return nil
	}
	parent := d.Lookup(path[:len(path)-1])
	if parent == nil {
		return nil
	}
	seg := path[len(path)-1]
	b := &parent.dirs[parent.dirIndex(seg)]
	prev, at, found := seekDir(b.head, seg)
	if !found {
		return nil
	}
	if prev != nil {
		prev.next = at.next
	} else {
		b.head = at.next
	}
	b.cnt--
	at.next = nil
	at.parent = dirRef{}
	return &Detached{dir: at}
}

// Remove deletes the directory at path and its whole subtree. It reports
// whether anything was removed; d never removes itself.
func (d *Dir) Remove(path Path) bool {
	det := d.Detach(path)
	if det == nil {
		return false
	}
	det.Free()
	return true
}

// CountDirs returns the number of immediate subdirectories.
func (d *Dir) CountDirs() int {
	var n int
	for i := range d.dirs {
		n += d.dirs[i].cnt
	}
	return n
}

// DirNames returns the names of the immediate subdirectories in comparator
// order.
func (d *Dir) DirNames() []Token {
	names := make([]Token, 0, d.CountDirs())
	for c := range d.Subdirs() {
		names = append(names, c.name)
	}
	slices.SortFunc(names, Compare)
	return names
}

// Subdirs iterates the immediate subdirectories in storage (bucket, then
// chain) order. The tree must not be modified during iteration.
func (d *Dir) Subdirs() iter.Seq[*Dir] {
	return func(yield func(*Dir) bool) {
		for i := range d.dirs {
			for c := d.dirs[i].head; c != nil; c = c.next {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Clear frees the subdirectories if recursive is set, and the entries unless
// dirsOnly is set.
func (d *Dir) Clear(recursive, dirsOnly bool) {
	if recursive {
		for i := range d.dirs {
			b := &d.dirs[i]
			for c := b.head; c != nil; {
				next := c.next
				c.next = nil
				c.parent = dirRef{}
				free(c)
				c = next
			}
			*b = dirBucket{}
		}
	}
	if !dirsOnly {
		clear(d.vals)
	}
}

// Walk calls fn for every directory within depth levels below d (d itself is
// level 0; a negative depth is unlimited), parents before children. The
// path passed to fn is relative to d and must not be retained. Returning
// false from fn skips that directory's children.
func (d *Dir) Walk(depth int, fn func(path Path, dir *Dir) bool) {
	d.walk(depth, nil, fn)
}

func (d *Dir) walk(depth int, path Path, fn func(Path, *Dir) bool) {
	if !fn(path, d) || depth == 0 {
		return
	}
	for c := range d.Subdirs() {
		c.walk(nextDepth(depth), append(path, c.name), fn)
	}
}

// nextDepth decrements a depth limit, leaving the unlimited sentinel alone.
func nextDepth(depth int) int {
	if depth > 0 {
		return depth - 1
	}
	return depth
}
