package pool

// Cursor walks the entries or the subdirectories of one directory in storage
// (bucket, then chain) order. It is addressed by a Handle; if the handle comes
// to resolve to a different directory, the cursor starts over.
//
// A new cursor is unpositioned: Next moves to the first item and Prev to the
// last. Moving past either end leaves the cursor invalid until Reset.
type Cursor struct {
	h       Handle
	dirs    bool
	started bool
	between bool // item under the cursor was deleted
	ident   uint64
	bucket  int
	index   int
}

// NewCursor returns an unpositioned cursor over the directory at path,
// iterating subdirectories if dirs is set and entries otherwise.
func NewCursor(path Path, dirs bool) *Cursor {
	return &Cursor{h: Handle{path: path.Clone()}, dirs: dirs}
}

// Handle returns the handle the cursor is addressed by. Changing its path
// retargets the cursor.
func (c *Cursor) Handle() *Handle { return &c.h }

// Dirs reports whether the cursor iterates subdirectories.
func (c *Cursor) Dirs() bool { return c.dirs }

// Reset unpositions the cursor and selects its mode.
func (c *Cursor) Reset(dirs bool) {
	c.dirs = dirs
	c.started, c.between = false, false
	c.bucket, c.index = 0, 0
}

// Close releases the cursor's cached directory.
func (c *Cursor) Close() {
	c.h.Close()
}

func (c *Cursor) slots(d *Dir) int {
	if c.dirs {
		return len(d.dirs)
	}
	return len(d.vals)
}

func (c *Cursor) count(d *Dir, bucket int) int {
	if c.dirs {
		return d.dirs[bucket].cnt
	}
	return d.vals[bucket].cnt
}

func (c *Cursor) sync(d *Dir) {
	if c.ident != d.ident {
		c.ident = d.ident
		c.started, c.between = false, false
	}
}

// Next moves to the following live item of d and reports whether there is
// one.
func (c *Cursor) Next(d *Dir) bool {
	c.sync(d)
	n := c.slots(d)
	if !c.started {
		c.started = true
		c.bucket, c.index = 0, -1
	} else if c.bucket < 0 || c.bucket >= n {
		return false
	}
	if c.between {
		c.between = false
	} else {
		c.index++
	}
	for c.index >= c.count(d, c.bucket) {
		c.bucket++
		c.index = 0
		if c.bucket >= n {
			return false
		}
	}
	return true
}

// Prev moves to the preceding live item of d and reports whether there is
// one.
func (c *Cursor) Prev(d *Dir) bool {
	c.sync(d)
	n := c.slots(d)
	if !c.started {
		c.started = true
		c.bucket, c.index = n, 0
	} else if c.bucket < 0 || c.bucket >= n {
		return false
	}
	c.between = false
	c.index--
	for c.index < 0 {
		c.bucket--
		if c.bucket < 0 {
			return false
		}
		c.index = c.count(d, c.bucket) - 1
	}
	return true
}

// Valid reports whether the cursor is positioned on a live item of d.
func (c *Cursor) Valid(d *Dir) bool {
	c.sync(d)
	return c.started && !c.between && c.bucket >= 0 && c.bucket < c.slots(d) &&
		c.index >= 0 && c.index < c.count(d, c.bucket)
}

func (c *Cursor) entry(d *Dir) (b *entryBucket, prev, at *entry) {
	if c.dirs || !c.Valid(d) {
		return nil, nil, nil
	}
	b = &d.vals[c.bucket]
	at = b.head
	for i := 0; i < c.index; i++ {
		prev, at = at, at.next
	}
	return b, prev, at
}

// Entry returns the key and a copy of the values under the cursor.
func (c *Cursor) Entry(d *Dir) (Token, Values, bool) {
	_, _, at := c.entry(d)
	if at == nil {
		return Token{}, nil, false
	}
	return at.key, at.vals.Clone(), true
}

// Set replaces the values under the cursor.
func (c *Cursor) Set(d *Dir, vals Values) bool {
	_, _, at := c.entry(d)
	if at == nil {
		return false
	}
	at.vals = vals.Clone()
	return true
}

// Unset deletes the entry under the cursor. The cursor is left between the
// neighbours of the deleted entry: Next and Prev land on them.
func (c *Cursor) Unset(d *Dir) bool {
	b, prev, at := c.entry(d)
	if at == nil {
		return false
	}
	b.unlink(prev, at)
	c.between = true
	return true
}

// Dir returns the subdirectory under the cursor.
func (c *Cursor) Dir(d *Dir) *Dir {
	if !c.dirs || !c.Valid(d) {
		return nil
	}
	at := d.dirs[c.bucket].head
	for i := 0; i < c.index; i++ {
		at = at.next
	}
	return at
}
