package pool

import (
	"iter"
	"slices"
)

// entry is one key→values pair, a link in a sorted bucket chain.
type entry struct {
	key  Token
	vals Values
	next *entry
}

func seekEntry(head *entry, key Token) (prev, at *entry, found bool) {
	for at = head; at != nil; prev, at = at, at.next {
		if c := Compare(key, at.key); c <= 0 {
			return prev, at, c == 0
		}
	}
	return prev, nil, false
}

func (b *entryBucket) unlink(prev, at *entry) {
	if prev != nil {
		prev.next = at.next
	} else {
		b.head = at.next
	}
	b.cnt--
	at.next = nil
}

// store is the single mutation path for keyed entries. vals is taken over,
// not copied. With present unset the entry is deleted. An existing entry is
// only touched when overwrite is set. Reports whether anything changed.
func (d *Dir) store(key Token, vals Values, present, overwrite bool) bool {
	b := &d.vals[d.entryIndex(key)]
	prev, at, found := seekEntry(b.head, key)
	switch {
	case !found:
		if !present {
			return false
		}
		e := &entry{key: key, vals: vals, next: at}
		if prev != nil {
			prev.next = e
		} else {
			b.head = e
		}
		b.cnt++
		return true
	case !overwrite:
		return false
	case present:
		at.vals = vals
		return true
	default:
		b.unlink(prev, at)
		return true
	}
}

// Set stores a copy of vals under key. An existing entry is replaced only if
// overwrite is set. Returns false, without touching anything, if key is not a
// valid key.
func (d *Dir) Set(key Token, vals Values, overwrite bool) bool {
	if !key.IsValidKey() {
		return false
	}
	d.store(key, vals.Clone(), true, overwrite)
	return true
}

// Unset deletes the entry under key and reports whether there was one.
func (d *Dir) Unset(key Token) bool {
	if !key.IsValidKey() {
		return false
	}
	return d.store(key, nil, false, true)
}

// locate finds the ix-th live entry in storage (bucket, then chain) order.
func (d *Dir) locate(ix int) (b *entryBucket, prev, at *entry) {
	if ix < 0 {
		return nil, nil, nil
	}
	for i := range d.vals {
		b = &d.vals[i]
		if ix >= b.cnt {
			ix -= b.cnt
			continue
		}
		for at = b.head; ix > 0; ix-- {
			prev, at = at, at.next
		}
		return b, prev, at
	}
	return nil, nil, nil
}

// SetAt replaces the values of the ix-th entry in storage order. Returns
// false if ix is out of range.
func (d *Dir) SetAt(ix int, vals Values) bool {
	_, _, at := d.locate(ix)
	if at == nil {
		return false
	}
	at.vals = vals.Clone()
	return true
}

// UnsetAt deletes the ix-th entry in storage order. Returns false if ix is
// out of range.
func (d *Dir) UnsetAt(ix int) bool {
	b, prev, at := d.locate(ix)
	if at == nil {
		return false
	}
	b.unlink(prev, at)
	return true
}

// EntryAt returns the key and a copy of the values of the ix-th entry in
// storage order.
func (d *Dir) EntryAt(ix int) (Token, Values, bool) {
	_, _, at := d.locate(ix)
	if at == nil {
		return Token{}, nil, false
	}
	return at.key, at.vals.Clone(), true
}

func (d *Dir) find(key Token) *entry {
	if !key.IsValidKey() {
		return nil
	}
	_, at, found := seekEntry(d.vals[d.entryIndex(key)].head, key)
	if !found {
		return nil
	}
	return at
}

// Get returns a copy of the values stored under key.
func (d *Dir) Get(key Token) (Values, bool) {
	e := d.find(key)
	if e == nil {
		return nil, false
	}
	return e.vals.Clone(), true
}

// Cut removes the entry under key and hands its values to the caller.
func (d *Dir) Cut(key Token) (Values, bool) {
	if !key.IsValidKey() {
		return nil, false
	}
	b := &d.vals[d.entryIndex(key)]
	prev, at, found := seekEntry(b.head, key)
	if !found {
		return nil, false
	}
	b.unlink(prev, at)
	vals := at.vals
	at.vals = nil
	return vals, true
}

// Peek returns the stored values without copying them. The caller must not
// modify the result or keep it past the next mutation of d.
func (d *Dir) Peek(key Token) (Values, bool) {
	e := d.find(key)
	if e == nil {
		return nil, false
	}
	return e.vals, true
}

// CountEntries returns the number of entries. It sums per-bucket counters
// and does not walk the chains.
func (d *Dir) CountEntries() int {
	var n int
	for i := range d.vals {
		n += d.vals[i].cnt
	}
	return n
}

// All iterates the entries in storage order without copying values. The
// directory must not be modified during iteration.
func (d *Dir) All() iter.Seq2[Token, Values] {
	return func(yield func(Token, Values) bool) {
		for i := range d.vals {
			for e := d.vals[i].head; e != nil; e = e.next {
				if !yield(e.key, e.vals) {
					return
				}
			}
		}
	}
}

// Keys returns all keys in comparator order.
func (d *Dir) Keys() []Token {
	keys := make([]Token, 0, d.CountEntries())
	for k := range d.All() {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Compare)
	return keys
}

// Entries returns all keys and copies of their values, in comparator order
// of the keys. With cut set the entry table is emptied and the stored lists
// are handed over instead of copied.
func (d *Dir) Entries(cut bool) ([]Token, []Values) {
	type kv struct {
		key  Token
		vals Values
	}
	all := make([]kv, 0, d.CountEntries())
	for k, v := range d.All() {
		if !cut {
			v = v.Clone()
		}
		all = append(all, kv{k, v})
	}
	if cut {
		clear(d.vals)
	}
	slices.SortFunc(all, func(a, b kv) int { return Compare(a.key, b.key) })

	keys := make([]Token, len(all))
	vals := make([]Values, len(all))
	for i, e := range all {
		keys[i], vals[i] = e.key, e.vals
	}
	return keys, vals
}
