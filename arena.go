package pool

import "sync/atomic"

// lastIdent is shared by all arenas, so an identity stamp is never handed out
// twice within the process, even across pools.
var lastIdent atomic.Uint64

func nextIdent() uint64 {
	return lastIdent.Add(1)
}

// dirRef addresses a directory by arena slot plus the identity stamp the
// slot held when the reference was taken. A reference goes stale as soon as
// the directory is freed, whether or not its slot has been reclaimed yet.
type dirRef struct {
	slot  uint32
	ident uint64
}

func (r dirRef) IsZero() bool { return r.ident == 0 }

// arena owns the slot table of one family of directories: a pool's tree, or
// a detached clipboard tree.
type arena struct {
	slots []arenaSlot
	free  []uint32
	live  int
}

type arenaSlot struct {
	dir   *Dir
	ident uint64 // 0 once the directory has been freed
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) alloc(d *Dir) dirRef {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot{})
	}
	ident := nextIdent()
	a.slots[slot] = arenaSlot{dir: d, ident: ident}
	a.live++
	return dirRef{slot, ident}
}

// lookup returns the live directory r refers to, or nil if it has been freed.
func (a *arena) lookup(r dirRef) *Dir {
	if r.ident == 0 || int(r.slot) >= len(a.slots) {
		return nil
	}
	s := a.slots[r.slot]
	if s.ident != r.ident {
		return nil
	}
	return s.dir
}

// held returns the directory behind r even if it has been invalidated. Only
// valid while the caller still holds a usage reference, which keeps the slot
// from being reclaimed.
func (a *arena) held(r dirRef) *Dir {
	if int(r.slot) >= len(a.slots) {
		return nil
	}
	return a.slots[r.slot].dir
}

func (a *arena) invalidate(r dirRef) {
	if int(r.slot) < len(a.slots) && a.slots[r.slot].ident == r.ident {
		a.slots[r.slot].ident = 0
	}
}

func (a *arena) reclaim(r dirRef) {
	a.slots[r.slot] = arenaSlot{}
	a.free = append(a.free, r.slot)
	a.live--
}

// retain adds a usage reference to d.
func retain(d *Dir) {
	d.usage++
}

// release drops a usage reference and reports whether any remain. The last
// release destroys d and its subtree.
func release(d *Dir) bool {
	if d == nil {
		return false
	}
	d.usage--
	if d.usage > 0 {
		return true
	}
	d.destroy()
	return false
}

// free marks d as logically removed, so that every cached handle sees it as
// gone, and then drops the caller's reference.
func free(d *Dir) bool {
	if d == nil {
		return false
	}
	d.invalidate()
	return release(d)
}
