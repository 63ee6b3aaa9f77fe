package pool

import (
	"testing"
)

func TestFoldBits(t *testing.T) {
	tests := []struct {
		h    uint64
		bits int
		e    int
	}{
		{0x0102, 8, 0x03},
		{0xFFFF, 8, 0},
		{0xFFFFFFFFFFFFFFFF, 0, 0},
		{0x8000000000000000, 1, 1},
		{0x8000000000000000, 6, 0x08},
	}
	for _, tt := range tests {
		if a := foldBits(tt.h, tt.bits); a != tt.e {
			t.Errorf("foldBits(%x, %d) = %x, wanted %x", tt.h, tt.bits, a, tt.e)
		}
	}
}

func TestBitsFor(t *testing.T) {
	tests := []struct{ n, e int }{
		{0, 0}, {1, 1}, {2, 2}, {63, 6}, {64, 7}, {1 << 30, maxTableBits},
	}
	for _, tt := range tests {
		if a := bitsFor(tt.n); a != tt.e {
			t.Errorf("bitsFor(%d) = %d, wanted %d", tt.n, a, tt.e)
		}
	}
	vbits, dbits := SizeHint{}.bits()
	deepEqual(t, vbits, defaultEntryBits)
	deepEqual(t, dbits, defaultDirBits)
	vbits, dbits = SizeHint{Entries: 100, Dirs: 3}.bits()
	deepEqual(t, vbits, 7)
	deepEqual(t, dbits, 2)
}

func TestMkdirLookup(t *testing.T) {
	root := setupDir(t, defaultEntryBits, defaultDirBits)

	ab := root.Mkdir(ParsePath("a b"), SizeHint{Entries: 1000})
	isnonnil(t, ab)
	deepEqual(t, ab.EntrySlots(), 1024)
	deepEqual(t, ab.DirSlots(), 32)
	if root.Mkdir(ParsePath("a b"), SizeHint{}) != ab {
		t.Fatalf("Mkdir of an existing path created a new directory")
	}
	if root.Lookup(ParsePath("a b")) != ab {
		t.Fatalf("Lookup(a b) returned a different directory")
	}
	if root.Lookup(nil) != root {
		t.Fatalf("Lookup(nil) != root")
	}
	isnil(t, root.Lookup(ParsePath("a c")))
	isnil(t, root.Lookup(ParsePath("b")))

	a := root.Lookup(ParsePath("a"))
	deepEqual(t, a.CountDirs(), 1)
	deepEqual(t, a.EntrySlots(), 64)
	tokensEq(t, ab.Path(), "a b")
	if ab.Parent() != a || a.Parent() != root || root.Parent() != nil {
		t.Fatalf("Parent chain broken")
	}
	tokensEq(t, Path{ab.Name()}, "b")
	if !root.isAncestorOf(ab) || !a.isAncestorOf(ab) || ab.isAncestorOf(a) || ab.isAncestorOf(ab) {
		t.Fatalf("isAncestorOf wrong")
	}
}

func TestMkdirRejectsInvalidNames(t *testing.T) {
	root := setupDir(t, 2, 2)
	isnil(t, root.Mkdir(Path{Sym("a"), {}}, SizeHint{}))
	deepEqual(t, root.CountDirs(), 0)
}

func TestMkdirCrowdedTable(t *testing.T) {
	root := setupDir(t, 1, 1)
	dirs := make(map[int64]*Dir)
	for i := range int64(50) {
		dirs[i] = root.Mkdir(Path{Int(i)}, SizeHint{})
	}
	deepEqual(t, root.CountDirs(), 50)
	for i, d := range dirs {
		if root.Lookup(Path{Int(i)}) != d {
			t.Fatalf("Lookup(%d) returned a different directory", i)
		}
	}
	for i := range root.dirs {
		var n int
		var prev *Dir
		for c := root.dirs[i].head; c != nil; c = c.next {
			if prev != nil && Compare(prev.name, c.name) >= 0 {
				t.Fatalf("bucket %d chain out of order: %v then %v", i, prev.name, c.name)
			}
			prev = c
			n++
		}
		deepEqual(t, root.dirs[i].cnt, n)
	}
}

func TestDirNamesOrder(t *testing.T) {
	root := setupDir(t, 2, 2)
	mkdirs(t, root, "x", "3", "1.5", "1", "-2", "b")
	tokensEq(t, root.DirNames(), "-2 1 3 1.5 b x")
}

func TestRemove(t *testing.T) {
	root := setupDir(t, 2, 2)
	mkdirs(t, root, "a b c", "a d")
	set(t, root, "a b c", "k", "1")

	if root.Remove(nil) {
		t.Fatalf("Remove(nil) = true, wanted false")
	}
	if root.Remove(ParsePath("a x")) {
		t.Fatalf("Remove(a x) = true, wanted false")
	}
	abc := root.Lookup(ParsePath("a b c"))
	if !root.Remove(ParsePath("a b")) {
		t.Fatalf("Remove(a b) = false, wanted true")
	}
	isnil(t, root.Lookup(ParsePath("a b")))
	deepEqual(t, abc.Ident(), uint64(0))
	deepEqual(t, root.Lookup(ParsePath("a")).CountDirs(), 1)
	deepEqual(t, root.arena.live, 3)
}

func TestDetach(t *testing.T) {
	root := setupDir(t, 2, 2)
	set(t, root, "a b", "k", "v")
	det := root.Detach(ParsePath("a b"))
	isnonnil(t, det)
	d := det.Dir()
	isnil(t, d.Parent())
	if d.Ident() == 0 {
		t.Fatalf("detached directory was invalidated")
	}
	deepEqual(t, root.Lookup(ParsePath("a")).CountDirs(), 0)
	v, _ := d.Get(Sym("k"))
	tokensEq(t, v, "v")
	det.Free()
	deepEqual(t, d.Ident(), uint64(0))
	isnil(t, det.Dir())
	det.Free()
}

func TestWalkDepth(t *testing.T) {
	root := setupDir(t, 2, 2)
	mkdirs(t, root, "a b c d", "x")
	visit := func(depth int) int {
		var maxLevel int
		root.Walk(depth, func(path Path, dir *Dir) bool {
			maxLevel = max(maxLevel, len(path))
			if depth >= 0 && len(path) > depth {
				t.Errorf("Walk(%d) visited %v", depth, path)
			}
			return true
		})
		return maxLevel
	}
	deepEqual(t, visit(0), 0)
	deepEqual(t, visit(1), 1)
	deepEqual(t, visit(3), 3)
	deepEqual(t, visit(-1), 4)

	var n int
	root.Walk(-1, func(path Path, dir *Dir) bool {
		n++
		return len(path) == 0
	})
	deepEqual(t, n, 3)
}

func TestClear(t *testing.T) {
	root := setupDir(t, 2, 2)
	set(t, root, "", "k", "1")
	set(t, root, "a", "k", "2")

	root.Clear(true, true)
	deepEqual(t, root.CountDirs(), 0)
	deepEqual(t, root.CountEntries(), 1)

	set(t, root, "a", "k", "2")
	root.Clear(false, false)
	deepEqual(t, root.CountDirs(), 1)
	deepEqual(t, root.CountEntries(), 0)

	root.Clear(true, false)
	deepEqual(t, root.CountDirs(), 0)
	deepEqual(t, root.arena.live, 1)
}

// Counts stay exact under a mixed sequence of mutations.
func TestCountsUnderChurn(t *testing.T) {
	root := setupDir(t, 3, 2)
	want := make(map[int64]bool)
	wantDirs := make(map[int64]bool)
	for i := range int64(300) {
		k := (i * 37) % 53
		switch i % 5 {
		case 0, 1:
			root.Set(Int(k), Values{Int(i)}, true)
			want[k] = true
		case 2:
			root.Unset(Int(k))
			delete(want, k)
		case 3:
			root.Mkdir(Path{Int(k % 11)}, SizeHint{})
			wantDirs[k%11] = true
		case 4:
			root.Remove(Path{Int(k % 11)})
			delete(wantDirs, k%11)
		}
		if root.CountEntries() != len(want) || root.CountDirs() != len(wantDirs) {
			t.Fatalf("step %d: counts %d/%d, wanted %d/%d", i, root.CountEntries(), root.CountDirs(), len(want), len(wantDirs))
		}
	}
}
