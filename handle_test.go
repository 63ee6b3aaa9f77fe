package pool

import (
	"errors"
	"testing"
)

func TestHandleCachesUntilRemoved(t *testing.T) {
	p := setupPool(t)
	h := NewHandle(ParsePath("a b"))
	defer h.Close()

	d := must(p.MkDir(h, SizeHint{}))
	if !h.Cached() {
		t.Fatalf("MkDir did not bind the handle")
	}
	if h.Resolve(p.root) != d {
		t.Fatalf("Resolve returned a different directory")
	}
	deepEqual(t, p.arena.live, 3)

	ensure(p.RmDir(NewHandle(ParsePath("a"))))
	if h.Cached() {
		t.Fatalf("handle still cached after its directory was removed")
	}
	// a is gone, b is only kept allocated by the handle
	deepEqual(t, p.arena.live, 2)

	isnil(t, h.Resolve(p.root))
	deepEqual(t, p.arena.live, 1)
	err := p.Set(h, Sym("k"), nil, true)
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("Set on a removed path = %v, wanted ErrPathNotFound", err)
	}

	d2 := must(p.MkDir(NewHandle(ParsePath("a b")), SizeHint{}))
	if h.Resolve(p.root) != d2 {
		t.Fatalf("Resolve did not find the recreated directory")
	}
	if d2.Ident() == d.ref.ident {
		t.Fatalf("recreated directory reused ident %d", d2.Ident())
	}
}

func TestHandlePathChangesDropCache(t *testing.T) {
	p := setupPool(t)
	must(p.MkDir(NewHandle(ParsePath("a b c")), SizeHint{}))

	h := NewHandle(ParsePath("a b c"))
	defer h.Close()
	isnonnil(t, h.Resolve(p.root))

	deepEqual(t, h.Up(1), true)
	deepEqual(t, h.Cached(), false)
	tokensEq(t, h.Path(), "a b")

	h.Resolve(p.root)
	h.Append(Sym("c"), Sym("d"))
	deepEqual(t, h.Cached(), false)
	tokensEq(t, h.Path(), "a b c d")
	isnil(t, h.Resolve(p.root))

	h.Truncate(1)
	tokensEq(t, h.Path(), "a")
	deepEqual(t, h.Depth(), 1)
	isnonnil(t, h.Resolve(p.root))

	h.SetPath(ParsePath("a b"))
	deepEqual(t, h.Cached(), false)

	deepEqual(t, h.Up(-1), true)
	tokensEq(t, h.Path(), "a b")

	deepEqual(t, h.Up(5), false)
	deepEqual(t, h.Depth(), 0)
	if h.Resolve(p.root) != p.root {
		t.Fatalf("empty path did not resolve to the root")
	}
	deepEqual(t, h.String(), "")
}

func TestHandleOwnsItsPath(t *testing.T) {
	path := ParsePath("a b")
	h := NewHandle(path)
	path[0] = Sym("z")
	tokensEq(t, h.Path(), "a b")

	got := h.Path()
	got[0] = Sym("z")
	tokensEq(t, h.Path(), "a b")

	c := h.Clone()
	c.Append(Sym("c"))
	tokensEq(t, h.Path(), "a b")
	tokensEq(t, c.Path(), "a b c")
}

func TestHandleAcrossPools(t *testing.T) {
	p1, p2 := setupPool(t), setupPool(t)
	d1 := must(p1.MkDir(NewHandle(ParsePath("x")), SizeHint{}))
	d2 := must(p2.MkDir(NewHandle(ParsePath("x")), SizeHint{}))

	h := NewHandle(ParsePath("x"))
	defer h.Close()
	if h.Resolve(p1.root) != d1 || h.Resolve(p2.root) != d2 || h.Resolve(p1.root) != d1 {
		t.Fatalf("handle mixed up directories of different pools")
	}
}

func TestZeroHandleIsRoot(t *testing.T) {
	p := setupPool(t)
	var h Handle
	defer h.Close()
	ensure(p.Set(&h, Int(1), ParseValues("x"), true))
	v := must(p.Get(nil, Int(1)))
	tokensEq(t, v, "x")
}

func TestHandleKeepsPoolMemoryAfterClose(t *testing.T) {
	p := New(Options{Logger: testLogger(t)})
	h := NewHandle(ParsePath("a"))
	must(p.MkDir(h, SizeHint{}))
	p.Close()
	deepEqual(t, p.Closed(), true)
	deepEqual(t, p.arena.live, 1)
	h.Close()
	deepEqual(t, p.arena.live, 0)

	_, err := p.Count(h)
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Count on a closed pool = %v, wanted ErrPoolClosed", err)
	}
}
