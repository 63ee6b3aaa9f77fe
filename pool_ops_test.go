package pool

import (
	"errors"
	"testing"
)

func TestPoolScenario(t *testing.T) {
	p := setupPool(t)
	ab := NewHandle(ParsePath("a b"))
	defer ab.Close()

	must(p.MkDir(ab, SizeHint{}))
	ensure(p.Set(ab, Sym("x"), ParseValues("1 2 3"), true))

	keys, vals := must2(p.Entries(ab, false))
	deepEqual(t, len(keys), 1)
	deepEqual(t, keys[0], Sym("x"))
	tokensEq(t, vals[0], "1 2 3")

	deepEqual(t, must(p.CountDirs(NewHandle(ParsePath("a")))), 1)

	ensure(p.RmDir(NewHandle(ParsePath("a b"))))
	deepEqual(t, p.HasDir(ab), false)
	isnil(t, p.Root().Lookup(ParsePath("a b")))
}

func TestPoolErrors(t *testing.T) {
	p := setupPool(t)
	missing := NewHandle(ParsePath("nope"))

	tests := []struct {
		name string
		err  error
		e    error
	}{
		{"Set missing dir", p.Set(missing, Int(1), nil, true), ErrPathNotFound},
		{"Set null key", p.Set(nil, Token{}, nil, true), ErrInvalidKey},
		{"Unset missing key", p.Unset(nil, Int(1)), ErrKeyNotFound},
		{"Unset null key", p.Unset(nil, Token{}), ErrInvalidKey},
		{"RmDir root", p.RmDir(NewHandle(nil)), ErrRootRemoval},
		{"RmDir nil", p.RmDir(nil), ErrRootRemoval},
		{"RmDir missing", p.RmDir(missing), ErrPathNotFound},
		{"SetAt out of range", p.SetAt(nil, 0, nil), ErrIndexOutOfRange},
		{"UnsetAt out of range", p.UnsetAt(nil, 0), ErrIndexOutOfRange},
		{"ClearAll missing", p.ClearAll(missing, true, false), ErrPathNotFound},
		{"Walk missing", p.Walk(missing, -1, nil), ErrPathNotFound},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.e) {
			t.Errorf("%s = %v, wanted %v", tt.name, tt.err, tt.e)
		}
	}

	_, err := p.Get(nil, Sym("k"))
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get missing = %v, wanted ErrKeyNotFound", err)
	}
	_, err = p.Peek(missing, Sym("k"))
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("Peek in missing dir = %v, wanted ErrPathNotFound", err)
	}
	_, _, err = p.EntryAt(nil, 0)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("EntryAt(0) of empty root = %v, wanted ErrIndexOutOfRange", err)
	}
	_, err = p.MkDir(NewHandle(Path{Sym("a"), {}}), SizeHint{})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("MkDir with a null segment = %v, wanted ErrInvalidKey", err)
	}
	_, err = p.Copy(nil, Sym("k"), false)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Copy missing = %v, wanted ErrKeyNotFound", err)
	}

	var pe *PathError
	if !errors.As(p.Set(missing, Int(1), nil, true), &pe) {
		t.Fatalf("Set error is not a *PathError")
	}
	tokensEq(t, pe.Path, "nope")
}

func TestPoolEntryOps(t *testing.T) {
	p := setupPool(t)
	h := NewHandle(ParsePath("d"))
	defer h.Close()
	must(p.MkDir(h, SizeHint{Entries: 4}))

	for i := range int64(5) {
		ensure(p.Set(h, Int(i), Values{Sym("v")}, true))
	}
	deepEqual(t, must(p.Count(h)), 5)
	tokensEq(t, must(p.Keys(h)), "0 1 2 3 4")

	ensure(p.Unset(h, Int(4)))
	v := must(p.Cut(h, Int(3)))
	tokensEq(t, v, "v")
	deepEqual(t, must(p.Count(h)), 3)

	k, _, err := p.EntryAt(h, 0)
	ensure(err)
	ensure(p.SetAt(h, 0, ParseValues("first")))
	tokensEq(t, must(p.Peek(h, k)), "first")
	ensure(p.UnsetAt(h, 0))
	deepEqual(t, must(p.Count(h)), 2)

	keys, _ := must2(p.Entries(h, true))
	deepEqual(t, len(keys), 2)
	deepEqual(t, must(p.Count(h)), 0)
}

func TestPoolClearAllAndReset(t *testing.T) {
	p := setupPool(t)
	root := p.Root()
	set(t, root, "", "k", "1")
	set(t, root, "a", "k", "2")
	set(t, root, "a b", "k", "3")

	a := NewHandle(ParsePath("a"))
	ensure(p.ClearAll(a, true, true))
	deepEqual(t, triples(root), []string{" , k , 1", "a , k , 2"})

	ensure(p.ClearAll(a, false, false))
	deepEqual(t, triples(root), []string{" , k , 1", "a , ,"})
	a.Close()

	tokensEq(t, must(p.DirNames(nil)), "a")
	p.Reset()
	deepEqual(t, triples(root), []string(nil))
	deepEqual(t, p.arena.live, 1)
}

func TestPoolCursorOps(t *testing.T) {
	p := setupPool(t)
	set(t, p.Root(), "", "a", "1")
	set(t, p.Root(), "", "b", "2")
	set(t, p.Root(), "sub", "c", "3")

	c := NewCursor(nil, false)
	defer c.Close()
	var n int
	for p.Next(c) {
		k, _ := must2(p.CursorEntry(c))
		ensure(p.SetAtCursor(c, Values{k}))
		n++
	}
	deepEqual(t, n, 2)
	tokensEq(t, must(p.Get(nil, Sym("a"))), "a")
	tokensEq(t, must(p.Get(nil, Sym("b"))), "b")

	if err := p.SetAtCursor(c, nil); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("SetAtCursor past the end = %v, wanted ErrIndexOutOfRange", err)
	}
	deepEqual(t, p.Prev(c), false)
	c.Reset(false)
	deepEqual(t, p.Prev(c), true)
	ensure(p.UnsetAtCursor(c))
	deepEqual(t, must(p.Count(nil)), 1)
	if err := p.UnsetAtCursor(c); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("second UnsetAtCursor = %v, wanted ErrIndexOutOfRange", err)
	}

	dc := NewCursor(nil, true)
	defer dc.Close()
	deepEqual(t, p.Next(dc), true)
	deepEqual(t, must(p.CursorDir(dc)), Sym("sub"))
	deepEqual(t, p.Next(dc), false)
	_, err := p.CursorDir(dc)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("CursorDir past the end = %v, wanted ErrIndexOutOfRange", err)
	}
}

func TestPoolClipboard(t *testing.T) {
	p := setupPool(t)
	set(t, p.Root(), "src", "k", "1")
	set(t, p.Root(), "src x", "j", "2")
	src := NewHandle(ParsePath("src"))
	defer src.Close()

	clip := must(p.CopyAll(src, -1, true))
	defer clip.Free()
	deepEqual(t, must(p.Count(src)), 0)

	dst := NewHandle(ParsePath("dst"))
	defer dst.Close()
	must(p.MkDir(dst, SizeHint{}))
	ensure(p.Paste(dst, clip, -1, false, true))
	deepEqual(t, triples(p.Root().Lookup(ParsePath("dst"))), []string{" , k , 1", "x , j , 2"})

	other := NewHandle(ParsePath("other"))
	defer other.Close()
	must(p.MkDir(other, SizeHint{}))
	err := p.Paste(other, clip, -1, false, false)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Paste without mkdir = %v, wanted ErrIncomplete", err)
	}
	tokensEq(t, must(p.Get(other, Sym("k"))), "1")

	one := must(p.Copy(dst, Sym("k"), true))
	defer one.Free()
	deepEqual(t, must(p.Count(dst)), 0)
	ensure(p.Paste(nil, one, 0, true, false))
	tokensEq(t, must(p.Get(nil, Sym("k"))), "1")

	ensure(p.Paste(nil, nil, -1, true, true))
}

func TestPoolWalk(t *testing.T) {
	p := setupPool(t)
	mkdirs(t, p.Root(), "a b c", "x")
	var paths []string
	ensure(p.Walk(NewHandle(ParsePath("a")), 1, func(path Path, dir *Dir) bool {
		paths = append(paths, path.String())
		return true
	}))
	deepEqual(t, paths, []string{"", "b"})
}

func TestPoolIdentity(t *testing.T) {
	p := setupPool(t)
	deepEqual(t, p.Name(), "")
	deepEqual(t, p.Shared(), false)
	deepEqual(t, p.Refs(), 1)
	deepEqual(t, p.String(), p.ID().String())

	q := New(Options{EntrySlots: 1000, DirSlots: 2})
	defer q.Close()
	deepEqual(t, q.Root().EntrySlots(), 1024)
	deepEqual(t, q.Root().DirSlots(), 4)
	if q.ID() == p.ID() {
		t.Fatalf("two pools share an ID")
	}
}
