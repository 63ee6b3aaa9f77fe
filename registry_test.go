package pool

import (
	"sync"
	"testing"
)

func TestRegistrySharedLifetime(t *testing.T) {
	r := NewRegistry(Options{Logger: testLogger(t)})

	p1 := r.Acquire("shared")
	p2 := r.Acquire("shared")
	if p1 != p2 {
		t.Fatalf("Acquire returned two different pools for one name")
	}
	deepEqual(t, p1.Refs(), 2)
	deepEqual(t, p1.Shared(), true)
	deepEqual(t, p1.Name(), "shared")

	must(p1.MkDir(NewHandle(ParsePath("a")), SizeHint{}))
	ensure(p1.Set(NewHandle(ParsePath("a")), Int(1), ParseValues("x"), true))
	tokensEq(t, must(p2.Get(NewHandle(ParsePath("a")), Int(1))), "x")

	deepEqual(t, r.Release(p1), true)
	deepEqual(t, p2.Refs(), 1)
	deepEqual(t, p2.Closed(), false)
	tokensEq(t, must(p2.Get(NewHandle(ParsePath("a")), Int(1))), "x")
	if r.Lookup("shared") != p2 {
		t.Fatalf("Lookup lost a live pool")
	}

	p2.Close()
	deepEqual(t, p2.Closed(), true)
	isnil(t, r.Lookup("shared"))
	deepEqual(t, r.Len(), 0)

	// a released pool is not released twice
	deepEqual(t, r.Release(p2), false)

	p3 := r.Acquire("shared")
	defer p3.Close()
	if p3 == p1 {
		t.Fatalf("Acquire after the last release returned the destroyed pool")
	}
	deepEqual(t, p3.Refs(), 1)
	deepEqual(t, must(p3.Count(nil)), 0)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(Options{Logger: testLogger(t)})
	for _, name := range []string{"b", "a", "c", "a"} {
		r.Acquire(name)
	}
	deepEqual(t, r.Names(), []string{"a", "b", "c"})
	deepEqual(t, r.Len(), 3)
	deepEqual(t, r.Lookup("a").Refs(), 2)

	other := NewRegistry(Options{})
	deepEqual(t, other.Release(r.Lookup("a")), false)
	deepEqual(t, r.Lookup("a").Refs(), 2)

	priv := New(Options{Logger: testLogger(t)})
	deepEqual(t, r.Release(priv), false)
	priv.Close()
}

func TestRegistryConcurrentAcquire(t *testing.T) {
	r := NewRegistry(Options{Logger: testLogger(t)})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Acquire("x")
		}()
	}
	wg.Wait()
	p := r.Lookup("x")
	deepEqual(t, p.Refs(), 8)
	for range 8 {
		p.Close()
	}
	deepEqual(t, r.Len(), 0)
}
