package pool

import (
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil %T, wanted non-nil", a)
	}
}

func tokensEq[S ~[]Token](t testing.TB, a S, e string) {
	if s := tokensString(a); s != e {
		t.Helper()
		t.Errorf("** got %q, wanted %q", s, e)
	}
}

// setupDir returns an empty directory of a fresh arena with the given table
// bits, freed on cleanup.
func setupDir(t testing.TB, vbits, dbits int) *Dir {
	d := newDir(newArena(), Token{}, dirRef{}, vbits, dbits)
	t.Cleanup(func() { free(d) })
	return d
}

func setupPool(t testing.TB) *Pool {
	p := New(Options{Verbose: true, Logger: testLogger(t)})
	t.Cleanup(p.Close)
	return p
}

func testLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testLogWriter struct{ t testing.TB }

func (w testLogWriter) Write(buf []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(buf), "\n"))
	return len(buf), nil
}

func mkdirs(t testing.TB, d *Dir, paths ...string) {
	for _, s := range paths {
		if d.Mkdir(ParsePath(s), SizeHint{}) == nil {
			t.Helper()
			t.Fatalf("Mkdir(%q) = nil", s)
		}
	}
}

func set(t testing.TB, d *Dir, path, key, vals string) {
	dd := d.Mkdir(ParsePath(path), SizeHint{})
	if dd == nil || !dd.Set(ParseToken(key), ParseValues(vals), true) {
		t.Helper()
		t.Fatalf("set(%q, %q) failed", path, key)
	}
}

// triples renders a tree the way pooltest.Triples does, for in-package
// tests.
func triples(d *Dir) []string {
	var out []string
	d.Walk(-1, func(path Path, dir *Dir) bool {
		keys, vals := dir.Entries(false)
		for i, k := range keys {
			out = append(out, tripleText(path)+" , "+tripleText([]Token{k})+" , "+tripleText(vals[i]))
		}
		if len(keys) == 0 && len(path) > 0 && dir.CountDirs() == 0 {
			out = append(out, tripleText(path)+" , ,")
		}
		return true
	})
	slices.Sort(out)
	return out
}

// tripleText joins tokens with spaces, tagging those that would re-read as
// another kind, e.g. "symbol(1)".
func tripleText[S ~[]Token](ts S) string {
	var buf strings.Builder
	for i, t := range ts {
		if i > 0 {
			buf.WriteByte(' ')
		}
		s := t.String()
		if ParseToken(s).Kind() != t.Kind() {
			s = t.Kind().String() + "(" + s + ")"
		}
		buf.WriteString(s)
	}
	return buf.String()
}
