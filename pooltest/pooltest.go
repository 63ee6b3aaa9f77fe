package pooltest

import (
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/andreyvit/pool"
)

// New returns a private pool that logs into t and is closed on cleanup.
func New(t testing.TB, o pool.Options) *pool.Pool {
	o.Logger = Logger(t)
	o.Verbose = true
	p := pool.New(o)
	t.Cleanup(p.Close)
	return p
}

// Registry returns a registry whose pools log into t.
func Registry(t testing.TB, o pool.Options) *pool.Registry {
	o.Logger = Logger(t)
	o.Verbose = true
	return pool.NewRegistry(o)
}

func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

// TempFile returns a path to a not yet existing file in a per-test directory.
func TempFile(t testing.TB, name string) string {
	return filepath.Join(t.TempDir(), name)
}

// P parses a whitespace-separated path, e.g. P("a b 1").
func P(s string) pool.Path { return pool.ParsePath(s) }

// V parses whitespace-separated values, e.g. V("1 2.5 x").
func V(s string) pool.Values { return pool.ParseValues(s) }

// H returns a handle for a whitespace-separated path.
func H(s string) *pool.Handle { return pool.NewHandle(P(s)) }

// Triples renders every entry below d as "path , key , values", and every
// empty leaf directory as "path , ,", sorted. Two trees with the same
// content produce the same triples whatever their bucket layout. A token
// that would re-read as another kind is tagged with its own, e.g.
// "symbol(1)", so a kind change shows up as a difference.
func Triples(d *pool.Dir) []string {
	var out []string
	d.Walk(-1, func(path pool.Path, dir *pool.Dir) bool {
		var n int
		for k, v := range dir.All() {
			out = append(out, Text(path...)+" , "+Text(k)+" , "+Text(v...))
			n++
		}
		if n == 0 && len(path) > 0 && dir.CountDirs() == 0 {
			out = append(out, Text(path...)+" , ,")
		}
		return true
	})
	slices.Sort(out)
	return out
}

// Text joins tokens with spaces the way Triples renders them.
func Text(ts ...pool.Token) string {
	var buf strings.Builder
	for i, t := range ts {
		if i > 0 {
			buf.WriteByte(' ')
		}
		s := t.String()
		if pool.ParseToken(s).Kind() != t.Kind() {
			s = t.Kind().String() + "(" + s + ")"
		}
		buf.WriteString(s)
	}
	return buf.String()
}

// TriplesEq fails the test unless a and e hold the same triples.
func TriplesEq(t testing.TB, a, e []string) bool {
	if !slices.Equal(a, e) {
		t.Helper()
		t.Errorf("** got:\n\t%s\nwanted:\n\t%s", strings.Join(a, "\n\t"), strings.Join(e, "\n\t"))
		return false
	}
	return true
}
