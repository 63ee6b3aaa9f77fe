package pool

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpEntries
	DumpStats
	DumpBuckets

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders d and its subdirectories down to depth levels as indented
// text. Entries are listed in key order and subdirectories in name order, so
// the output is stable.
func (d *Dir) Dump(depth int, f DumpFlags) string {
	var buf strings.Builder
	if f.Contains(DumpHeaders) {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "/%s (%d entries, %d dirs)\n", d.Path(), d.CountEntries(), d.CountDirs())
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(&buf, "stats: %v\n", d.Stats(depth))
		if f.Contains(DumpHeaders) {
			fmt.Fprintln(&buf, dumpSep2)
		}
	}
	d.dump(&buf, "", depth, f)
	return buf.String()
}

func (d *Dir) dump(w *strings.Builder, prefix string, depth int, f DumpFlags) {
	if f.Contains(DumpBuckets) {
		fmt.Fprintf(w, "%s# buckets: entries %s, dirs %s\n", prefix, bucketCounts(d.vals, func(b entryBucket) int { return b.cnt }), bucketCounts(d.dirs, func(b dirBucket) int { return b.cnt }))
	}
	if f.Contains(DumpEntries) {
		keys, vals := d.Entries(false)
		for i, k := range keys {
			fmt.Fprintf(w, "%s%v = %v\n", prefix, k, vals[i])
		}
	}
	if depth == 0 {
		return
	}
	for _, name := range d.DirNames() {
		fmt.Fprintf(w, "%s%v/\n", prefix, name)
		d.Lookup(Path{name}).dump(w, prefix+indentStep, nextDepth(depth), f)
	}
}

// bucketCounts renders the chain lengths of a bucket table, collapsing runs
// of empty buckets, e.g. "[1 0x5 2 0x25]".
func bucketCounts[B any](buckets []B, cnt func(B) int) string {
	var buf strings.Builder
	buf.WriteByte('[')
	var empty int
	flush := func() {
		if empty > 0 {
			if buf.Len() > 1 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "0x%d", empty)
			empty = 0
		}
	}
	for _, b := range buckets {
		n := cnt(b)
		if n == 0 {
			empty++
			continue
		}
		flush()
		if buf.Len() > 1 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%d", n)
	}
	flush()
	buf.WriteByte(']')
	return buf.String()
}

func (p *Pool) Dump(h *Handle, depth int, f DumpFlags) (string, error) {
	d, err := p.dir(h)
	if err != nil {
		return "", err
	}
	return d.Dump(depth, f), nil
}
