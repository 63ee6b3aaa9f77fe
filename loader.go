package pool

import (
	"context"
	"log/slog"
	"os"
)

// loader applies records read from a file to a directory tree, counting what
// happened to each and logging the ones it had to drop.
type loader struct {
	dst   *Dir
	depth int
	mkdir bool

	file    string
	logger  *slog.Logger
	context context.Context
	stats   LoadStats
}

func (p *Pool) newLoader(dst *Dir, file string, depth int, mkdir bool) *loader {
	return &loader{
		dst:     dst,
		depth:   depth,
		mkdir:   mkdir,
		file:    file,
		logger:  p.logger,
		context: p.context,
	}
}

// target returns the directory a record at path applies to, or nil if the
// record is to be dropped.
func (l *loader) target(path Path) *Dir {
	var d *Dir
	if l.mkdir {
		d = l.dst.Mkdir(path, SizeHint{})
		if d == nil {
			l.malformed(slog.String("path", path.String()), slog.String("reason", "invalid directory name"))
			return nil
		}
	} else {
		d = l.dst.Lookup(path)
		if d == nil {
			l.stats.Missing++
			l.logger.LogAttrs(l.context, slog.LevelDebug, "pool: directory not found", slog.String("file", l.file), slog.String("path", path.String()))
			return nil
		}
	}
	return d
}

func (l *loader) set(path Path, key Token, vals Values) {
	d := l.target(path)
	if d == nil {
		return
	}
	if !d.Set(key, vals, true) {
		l.malformed(slog.String("path", path.String()), slog.String("reason", "invalid key"))
		return
	}
	l.stats.Records++
}

// apply replays a decoded tree as records: one per entry, plus one for each
// directory below src that has no entries.
func (l *loader) apply(src *Dir) {
	src.Walk(l.depth, func(rel Path, dir *Dir) bool {
		if dir.CountEntries() == 0 {
			if len(rel) > 0 && l.target(rel) != nil {
				l.stats.Records++
			}
			return true
		}
		for k, v := range dir.All() {
			l.set(rel, k, v)
		}
		return true
	})
}

func (l *loader) malformed(attrs ...slog.Attr) {
	l.stats.Skipped++
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String("file", l.file))
	all = append(all, attrs...)
	l.logger.LogAttrs(l.context, slog.LevelWarn, "pool: malformed record", all...)
}

func (l *loader) done(format string) {
	l.logger.LogAttrs(l.context, slog.LevelDebug, "pool: loaded",
		slog.String("file", l.file),
		slog.String("format", format),
		slog.Int("records", l.stats.Records),
		slog.Int("skipped", l.stats.Skipped),
		slog.Int("missing", l.stats.Missing))
}

// savePrefix returns the path written in front of every record: the
// handle's own path with absdir, nothing otherwise.
func savePrefix(h *Handle, absdir bool) Path {
	if !absdir || h == nil {
		return nil
	}
	return h.path.Clone()
}

// createFile opens file for writing. The returned commit func must be called
// once everything has been written; until then the file is removed on
// cleanup.
func createFile(op, file string) (f *os.File, cleanup func(), commit func() error, err error) {
	f, err = os.Create(file)
	if err != nil {
		return nil, nil, nil, streamErr(op, file, err)
	}
	var ok bool
	cleanup = func() { closeAndDeleteUnlessOK(f, &ok) }
	commit = func() error {
		if err := f.Close(); err != nil {
			return streamErr(op, file, err)
		}
		ok = true
		return nil
	}
	return f, cleanup, commit, nil
}
