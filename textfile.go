package pool

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// WriteText writes d and its subdirectories down to depth levels as text
// records, one entry per line:
//
//	path tokens , key , value tokens
//
// Every path is prefix followed by the directory's path relative to d. A
// directory without entries and with a non-empty path is written as a single
// "path , ," line so that it is recreated on load, even when a depth-limited
// load drops everything below it. Pointer tokens are left out.
func (d *Dir) WriteText(w io.Writer, depth int, prefix Path) error {
	bw := bufio.NewWriter(w)
	d.Walk(depth, func(rel Path, dir *Dir) bool {
		if !rel.persistable() {
			return false
		}
		path := prefix.Append(rel...)
		var n int
		for k, v := range dir.All() {
			if !k.persistable() {
				continue
			}
			writeTextLine(bw, path, k.String(), persistableTokens(v))
			n++
		}
		if n == 0 && len(path) > 0 {
			bw.WriteString(path.String())
			bw.WriteString(" , ,\n")
		}
		return true
	})
	return bw.Flush()
}

func writeTextLine(w *bufio.Writer, path Path, key string, vals []Token) {
	w.WriteString(path.String())
	w.WriteString(" , ")
	w.WriteString(key)
	w.WriteString(" , ")
	w.WriteString(tokensString(vals))
	w.WriteByte('\n')
}

func (l *loader) readText(r io.Reader) error {
	br := bufio.NewReader(r)
	for lineno := 1; ; lineno++ {
		line, err := br.ReadString('\n')
		if line != "" {
			l.textLine(lineno, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (l *loader) textLine(lineno int, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 3 {
		l.malformed(slog.Int("line", lineno), slog.String("reason", "expected path, key and values"))
		return
	}
	path := ParsePath(fields[0])
	if !within(l.depth, len(path)) {
		return
	}
	key := parseTokens(fields[1])
	d := l.target(path)
	if d == nil {
		return
	}
	switch len(key) {
	case 0:
		l.stats.Records++
	case 1:
		if !d.Set(key[0], ParseValues(fields[2]), true) {
			l.malformed(slog.Int("line", lineno), slog.String("reason", "invalid key"))
			return
		}
		l.stats.Records++
	default:
		l.malformed(slog.Int("line", lineno), slog.String("reason", "key must be a single word"))
	}
}

// ReadText loads text records into d; see WriteText. Only records at most
// depth levels below d are applied. Directories named by records are created
// if mkdir is set; otherwise records for missing directories are dropped.
func (d *Dir) ReadText(r io.Reader, depth int, mkdir bool, logger *slog.Logger) (LoadStats, error) {
	l := &loader{dst: d, depth: depth, mkdir: mkdir, logger: logger, context: context.Background()}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	err := l.readText(r)
	return l.stats, err
}

// SaveText writes the handle's directory and its subdirectories down to
// depth levels to file in the text format. With absdir the records carry the
// handle's path in front of their own.
func (p *Pool) SaveText(h *Handle, file string, depth int, absdir bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	f, cleanup, commit, err := createFile("save", file)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := d.WriteText(f, depth, savePrefix(h, absdir)); err != nil {
		return streamErr("save", file, err)
	}
	return commit()
}

// LoadText reads a text file into the handle's directory. Malformed lines
// are logged and counted, not returned as errors.
func (p *Pool) LoadText(h *Handle, file string, depth int, mkdir bool) (LoadStats, error) {
	d, err := p.dir(h)
	if err != nil {
		return LoadStats{}, err
	}
	f, err := os.Open(file)
	if err != nil {
		return LoadStats{}, streamErr("load", file, err)
	}
	defer f.Close()

	l := p.newLoader(d, file, depth, mkdir)
	err = l.readText(f)
	l.done("text")
	return l.stats, streamErr("load", file, err)
}
