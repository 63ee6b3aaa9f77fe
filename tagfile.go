package pool

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	tagFileHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE pool>\n<pool>\n"
	tagFileFooter = "</pool>\n"
)

// WriteTags writes d and its subdirectories down to depth levels in the
// nested tag format:
//
//	<pool>
//	<dir>
//		<key>a</key>
//		<value><key>x</key><data>1 2 3</data></value>
//		<dir>
//			<key>b</key>
//			...
//		</dir>
//	</dir>
//	</pool>
//
// Entries of a directory come before its subdirectories. The path of d is
// given by prefix; all of its segments are opened at the top level.
func (d *Dir) WriteTags(w io.Writer, depth int, prefix Path) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(tagFileHeader)
	writeTagDir(bw, d, depth, prefix, 0)
	bw.WriteString(tagFileFooter)
	return bw.Flush()
}

func writeTagDir(w *bufio.Writer, d *Dir, depth int, path Path, ind int) {
	lvls := len(path)
	if ind > 0 {
		lvls = min(lvls, 1)
	}
	base := len(path) - lvls
	for i := range lvls {
		indent(w, ind+i)
		w.WriteString("<dir>\n")
		indent(w, ind+i+1)
		w.WriteString("<key>")
		tagEscaper.WriteString(w, path[base+i].String())
		w.WriteString("</key>\n")
	}

	for k, v := range d.All() {
		if !k.persistable() {
			continue
		}
		indent(w, ind+lvls)
		w.WriteString("<value><key>")
		tagEscaper.WriteString(w, k.String())
		w.WriteString("</key><data>")
		tagEscaper.WriteString(w, tokensString(persistableTokens(v)))
		w.WriteString("</data></value>\n")
	}

	if depth != 0 {
		for c := range d.Subdirs() {
			if !c.name.persistable() {
				continue
			}
			writeTagDir(w, c, nextDepth(depth), path.Append(c.name), ind+lvls)
		}
	}

	for i := lvls - 1; i >= 0; i-- {
		indent(w, ind+i)
		w.WriteString("</dir>\n")
	}
}

func indent(w *bufio.Writer, n int) {
	for range n {
		w.WriteByte('\t')
	}
}

func (l *loader) readTags(r io.Reader) error {
	s := newTagScanner(r)
	s.skipLine()
	for !s.eof() {
		t, ok := s.next()
		if !ok {
			if text := strings.TrimSpace(s.text()); text != "" {
				l.malformed(slog.String("reason", "text outside of <pool>"))
			}
			continue
		}
		switch {
		case t.is("pool", tagStart):
			l.readTagDir(s, nil)
		case t.name == "pool":
			l.malformed(slog.String("tag", t.name), slog.String("reason", "unexpected end of pool"))
		case t.name == "!DOCTYPE", t.name == "?xml":
		default:
			l.logger.LogAttrs(l.context, slog.LevelDebug, "pool: unknown tag", slog.String("file", l.file), slog.String("tag", t.name))
		}
	}
	return s.Err()
}

// readTagDir consumes the contents of one directory element, up to and
// including its end tag. Path segments whose key has not been read yet are
// null.
func (l *loader) readTagDir(s *tagScanner, path Path) {
	var (
		key, data         []Token
		haveKey, haveData bool
		inValue, inKey    bool
		inData            bool
		values            int
	)
	for !s.eof() {
		t, ok := s.next()
		if !ok {
			text := s.text()
			if text == "" {
				continue
			}
			switch {
			case inValue && inData:
				if haveData {
					l.malformed(slog.String("tag", "data"), slog.String("reason", "value data given twice"))
				} else {
					data, haveData = parseTokens(tagUnescaper.Replace(text)), true
				}
			case inValue && inKey:
				if haveKey {
					l.malformed(slog.String("tag", "key"), slog.String("reason", "value key given twice"))
				} else {
					key, haveKey = parseTokens(tagUnescaper.Replace(text)), true
				}
			case inKey && len(path) > 0:
				if !path[len(path)-1].IsNull() {
					l.malformed(slog.String("tag", "key"), slog.String("reason", "directory key given twice"))
				} else {
					path[len(path)-1] = ParseToken(strings.TrimSpace(tagUnescaper.Replace(text)))
				}
			default:
				if strings.TrimSpace(text) != "" {
					l.malformed(slog.String("reason", "unexpected text"), slog.String("text", text))
				}
			}
			continue
		}

		switch t.name {
		case "dir":
			switch t.kind {
			case tagStart:
				if len(path) > 0 && path[len(path)-1].IsNull() {
					l.malformed(slog.String("tag", t.name), slog.String("reason", "directory key must precede subdirectories"))
				}
				l.readTagDir(s, path.Append(Token{}))
			case tagEnd:
				if values == 0 && path.valid() && within(l.depth, len(path)) {
					if l.target(path) != nil {
						l.stats.Records++
					}
				}
				return
			}
		case "value":
			switch t.kind {
			case tagStart:
				inValue = true
				values++
				key, data, haveKey, haveData = nil, nil, false, false
			case tagEnd:
				inValue = false
				if !within(l.depth, len(path)) {
					break
				}
				if !path.valid() {
					if path[len(path)-1].IsNull() {
						l.malformed(slog.String("tag", t.name), slog.String("reason", "directory key must precede values"))
					} else {
						l.stats.Skipped++
					}
					break
				}
				if len(key) != 1 {
					l.malformed(slog.String("tag", t.name), slog.String("path", path.String()), slog.String("reason", "value key must be exactly one word"))
					break
				}
				l.set(path, key[0], Values(data))
			}
		case "key":
			switch t.kind {
			case tagStart:
				inKey = true
			case tagEnd:
				inKey = false
			}
		case "data":
			if !inValue {
				l.malformed(slog.String("tag", t.name), slog.String("reason", "<data> outside of <value>"))
			}
			switch t.kind {
			case tagStart:
				inData = true
			case tagEnd:
				inData = false
			}
		case "pool":
			if len(path) == 0 && t.kind == tagEnd {
				return
			}
		default:
			l.logger.LogAttrs(l.context, slog.LevelDebug, "pool: unknown tag", slog.String("file", l.file), slog.String("tag", t.name))
		}
	}
}

// ReadTags loads a nested tag document into d; see WriteTags.
func (d *Dir) ReadTags(r io.Reader, depth int, mkdir bool, logger *slog.Logger) (LoadStats, error) {
	l := &loader{dst: d, depth: depth, mkdir: mkdir, logger: logger, context: context.Background()}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	err := l.readTags(r)
	return l.stats, err
}

// SaveXML writes the handle's directory and its subdirectories down to depth
// levels to file in the nested tag format.
func (p *Pool) SaveXML(h *Handle, file string, depth int, absdir bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	f, cleanup, commit, err := createFile("save", file)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := d.WriteTags(f, depth, savePrefix(h, absdir)); err != nil {
		return streamErr("save", file, err)
	}
	return commit()
}

// LoadXML reads a nested tag file into the handle's directory. The first
// line of the file is skipped without being looked at.
func (p *Pool) LoadXML(h *Handle, file string, depth int, mkdir bool) (LoadStats, error) {
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
	err = l.readTags(f)
	l.done("xml")
	return l.stats, streamErr("load", file, err)
}
