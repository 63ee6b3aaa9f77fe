package pool

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

type tagKind uint8

const (
	tagStart tagKind = iota
	tagEnd
	tagEmpty
)

type tag struct {
	name string
	attr string
	kind tagKind
}

func (t tag) is(name string, kind tagKind) bool {
	return t.name == name && t.kind == kind
}

// tagScanner splits the nested tag format into tags and the text between
// them. It understands start, end and self-closing tags, skips <!-- -->
// comments, and ignores '>' and '<' inside double quotes. Nothing else of
// general markup is supported.
type tagScanner struct {
	r   *bufio.Reader
	err error
	buf bytes.Buffer
}

func newTagScanner(r io.Reader) *tagScanner {
	return &tagScanner{r: bufio.NewReader(r)}
}

// skipLine discards everything up to and including the next newline.
func (s *tagScanner) skipLine() {
	if s.err != nil {
		return
	}
	_, s.err = s.r.ReadString('\n')
}

func (s *tagScanner) eof() bool {
	return s.err != nil
}

// Err returns the read error that stopped the scanner, or nil at a clean end
// of input.
func (s *tagScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

func (s *tagScanner) peek() (byte, bool) {
	if s.err != nil {
		return 0, false
	}
	b, err := s.r.Peek(1)
	if err != nil {
		s.err = err
		return 0, false
	}
	return b[0], true
}

func (s *tagScanner) skipSpace() {
	for {
		c, ok := s.peek()
		if !ok || !isSpace(c) {
			return
		}
		s.r.ReadByte()
	}
}

// next reads the following tag. It returns false if the input continues
// with text, or has ended.
func (s *tagScanner) next() (tag, bool) {
	for {
		s.skipSpace()
		if c, ok := s.peek(); !ok || c != '<' {
			return tag{}, false
		}
		s.r.ReadByte()

		if p, _ := s.r.Peek(3); string(p) == "!--" {
			s.r.Discard(3)
			s.skipComment()
			continue
		}

		s.buf.Reset()
		var quoted bool
		for {
			c, err := s.r.ReadByte()
			if err != nil {
				s.err = err
				break
			}
			if c == '"' {
				quoted = !quoted
			} else if c == '>' && !quoted {
				break
			}
			s.buf.WriteByte(c)
		}
		return parseTag(s.buf.String()), true
	}
}

func (s *tagScanner) skipComment() {
	var prev [2]byte
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			s.err = err
			return
		}
		if c == '>' && prev == [2]byte{'-', '-'} {
			return
		}
		prev[0], prev[1] = prev[1], c
	}
}

func parseTag(body string) tag {
	var t tag
	body = strings.TrimSpace(body)
	if rest, ok := strings.CutPrefix(body, "/"); ok {
		t.kind = tagEnd
		body = strings.TrimSpace(rest)
	} else if rest, ok := strings.CutSuffix(body, "/"); ok {
		t.kind = tagEmpty
		body = strings.TrimSpace(rest)
	} else {
		t.kind = tagStart
	}
	if i := strings.IndexFunc(body, isSpaceRune); i >= 0 {
		t.name, t.attr = body[:i], strings.TrimSpace(body[i:])
	} else {
		t.name = body
	}
	return t
}

// text reads everything up to the next unquoted '<' or the end of input.
func (s *tagScanner) text() string {
	s.buf.Reset()
	var quoted bool
	for {
		c, ok := s.peek()
		if !ok {
			break
		}
		if c == '"' {
			quoted = !quoted
		} else if c == '<' && !quoted {
			break
		}
		s.r.ReadByte()
		s.buf.WriteByte(c)
	}
	return s.buf.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isSpaceRune(r rune) bool {
	return r < 0x80 && isSpace(byte(r))
}

var (
	tagEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	tagUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)
