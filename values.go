package pool

import (
	"slices"
	"strings"
)

// Values is an ordered list of tokens stored under one key. Lists are copied
// whenever they cross the engine boundary.
type Values []Token

// Path addresses a directory relative to some starting directory, one token
// per level.
type Path []Token

func (v Values) Clone() Values {
	return slices.Clone(v)
}

func (v Values) Equal(o Values) bool {
	return slices.EqualFunc(v, o, Token.Equal)
}

func (v Values) String() string {
	return tokensString(v)
}

func (p Path) Clone() Path {
	return slices.Clone(p)
}

// Append returns a new path extended by ts. p itself is never modified.
func (p Path) Append(ts ...Token) Path {
	out := make(Path, 0, len(p)+len(ts))
	out = append(out, p...)
	return append(out, ts...)
}

func (p Path) Equal(o Path) bool {
	return slices.EqualFunc(p, o, Token.Equal)
}

func (p Path) String() string {
	return tokensString(p)
}

func (p Path) persistable() bool {
	for _, t := range p {
		if !t.persistable() {
			return false
		}
	}
	return true
}

func (p Path) valid() bool {
	for _, t := range p {
		if !t.IsValidKey() {
			return false
		}
	}
	return true
}

// ParsePath splits s on whitespace and classifies each word with ParseToken.
func ParsePath(s string) Path {
	return Path(parseTokens(s))
}

// ParseValues splits s on whitespace and classifies each word with ParseToken.
func ParseValues(s string) Values {
	return Values(parseTokens(s))
}

func parseTokens(s string) []Token {
	words := strings.Fields(s)
	out := make([]Token, len(words))
	for i, w := range words {
		out[i] = ParseToken(w)
	}
	return out
}

func tokensString(ts []Token) string {
	var buf strings.Builder
	for i, t := range ts {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(t.String())
	}
	return buf.String()
}

func persistableTokens(ts []Token) []Token {
	for i, t := range ts {
		if !t.persistable() {
			out := slices.Clone(ts[:i])
			for _, t := range ts[i+1:] {
				if t.persistable() {
					out = append(out, t)
				}
			}
			return out
		}
	}
	return ts
}
