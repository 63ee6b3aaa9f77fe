package pool

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Kind is the type tag of a Token. Kinds are ranked: a token of a lower kind
// sorts before any token of a higher kind, whatever their values.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindSymbol
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	case KindPointer:
		return "pointer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Token is a tagged scalar: an integer, a float, a symbol or an opaque
// pointer. The zero Token is the null token, which is never a valid key.
type Token struct {
	kind Kind
	num  uint64 // int64 or float64 bits
	sym  string
	ptr  unsafe.Pointer
}

var (
	_ msgpack.CustomEncoder = Token{}
	_ msgpack.CustomDecoder = (*Token)(nil)
)

func Int(v int64) Token {
	return Token{kind: KindInt, num: uint64(v)}
}

func Float(v float64) Token {
	if v == 0 {
		v = 0 // fold -0 into +0, they compare equal and must hash equal
	}
	return Token{kind: KindFloat, num: math.Float64bits(v)}
}

func Sym(s string) Token {
	return Token{kind: KindSymbol, sym: s}
}

// Ptr wraps an opaque pointer. Pointer tokens are ordered by address and are
// never written to files.
func Ptr(p unsafe.Pointer) Token {
	if p == nil {
		return Token{}
	}
	return Token{kind: KindPointer, ptr: p}
}

func (t Token) Kind() Kind { return t.kind }

func (t Token) IsNull() bool { return t.kind == KindNull }

func (t Token) Int() int64 {
	switch t.kind {
	case KindInt:
		return int64(t.num)
	case KindFloat:
		return int64(math.Float64frombits(t.num))
	default:
		return 0
	}
}

func (t Token) Float() float64 {
	switch t.kind {
	case KindInt:
		return float64(int64(t.num))
	case KindFloat:
		return math.Float64frombits(t.num)
	default:
		return 0
	}
}

func (t Token) Sym() string {
	if t.kind == KindSymbol {
		return t.sym
	}
	return ""
}

func (t Token) Ptr() unsafe.Pointer { return t.ptr }

// IsValidKey reports whether t can be used as an entry key or a directory
// name. The null token, the empty symbol and NaN floats are rejected.
func (t Token) IsValidKey() bool {
	switch t.kind {
	case KindNull:
		return false
	case KindFloat:
		return !math.IsNaN(math.Float64frombits(t.num))
	case KindSymbol:
		return t.sym != ""
	default:
		return true
	}
}

func (t Token) persistable() bool {
	return t.kind != KindPointer
}

// Compare orders tokens by kind rank first, then by value. Symbols compare by
// content and pointers by address.
func Compare(a, b Token) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindInt:
		return cmp.Compare(int64(a.num), int64(b.num))
	case KindFloat:
		return cmp.Compare(math.Float64frombits(a.num), math.Float64frombits(b.num))
	case KindSymbol:
		return strings.Compare(a.sym, b.sym)
	case KindPointer:
		return cmp.Compare(uintptr(a.ptr), uintptr(b.ptr))
	default:
		return 0
	}
}

func (t Token) Equal(o Token) bool {
	return Compare(t, o) == 0
}

func (t Token) hash() uint64 {
	if t.kind == KindSymbol {
		return xxhash.Sum64String(t.sym)
	}
	var buf [9]byte
	buf[0] = byte(t.kind)
	if t.kind == KindPointer {
		binary.LittleEndian.PutUint64(buf[1:], uint64(uintptr(t.ptr)))
	} else {
		binary.LittleEndian.PutUint64(buf[1:], t.num)
	}
	return xxhash.Sum64(buf[:])
}

// String renders the token the way the text formats write it.
func (t Token) String() string {
	switch t.kind {
	case KindInt:
		return strconv.FormatInt(int64(t.num), 10)
	case KindFloat:
		return formatFloat(math.Float64frombits(t.num))
	case KindSymbol:
		return t.sym
	case KindPointer:
		return fmt.Sprintf("%p", t.ptr)
	default:
		return ""
	}
}

// formatFloat produces the shortest decimal that parses back to the same
// float64, always with a decimal point so it re-reads as a float.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.IndexByte(s, '.') < 0 {
		s += ".0"
	}
	return s
}

// ParseToken classifies a single word: an optional leading sign followed by
// digits is an integer, digits with exactly one decimal point are a float,
// anything else is a symbol.
func ParseToken(s string) Token {
	var digits, dots int
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		case (c == '-' || c == '+') && i == 0:
		default:
			return Sym(s)
		}
	}
	if digits == 0 || dots > 1 {
		return Sym(s)
	}
	if dots == 0 {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(v)
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(v)
	}
	return Sym(s)
}

func (t Token) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch t.kind {
	case KindInt:
		return enc.EncodeInt(int64(t.num))
	case KindFloat:
		return enc.EncodeFloat64(math.Float64frombits(t.num))
	case KindSymbol:
		return enc.EncodeString(t.sym)
	default:
		return enc.EncodeNil()
	}
}

func (t *Token) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*t = Token{}
	case int64:
		*t = Int(v)
	case uint64:
		if v > math.MaxInt64 {
			return fmt.Errorf("integer token out of range: %d", v)
		}
		*t = Int(int64(v))
	case float64:
		*t = Float(v)
	case string:
		*t = Sym(v)
	default:
		return fmt.Errorf("cannot decode %T as a token", v)
	}
	return nil
}
