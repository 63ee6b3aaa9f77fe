package pool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPathNotFound is returned when a handle's path does not resolve.
	ErrPathNotFound = errors.New("directory not found")
	// ErrInvalidKey is returned for null or NaN keys and path segments.
	ErrInvalidKey = errors.New("invalid key")
	// ErrRootRemoval is returned by RmDir on the root directory.
	ErrRootRemoval = errors.New("cannot remove root directory")
	ErrKeyNotFound = errors.New("key not found")
	// ErrIndexOutOfRange is returned by ordinal and cursor access past the
	// live entries.
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrPoolClosed      = errors.New("pool closed")
	// ErrIncomplete is returned by Paste and the loaders when some records
	// targeted missing directories and mkdir was off.
	ErrIncomplete = errors.New("missing directories skipped")

	errBadMagic           = errors.New("not a pool snapshot")
	errUnsupportedVersion = errors.New("unsupported snapshot version")
	errChecksum           = errors.New("checksum mismatch")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// PathError describes a failed operation on a directory or an entry.
type PathError struct {
	Pool string
	Path Path
	Key  Token
	Msg  string
	Err  error
}

func pathErrf(pool string, path Path, key Token, err error, format string, args ...any) error {
	var msg string
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &PathError{pool, path.Clone(), key, msg, err}
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func (e *PathError) Error() string {
	var buf strings.Builder
	if e.Pool != "" {
		buf.WriteString(e.Pool)
		buf.WriteByte(':')
	}
	buf.WriteByte('/')
	for i, t := range e.Path {
		if i > 0 {
			buf.WriteByte('/')
		}
		buf.WriteString(t.String())
	}
	if !e.Key.IsNull() {
		buf.WriteByte('[')
		buf.WriteString(e.Key.String())
		buf.WriteByte(']')
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// StreamError reports a file that could not be opened, read or written.
type StreamError struct {
	Op   string
	File string
	Err  error
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
}

func streamErr(op, file string, err error) error {
	if err == nil {
		return nil
	}
	var se *StreamError
	if errors.As(err, &se) {
		return err
	}
	return &StreamError{op, file, err}
}

// LoadStats counts what a loader did with the records it read.
type LoadStats struct {
	Records int // applied
	Skipped int // malformed, logged and dropped
	Missing int // target directory absent and mkdir off
}

func (s LoadStats) String() string {
	return fmt.Sprintf("%d records, %d skipped, %d missing", s.Records, s.Skipped, s.Missing)
}
