package pool

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type Options struct {
	Logger  *slog.Logger
	Context context.Context
	Verbose bool

	// EntrySlots and DirSlots size the root directory's bucket tables from
	// the expected number of entries and subdirectories.
	EntrySlots int
	DirSlots   int

	// CompressSnapshots makes SaveSnapshot compress the payload with zstd.
	CompressSnapshots bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	return o
}

// Pool is a store root: a directory tree that is either private to one
// owner or shared by name through a Registry.
//
// A Pool performs no locking. All calls on a pool, and on every handle and
// cursor used with it, must come from one goroutine at a time.
type Pool struct {
	name string
	id   uuid.UUID
	refs int
	reg  *Registry

	arena *arena
	root  *Dir

	logger  *slog.Logger
	context context.Context
	verbose bool
	opt     Options
}

// New returns a private pool.
func New(opt Options) *Pool {
	p := newPool("", opt)
	p.logger.LogAttrs(p.context, slog.LevelDebug, "pool: new private pool", slog.String("pool", p.debugName()))
	return p
}

func newPool(name string, opt Options) *Pool {
	opt = opt.withDefaults()
	a := newArena()
	vbits, dbits := SizeHint{Entries: opt.EntrySlots, Dirs: opt.DirSlots}.bits()
	return &Pool{
		name:    name,
		id:      uuid.New(),
		refs:    1,
		arena:   a,
		root:    newDir(a, Token{}, dirRef{}, vbits, dbits),
		logger:  opt.Logger,
		context: opt.Context,
		verbose: opt.Verbose,
		opt:     opt,
	}
}

// Name returns the registry name of a shared pool, or "" for a private one.
func (p *Pool) Name() string { return p.name }

func (p *Pool) ID() uuid.UUID { return p.id }

// Shared reports whether the pool belongs to a Registry.
func (p *Pool) Shared() bool { return p.reg != nil }

// Refs returns the number of owners of the pool.
func (p *Pool) Refs() int { return p.refs }

// Root returns the root directory, or nil once the pool is closed.
func (p *Pool) Root() *Dir { return p.root }

func (p *Pool) Closed() bool { return p.root == nil }

func (p *Pool) debugName() string {
	if p.name != "" {
		return p.name
	}
	return p.id.String()
}

func (p *Pool) String() string {
	return p.debugName()
}

// Close gives up the caller's ownership. A private pool is destroyed; a
// shared one is released to its registry and destroyed with its last owner.
func (p *Pool) Close() {
	if p.reg != nil {
		p.reg.Release(p)
		return
	}
	p.destroy()
}

func (p *Pool) destroy() {
	if p.root == nil {
		return
	}
	p.logger.LogAttrs(p.context, slog.LevelDebug, "pool: free", slog.String("pool", p.debugName()), slog.Int("dirs", p.arena.live))
	free(p.root)
	p.root = nil
	p.refs = 0
}

// Reset empties the pool, dropping every entry and directory.
func (p *Pool) Reset() {
	if p.root != nil {
		p.root.Clear(true, false)
	}
}

func (p *Pool) dir(h *Handle) (*Dir, error) {
	if p.root == nil {
		return nil, ErrPoolClosed
	}
	if h == nil {
		return p.root, nil
	}
	d := h.Resolve(p.root)
	if d == nil {
		return nil, pathErrf(p.name, h.path, Token{}, ErrPathNotFound, "")
	}
	return d, nil
}

func (p *Pool) logOp(msg string, h *Handle, attrs ...slog.Attr) {
	if !p.verbose {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("pool", p.debugName()))
	if h != nil {
		all = append(all, slog.String("path", h.path.String()))
	}
	all = append(all, attrs...)
	p.logger.LogAttrs(p.context, slog.LevelDebug, msg, all...)
}

func handlePath(h *Handle) Path {
	if h == nil {
		return nil
	}
	return h.path
}

// MkDir creates the directory at the handle's path, along with every missing
// directory above it, and binds the handle to it. The hint sizes the final
// directory if it has to be created.
func (p *Pool) MkDir(h *Handle, hint SizeHint) (*Dir, error) {
	if p.root == nil {
		return nil, ErrPoolClosed
	}
	if h == nil {
		return p.root, nil
	}
	d := p.root.Mkdir(h.path, hint)
	if d == nil {
		return nil, pathErrf(p.name, h.path, Token{}, ErrInvalidKey, "mkdir")
	}
	h.Associate(d)
	p.logOp("pool: MKDIR", h)
	return d, nil
}

// HasDir reports whether the handle's path resolves.
func (p *Pool) HasDir(h *Handle) bool {
	_, err := p.dir(h)
	return err == nil
}

// RmDir removes the directory at the handle's path with its whole subtree.
func (p *Pool) RmDir(h *Handle) error {
	if p.root == nil {
		return ErrPoolClosed
	}
	if h == nil || len(h.path) == 0 {
		return pathErrf(p.name, nil, Token{}, ErrRootRemoval, "")
	}
	if !p.root.Remove(h.path) {
		return pathErrf(p.name, h.path, Token{}, ErrPathNotFound, "rmdir")
	}
	p.logOp("pool: RMDIR", h)
	return nil
}

// Set stores vals under key in the handle's directory. An existing entry is
// replaced only if overwrite is set.
func (p *Pool) Set(h *Handle, key Token, vals Values, overwrite bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	if !d.Set(key, vals, overwrite) {
		return pathErrf(p.name, handlePath(h), key, ErrInvalidKey, "")
	}
	p.logOp("pool: SET", h, slog.String("key", key.String()), slog.String("vals", vals.String()))
	return nil
}

func (p *Pool) Unset(h *Handle, key Token) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	if !key.IsValidKey() {
		return pathErrf(p.name, handlePath(h), key, ErrInvalidKey, "")
	}
	if !d.Unset(key) {
		return pathErrf(p.name, handlePath(h), key, ErrKeyNotFound, "")
	}
	p.logOp("pool: UNSET", h, slog.String("key", key.String()))
	return nil
}

func (p *Pool) SetAt(h *Handle, ix int, vals Values) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	if !d.SetAt(ix, vals) {
		return pathErrf(p.name, handlePath(h), Token{}, ErrIndexOutOfRange, "entry %d", ix)
	}
	p.logOp("pool: SET", h, slog.Int("index", ix), slog.String("vals", vals.String()))
	return nil
}

func (p *Pool) UnsetAt(h *Handle, ix int) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	if !d.UnsetAt(ix) {
		return pathErrf(p.name, handlePath(h), Token{}, ErrIndexOutOfRange, "entry %d", ix)
	}
	p.logOp("pool: UNSET", h, slog.Int("index", ix))
	return nil
}

// EntryAt returns the ix-th entry of the handle's directory in storage
// order.
func (p *Pool) EntryAt(h *Handle, ix int) (Token, Values, error) {
	d, err := p.dir(h)
	if err != nil {
		return Token{}, nil, err
	}
	k, v, ok := d.EntryAt(ix)
	if !ok {
		return Token{}, nil, pathErrf(p.name, handlePath(h), Token{}, ErrIndexOutOfRange, "entry %d", ix)
	}
	return k, v, nil
}

// ClearAll drops the subdirectories of the handle's directory if recursive
// is set, and its entries unless dirsOnly is set.
func (p *Pool) ClearAll(h *Handle, recursive, dirsOnly bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	d.Clear(recursive, dirsOnly)
	p.logOp("pool: CLEAR", h, slog.Bool("recursive", recursive), slog.Bool("dirs_only", dirsOnly))
	return nil
}

func (p *Pool) lookupEntry(h *Handle, key Token, fn func(*Dir, Token) (Values, bool)) (Values, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, err
	}
	if !key.IsValidKey() {
		return nil, pathErrf(p.name, handlePath(h), key, ErrInvalidKey, "")
	}
	vals, ok := fn(d, key)
	if !ok {
		return nil, pathErrf(p.name, handlePath(h), key, ErrKeyNotFound, "")
	}
	return vals, nil
}

// Get returns a copy of the values under key.
func (p *Pool) Get(h *Handle, key Token) (Values, error) {
	return p.lookupEntry(h, key, (*Dir).Get)
}

// Peek returns the stored values without copying; see Dir.Peek.
func (p *Pool) Peek(h *Handle, key Token) (Values, error) {
	return p.lookupEntry(h, key, (*Dir).Peek)
}

// Cut removes the entry under key and returns its values.
func (p *Pool) Cut(h *Handle, key Token) (Values, error) {
	vals, err := p.lookupEntry(h, key, (*Dir).Cut)
	if err == nil {
		p.logOp("pool: UNSET", h, slog.String("key", key.String()))
	}
	return vals, err
}

func (p *Pool) Count(h *Handle) (int, error) {
	d, err := p.dir(h)
	if err != nil {
		return 0, err
	}
	return d.CountEntries(), nil
}

func (p *Pool) CountDirs(h *Handle) (int, error) {
	d, err := p.dir(h)
	if err != nil {
		return 0, err
	}
	return d.CountDirs(), nil
}

// Entries lists the entries of the handle's directory in key order. With
// cut set the directory is emptied of entries.
func (p *Pool) Entries(h *Handle, cut bool) ([]Token, []Values, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, nil, err
	}
	keys, vals := d.Entries(cut)
	if cut {
		p.logOp("pool: CLEAR", h, slog.Int("entries", len(keys)))
	}
	return keys, vals, nil
}

func (p *Pool) Keys(h *Handle) ([]Token, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, err
	}
	return d.Keys(), nil
}

func (p *Pool) DirNames(h *Handle) ([]Token, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, err
	}
	return d.DirNames(), nil
}

// Walk calls fn for every directory within depth levels of the handle's
// directory; see Dir.Walk.
func (p *Pool) Walk(h *Handle, depth int, fn func(path Path, dir *Dir) bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	d.Walk(depth, fn)
	return nil
}

// Next advances the cursor and reports whether it landed on an item.
func (p *Pool) Next(c *Cursor) bool {
	d, err := p.dir(c.Handle())
	return err == nil && c.Next(d)
}

// Prev moves the cursor back and reports whether it landed on an item.
func (p *Pool) Prev(c *Cursor) bool {
	d, err := p.dir(c.Handle())
	return err == nil && c.Prev(d)
}

func (p *Pool) CursorValid(c *Cursor) bool {
	d, err := p.dir(c.Handle())
	return err == nil && c.Valid(d)
}

// CursorEntry returns the entry under an entry cursor.
func (p *Pool) CursorEntry(c *Cursor) (Token, Values, error) {
	d, err := p.dir(c.Handle())
	if err != nil {
		return Token{}, nil, err
	}
	k, v, ok := c.Entry(d)
	if !ok {
		return Token{}, nil, pathErrf(p.name, c.h.path, Token{}, ErrIndexOutOfRange, "cursor")
	}
	return k, v, nil
}

// CursorDir returns the name of the subdirectory under a directory cursor.
func (p *Pool) CursorDir(c *Cursor) (Token, error) {
	d, err := p.dir(c.Handle())
	if err != nil {
		return Token{}, err
	}
	sub := c.Dir(d)
	if sub == nil {
		return Token{}, pathErrf(p.name, c.h.path, Token{}, ErrIndexOutOfRange, "cursor")
	}
	return sub.name, nil
}

func (p *Pool) SetAtCursor(c *Cursor, vals Values) error {
	d, err := p.dir(c.Handle())
	if err != nil {
		return err
	}
	if !c.Set(d, vals) {
		return pathErrf(p.name, c.h.path, Token{}, ErrIndexOutOfRange, "cursor")
	}
	p.logOp("pool: SET", c.Handle(), slog.String("vals", vals.String()))
	return nil
}

func (p *Pool) UnsetAtCursor(c *Cursor) error {
	d, err := p.dir(c.Handle())
	if err != nil {
		return err
	}
	if !c.Unset(d) {
		return pathErrf(p.name, c.h.path, Token{}, ErrIndexOutOfRange, "cursor")
	}
	p.logOp("pool: UNSET", c.Handle())
	return nil
}

// Paste copies a clipboard tree into the handle's directory; see Dir.Paste.
// It returns ErrIncomplete if some subdirectories were missing and mkdir was
// off; everything else has been pasted in that case.
func (p *Pool) Paste(h *Handle, clip *Detached, depth int, overwrite, mkdir bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	if clip.Dir() == nil {
		return nil
	}
	ok := d.Paste(clip.dir, depth, overwrite, mkdir)
	p.logOp("pool: PASTE", h, slog.Int("depth", depth))
	if !ok {
		return pathErrf(p.name, handlePath(h), Token{}, ErrIncomplete, "paste")
	}
	return nil
}

// Copy returns a clipboard holding the single entry under key, moving it out
// of the pool if cut is set.
func (p *Pool) Copy(h *Handle, key Token, cut bool) (*Detached, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, err
	}
	if !key.IsValidKey() {
		return nil, pathErrf(p.name, handlePath(h), key, ErrInvalidKey, "")
	}
	det := d.CopyEntry(key, cut)
	if det == nil {
		return nil, pathErrf(p.name, handlePath(h), key, ErrKeyNotFound, "")
	}
	if cut {
		p.logOp("pool: UNSET", h, slog.String("key", key.String()))
	}
	return det, nil
}

// CopyAll returns a clipboard copy of the handle's directory down to depth
// levels, moving the entries out of the pool if cut is set.
func (p *Pool) CopyAll(h *Handle, depth int, cut bool) (*Detached, error) {
	d, err := p.dir(h)
	if err != nil {
		return nil, err
	}
	det := d.CopyTree(depth, cut)
	if det == nil {
		return nil, pathErrf(p.name, handlePath(h), Token{}, ErrIncomplete, "copy")
	}
	if cut {
		p.logOp("pool: CLEAR", h, slog.Int("depth", depth))
	}
	return det, nil
}
