package pool

import (
	"log/slog"
	"slices"
	"sync"
)

// Registry hands out shared pools by name. A shared pool lives until the
// last owner releases it. Registry methods are safe for concurrent use; the
// pools themselves are not.
type Registry struct {
	opt   Options
	lock  sync.Mutex
	pools map[string]*Pool
}

// NewRegistry returns an empty registry whose pools are created with opt.
func NewRegistry(opt Options) *Registry {
	return &Registry{
		opt:   opt.withDefaults(),
		pools: make(map[string]*Pool),
	}
}

// Acquire returns the shared pool called name, creating it on first use, and
// adds one owner to it.
func (r *Registry) Acquire(name string) *Pool {
	r.lock.Lock()
	defer r.lock.Unlock()
	p := r.pools[name]
	if p == nil {
		p = newPool(name, r.opt)
		p.reg = r
		r.pools[name] = p
	} else {
		p.refs++
	}
	p.logger.LogAttrs(p.context, slog.LevelDebug, "pool: acquire", slog.String("pool", name), slog.Int("refs", p.refs))
	return p
}

// Release removes one owner from p and reports whether any remain. The last
// release destroys the pool and forgets its name.
func (r *Registry) Release(p *Pool) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if p.reg != r || r.pools[p.name] != p {
		return false
	}
	p.refs--
	p.logger.LogAttrs(p.context, slog.LevelDebug, "pool: release", slog.String("pool", p.name), slog.Int("refs", p.refs))
	if p.refs > 0 {
		return true
	}
	delete(r.pools, p.name)
	p.destroy()
	return false
}

// Lookup returns the shared pool called name without taking ownership.
func (r *Registry) Lookup(name string) *Pool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pools[name]
}

// Names returns the names of the live shared pools, sorted.
func (r *Registry) Names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.pools)
}
