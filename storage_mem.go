package pool

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

type memStorage struct {
	mu     sync.Mutex
	cond   *sync.Cond
	root   *memBucket // top-level buckets are nested in here
	closed bool
	writer bool
}

// newMemStorage returns a transient in-memory storage intended for tests.
func newMemStorage() storage {
	s := &memStorage{root: &memBucket{}}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("storage closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("storage closed")
		}
		s.writer = true
	}

	// Snapshot the entire DB for transactional isolation (simplicity over efficiency).
	return &memTx{
		writable: writable,
		base:     s,
		root:     s.root.clone(),
	}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.root = nil
	if s.cond != nil {
		s.cond.Broadcast()
	}
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	root     *memBucket
	closed   bool
}

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) top() memBucketHandle {
	if tx.closed {
		panic("tx is closed")
	}
	return memBucketHandle{tx: tx, b: tx.root}
}

func (tx *memTx) Bucket(name []byte) storageBucket {
	return tx.top().Bucket(name)
}

func (tx *memTx) CreateBucket(name []byte) (storageBucket, error) {
	return tx.top().CreateBucket(name)
}

func (tx *memTx) DeleteBucket(name []byte) error {
	h := tx.top()
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	i, ok := h.find(name)
	if !ok || h.b.items[i].sub == nil {
		return ErrBucketNotFound
	}
	h.b.items = slices.Delete(h.b.items, i, i+1)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("storage closed")
	}
	tx.base.root = tx.root
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func (tx *memTx) Size() int64 { return 0 }

type memBucket struct {
	items []memKV // sorted by key
}

func (b *memBucket) clone() *memBucket {
	if b == nil {
		return nil
	}
	out := &memBucket{items: make([]memKV, len(b.items))}
	for i, kv := range b.items {
		out.items[i] = memKV{
			key:   slices.Clone(kv.key),
			value: slices.Clone(kv.value),
			sub:   kv.sub.clone(),
		}
	}
	return out
}

type memKV struct {
	key   []byte
	value []byte
	sub   *memBucket // nested bucket, value is nil
}

type memBucketHandle struct {
	tx *memTx
	b  *memBucket
}

func (b memBucketHandle) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	key = slices.Clone(key)
	value = slices.Clone(value)
	if value == nil {
		value = []byte{}
	}

	i, ok := b.find(key)
	if ok {
		if b.b.items[i].sub != nil {
			return fmt.Errorf("incompatible value")
		}
		b.b.items[i].value = value
		return nil
	}
	b.b.items = slices.Insert(b.b.items, i, memKV{key: key, value: value})
	return nil
}

func (b memBucketHandle) Bucket(name []byte) storageBucket {
	i, ok := b.find(name)
	if !ok || b.b.items[i].sub == nil {
		return nil
	}
	return memBucketHandle{tx: b.tx, b: b.b.items[i].sub}
}

func (b memBucketHandle) CreateBucket(name []byte) (storageBucket, error) {
	if !b.tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	i, ok := b.find(name)
	if ok {
		if b.b.items[i].sub == nil {
			return nil, fmt.Errorf("incompatible value")
		}
		return memBucketHandle{tx: b.tx, b: b.b.items[i].sub}, nil
	}
	sub := &memBucket{}
	b.b.items = slices.Insert(b.b.items, i, memKV{key: slices.Clone(name), sub: sub})
	return memBucketHandle{tx: b.tx, b: sub}, nil
}

func (b memBucketHandle) ForEach(fn func(k, v []byte) error) error {
	for _, kv := range b.b.items {
		if err := fn(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (b memBucketHandle) Stats() bucketStats {
	s := bucketStats{BucketN: 1}
	for _, kv := range b.b.items {
		s.KeyN++
		if kv.sub != nil {
			sub := memBucketHandle{tx: b.tx, b: kv.sub}.Stats()
			s.KeyN += sub.KeyN
			s.BucketN += sub.BucketN
			s.LeafInuse += sub.LeafInuse + int64(len(kv.key))
			continue
		}
		s.LeafInuse += int64(len(kv.key) + len(kv.value))
	}
	s.LeafAlloc = s.LeafInuse
	return s
}

func (b memBucketHandle) find(key []byte) (idx int, ok bool) {
	items := b.b.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}
