package pool

import "errors"

// ErrBucketNotFound is returned when a named bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// storage is a transactional store of nested sorted buckets (Bolt, or an
// in-memory stand-in for tests) that directory trees are exported to.
type storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Bucket returns a top-level bucket, or nil if it doesn't exist.
	Bucket(name []byte) storageBucket

	// CreateBucket creates a top-level bucket if it doesn't exist.
	CreateBucket(name []byte) (storageBucket, error)

	// DeleteBucket deletes a top-level bucket with everything nested in it.
	DeleteBucket(name []byte) error

	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times.
	Rollback() error

	// Size returns the database size in bytes (0 if unknown / not applicable).
	Size() int64
}

// storageBucket is a sorted key-value collection that may contain nested
// buckets.
type storageBucket interface {
	Put(key, value []byte) error

	// Bucket returns a nested bucket, or nil if it doesn't exist.
	Bucket(name []byte) storageBucket

	// CreateBucket creates a nested bucket if it doesn't exist.
	CreateBucket(name []byte) (storageBucket, error)

	// ForEach calls fn for every key in order. Nested buckets are reported
	// with a nil value. The bucket must not be modified during iteration.
	ForEach(fn func(k, v []byte) error) error

	// Stats returns storage-specific bucket statistics.
	// Backends that don't track allocation sizes may return zero values except KeyN.
	Stats() bucketStats
}

type bucketStats struct {
	KeyN        int
	BucketN     int
	LeafInuse   int64
	LeafAlloc   int64
	BranchAlloc int64
}

func (s bucketStats) TotalAlloc() int64 { return s.BranchAlloc + s.LeafAlloc }
