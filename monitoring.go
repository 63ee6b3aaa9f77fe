package pool

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

type Stats struct {
	Dirs     int
	Entries  int
	Tokens   int
	MaxDepth int

	EntrySlots     int
	DirSlots       int
	UsedEntrySlots int
	UsedDirSlots   int
	LongestChain   int
}

// EntryLoad returns the average number of entries per used entry bucket.
func (s *Stats) EntryLoad() float64 {
	if s.UsedEntrySlots == 0 {
		return 0
	}
	return float64(s.Entries) / float64(s.UsedEntrySlots)
}

func (s Stats) String() string {
	return fmt.Sprintf("dirs = %s, entries = %s, tokens = %s, max_depth = %d, entry_slots = %s/%s, dir_slots = %s/%s, longest_chain = %d",
		humanize.Comma(int64(s.Dirs)), humanize.Comma(int64(s.Entries)), humanize.Comma(int64(s.Tokens)), s.MaxDepth,
		humanize.Comma(int64(s.UsedEntrySlots)), humanize.Comma(int64(s.EntrySlots)),
		humanize.Comma(int64(s.UsedDirSlots)), humanize.Comma(int64(s.DirSlots)),
		s.LongestChain)
}

// Stats summarizes d and its subdirectories down to depth levels. d itself
// is counted as a directory.
func (d *Dir) Stats(depth int) Stats {
	var s Stats
	d.Walk(depth, func(path Path, dir *Dir) bool {
		s.Dirs++
		s.MaxDepth = max(s.MaxDepth, len(path))
		s.EntrySlots += len(dir.vals)
		s.DirSlots += len(dir.dirs)
		for i := range dir.vals {
			b := &dir.vals[i]
			if b.cnt > 0 {
				s.UsedEntrySlots++
				s.LongestChain = max(s.LongestChain, b.cnt)
			}
			s.Entries += b.cnt
		}
		for i := range dir.dirs {
			if n := dir.dirs[i].cnt; n > 0 {
				s.UsedDirSlots++
				s.LongestChain = max(s.LongestChain, n)
			}
		}
		for _, v := range dir.All() {
			s.Tokens += len(v)
		}
		return true
	})
	return s
}

func (p *Pool) Stats(h *Handle, depth int) (Stats, error) {
	d, err := p.dir(h)
	if err != nil {
		return Stats{}, err
	}
	return d.Stats(depth), nil
}

// BoltStats describes one exported tree in a Bolt file.
type BoltStats struct {
	Keys     int
	Buckets  int
	Inuse    int64
	Alloc    int64
	FileSize int64
}

func (s BoltStats) String() string {
	return fmt.Sprintf("keys = %s, buckets = %s, inuse = %s, alloc = %s, file = %s",
		humanize.Comma(int64(s.Keys)), humanize.Comma(int64(s.Buckets)),
		humanize.Bytes(uint64(s.Inuse)), humanize.Bytes(uint64(s.Alloc)), humanize.Bytes(uint64(s.FileSize)))
}

func bucketStoreStats(st storage, name string) (BoltStats, error) {
	tx, err := st.BeginTx(false)
	if err != nil {
		return BoltStats{}, err
	}
	defer tx.Rollback()
	b := tx.Bucket([]byte(name))
	if b == nil {
		return BoltStats{}, fmt.Errorf("%s: %w", name, ErrBucketNotFound)
	}
	bs := b.Stats()
	return BoltStats{
		Keys:     bs.KeyN,
		Buckets:  bs.BucketN,
		Inuse:    bs.LeafInuse,
		Alloc:    bs.TotalAlloc(),
		FileSize: tx.Size(),
	}, nil
}

// BoltFileStats reports on the tree exported under name in the Bolt file.
func BoltFileStats(file, name string) (BoltStats, error) {
	st, err := openBoltStorage(file, true)
	if err != nil {
		return BoltStats{}, streamErr("stat", file, err)
	}
	defer st.Close()
	return bucketStoreStats(st, name)
}
