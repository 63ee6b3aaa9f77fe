package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Within an exported bucket, entries and subdirectories are told apart by
// the first byte of their keys; the rest is the msgpack-encoded token.
const (
	entryKeyPrefix byte = 'v'
	dirKeyPrefix   byte = 'd'
)

func appendEntryKey(buf []byte, key Token) []byte {
	return appendTokenBytes(append(buf, entryKeyPrefix), key)
}

func appendDirKey(buf []byte, name Token) []byte {
	return appendTokenBytes(append(buf, dirKeyPrefix), name)
}

// exportTree replaces the top-level bucket name with the contents of d down
// to depth levels, nested under prefix, in a single transaction.
func exportTree(st storage, name string, d *Dir, depth int, prefix Path) error {
	tx, err := st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, ErrBucketNotFound) {
		return err
	}
	b, err := tx.CreateBucket([]byte(name))
	if err != nil {
		return err
	}
	for _, seg := range prefix {
		keyBuf := appendDirKey(keyBytesPool.Get().([]byte), seg)
		b, err = b.CreateBucket(keyBuf)
		releaseKeyBytes(keyBuf)
		if err != nil {
			return err
		}
	}
	if err := exportDir(b, d, depth); err != nil {
		return err
	}
	return tx.Commit()
}

func exportDir(b storageBucket, d *Dir, depth int) error {
	keyBuf := keyBytesPool.Get().([]byte)
	defer func() { releaseKeyBytes(keyBuf) }()

	for k, v := range d.All() {
		if !k.persistable() {
			continue
		}
		keyBuf = appendEntryKey(keyBuf[:0], k)
		if err := b.Put(keyBuf, appendValuesBytes(nil, v)); err != nil {
			return err
		}
	}
	if depth == 0 {
		return nil
	}
	for c := range d.Subdirs() {
		if !c.name.persistable() {
			continue
		}
		keyBuf = appendDirKey(keyBuf[:0], c.name)
		cb, err := b.CreateBucket(keyBuf)
		if err != nil {
			return err
		}
		if err := exportDir(cb, c, nextDepth(depth)); err != nil {
			return err
		}
	}
	return nil
}

// importTree reads the top-level bucket name into a new detached tree,
// keeping what lies within depth levels of the bucket.
func importTree(st storage, name string, depth int) (*Detached, error) {
	tx, err := st.BeginTx(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrBucketNotFound)
	}
	clip := NewDetached(SizeHint{})
	if err := importDir(b, clip.dir, 0, depth); err != nil {
		clip.Free()
		return nil, err
	}
	return clip, nil
}

func importDir(b storageBucket, d *Dir, level, depth int) error {
	return b.ForEach(func(k, v []byte) error {
		if len(k) == 0 {
			return dataErrf(k, 0, nil, "empty key")
		}
		switch k[0] {
		case entryKeyPrefix:
			if v == nil {
				return dataErrf(k, 0, nil, "entry key names a bucket")
			}
			if !within(depth, level) {
				return nil
			}
			key, err := decodeTokenBytes(k[1:])
			if err != nil {
				return err
			}
			if !key.IsValidKey() {
				return dataErrf(k, 1, ErrInvalidKey, "entry key")
			}
			vals, err := decodeValuesBytes(v)
			if err != nil {
				return err
			}
			d.store(key, vals, true, true)
		case dirKeyPrefix:
			if v != nil {
				return dataErrf(k, 0, nil, "directory key holds a value")
			}
			if !within(depth, level+1) {
				return nil
			}
			name, err := decodeTokenBytes(k[1:])
			if err != nil {
				return err
			}
			c := d.Mkdir(Path{name}, SizeHint{})
			if c == nil {
				return dataErrf(k, 1, ErrInvalidKey, "directory name")
			}
			return importDir(b.Bucket(k), c, level+1, depth)
		default:
			return dataErrf(k, 0, nil, "unknown key kind %q", k[0])
		}
		return nil
	})
}

// SaveBolt exports the handle's directory down to depth levels into the
// top-level bucket called name of the Bolt database in file, replacing
// whatever the bucket held. Other buckets of the file are left alone, so
// several trees can share one file. With absdir the tree is nested under
// buckets for the handle's path.
func (p *Pool) SaveBolt(h *Handle, file, name string, depth int, absdir bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	st, err := openBoltStorage(file, false)
	if err != nil {
		return streamErr("save", file, err)
	}
	defer st.Close()
	if err := exportTree(st, name, d, depth, savePrefix(h, absdir)); err != nil {
		return streamErr("save", file, err)
	}
	return nil
}

// LoadBolt imports the bucket called name from the Bolt database in file
// into the handle's directory. The bucket is decoded in full before anything
// is applied.
func (p *Pool) LoadBolt(h *Handle, file, name string, depth int, mkdir bool) (LoadStats, error) {
	d, err := p.dir(h)
	if err != nil {
		return LoadStats{}, err
	}
	if _, err := os.Stat(file); err != nil {
		return LoadStats{}, streamErr("load", file, err)
	}
	st, err := openBoltStorage(file, true)
	if err != nil {
		return LoadStats{}, streamErr("load", file, err)
	}
	defer st.Close()

	clip, err := importTree(st, name, depth)
	if err != nil {
		p.logger.LogAttrs(p.context, slog.LevelWarn, "pool: cannot import bucket", slog.String("file", file), slog.String("bucket", name), slog.Any("err", err))
		return LoadStats{}, streamErr("load", file, err)
	}
	defer clip.Free()

	l := p.newLoader(d, file, -1, mkdir)
	l.apply(clip.dir)
	l.done("bolt")
	return l.stats, nil
}
