package pool

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/exp/mmap"
)

const (
	snapMagic          = 0x50414e534c4f4f50 // "POOLSNAP" as little-endian uint64
	snapVersion0 uint8 = 0

	snapHeaderSize = 32
)

const (
	snapFlagZstd uint16 = 1 << 0
)

type snapHeader struct {
	Magic    uint64
	Version  uint8
	_        uint8
	Flags    uint16
	_        uint32
	Size     uint64 // of the stored payload
	Checksum uint64 // xxhash of the stored payload
}

// The payload is a msgpack array [prefix, node], where prefix is the path
// the tree was saved under and node is, recursively,
//
//	[name, [[key, values]...], [node...]]

func encodeSnapNode(enc *msgpack.Encoder, d *Dir, depth int) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := d.name.EncodeMsgpack(enc); err != nil {
		return err
	}

	var n int
	for k := range d.All() {
		if k.persistable() {
			n++
		}
	}
	if err := enc.EncodeArrayLen(n); err != nil {
		return err
	}
	for k, v := range d.All() {
		if !k.persistable() {
			continue
		}
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := k.EncodeMsgpack(enc); err != nil {
			return err
		}
		if err := encodeValues(enc, v); err != nil {
			return err
		}
	}

	var children []*Dir
	if depth != 0 {
		for c := range d.Subdirs() {
			if c.name.persistable() {
				children = append(children, c)
			}
		}
	}
	if err := enc.EncodeArrayLen(len(children)); err != nil {
		return err
	}
	for _, c := range children {
		if err := encodeSnapNode(enc, c, nextDepth(depth)); err != nil {
			return err
		}
	}
	return nil
}

// decodeSnapNode reads one node level levels below the snapshot's starting
// directory. at maps the node's name to the directory it is decoded into.
// Entries and subdirectories beyond depth are skipped.
func decodeSnapNode(dec *msgpack.Decoder, at func(name Token) (*Dir, error), level, depth int) error {
	if err := expectArrayLen(dec, 3); err != nil {
		return err
	}
	var name Token
	if err := name.DecodeMsgpack(dec); err != nil {
		return err
	}
	d, err := at(name)
	if err != nil {
		return err
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	for range max(n, 0) {
		if err := expectArrayLen(dec, 2); err != nil {
			return err
		}
		var key Token
		if err := key.DecodeMsgpack(dec); err != nil {
			return err
		}
		vals, err := decodeValues(dec)
		if err != nil {
			return err
		}
		if !key.IsValidKey() {
			return fmt.Errorf("invalid key %v", key)
		}
		if within(depth, level) {
			d.store(key, vals, true, true)
		}
	}

	n, err = dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	child := func(name Token) (*Dir, error) {
		c := d.Mkdir(Path{name}, SizeHint{})
		if c == nil {
			return nil, fmt.Errorf("invalid directory name %v", name)
		}
		return c, nil
	}
	for range max(n, 0) {
		if !within(depth, level+1) {
			if err := dec.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := decodeSnapNode(dec, child, level+1, depth); err != nil {
			return err
		}
	}
	return nil
}

func expectArrayLen(dec *msgpack.Decoder, want int) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("array of %d elements, wanted %d", n, want)
	}
	return nil
}

// encodeSnapshot renders d, down to depth levels, as a complete snapshot
// file image.
func encodeSnapshot(d *Dir, depth int, prefix Path, compress bool) ([]byte, error) {
	payload := encodeMsgpack(nil, func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := encodeValues(enc, Values(prefix)); err != nil {
			return err
		}
		return encodeSnapNode(enc, d, depth)
	})

	var flags uint16
	if compress {
		zenc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		payload = zenc.EncodeAll(payload, nil)
		zenc.Close()
		flags |= snapFlagZstd
	}

	out := make([]byte, snapHeaderSize, snapHeaderSize+len(payload))
	h := snapHeader{
		Magic:    snapMagic,
		Version:  snapVersion0,
		Flags:    flags,
		Size:     uint64(len(payload)),
		Checksum: xxhash.Sum64(payload),
	}
	n, err := binary.Encode(out, binary.LittleEndian, &h)
	if err != nil {
		panic(err)
	}
	if n != snapHeaderSize {
		panic("snapHeader size mismatch")
	}
	return append(out, payload...), nil
}

func decodeSnapHeader(data []byte) (snapHeader, error) {
	var h snapHeader
	if len(data) < snapHeaderSize {
		return h, dataErrf(data, len(data), nil, "snapshot header truncated")
	}
	if _, err := binary.Decode(data[:snapHeaderSize], binary.LittleEndian, &h); err != nil {
		return h, dataErrf(data, 0, err, "snapshot header")
	}
	if h.Magic != snapMagic {
		return h, dataErrf(data[:snapHeaderSize], 0, errBadMagic, "snapshot header")
	}
	if h.Version != snapVersion0 {
		return h, dataErrf(data[:snapHeaderSize], 8, errUnsupportedVersion, "snapshot version %d", h.Version)
	}
	return h, nil
}

// decodeSnapshot checks and decodes a snapshot payload into a new detached
// tree, keeping what lies within depth levels of the saved directory.
func decodeSnapshot(h snapHeader, payload []byte, depth int) (*Detached, error) {
	if uint64(len(payload)) != h.Size {
		return nil, dataErrf(payload, len(payload), nil, "snapshot payload truncated, wanted %d bytes", h.Size)
	}
	if sum := xxhash.Sum64(payload); sum != h.Checksum {
		return nil, dataErrf(nil, 0, errChecksum, "snapshot payload %016x, wanted %016x", sum, h.Checksum)
	}
	if h.Flags&snapFlagZstd != 0 {
		zdec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		payload, err = zdec.DecodeAll(payload, nil)
		zdec.Close()
		if err != nil {
			return nil, dataErrf(nil, 0, err, "snapshot payload decompression")
		}
	}

	clip := NewDetached(SizeHint{})
	err := decodeMsgpack(payload, "snapshot", func(dec *msgpack.Decoder) error {
		if err := expectArrayLen(dec, 2); err != nil {
			return err
		}
		prefix, err := decodeValues(dec)
		if err != nil {
			return err
		}
		if !within(depth, len(prefix)) {
			return dec.Skip()
		}
		top := clip.dir.Mkdir(Path(prefix), SizeHint{})
		if top == nil {
			return fmt.Errorf("invalid path %v", Path(prefix))
		}
		return decodeSnapNode(dec, func(Token) (*Dir, error) { return top, nil }, len(prefix), depth)
	})
	if err != nil {
		clip.Free()
		return nil, err
	}
	return clip, nil
}

// SaveSnapshot writes the handle's directory down to depth levels to file as
// a binary snapshot. With absdir the snapshot places the tree at the
// handle's path.
func (p *Pool) SaveSnapshot(h *Handle, file string, depth int, absdir bool) error {
	d, err := p.dir(h)
	if err != nil {
		return err
	}
	data, err := encodeSnapshot(d, depth, savePrefix(h, absdir), p.opt.CompressSnapshots)
	if err != nil {
		return streamErr("save", file, err)
	}
	f, cleanup, commit, err := createFile("save", file)
	if err != nil {
		return err
	}
	defer cleanup()
	if _, err := f.Write(data); err != nil {
		return streamErr("save", file, err)
	}
	return commit()
}

// LoadSnapshot reads a binary snapshot into the handle's directory. The file
// is verified and decoded in full before anything is applied, so a corrupt
// file leaves the pool untouched.
func (p *Pool) LoadSnapshot(h *Handle, file string, depth int, mkdir bool) (LoadStats, error) {
	d, err := p.dir(h)
	if err != nil {
		return LoadStats{}, err
	}

	r, err := mmap.Open(file)
	if err != nil {
		return LoadStats{}, streamErr("load", file, err)
	}
	defer r.Close()

	var hdr [snapHeaderSize]byte
	n, _ := r.ReadAt(hdr[:], 0)
	sh, err := decodeSnapHeader(hdr[:n])
	if err != nil {
		p.logger.LogAttrs(p.context, slog.LevelWarn, "pool: corrupted snapshot", slog.String("file", file), slog.Any("err", err))
		return LoadStats{}, streamErr("load", file, err)
	}
	size := min(sh.Size, uint64(r.Len()-snapHeaderSize))
	payload := make([]byte, size)
	if _, err := r.ReadAt(payload, snapHeaderSize); err != nil {
		return LoadStats{}, streamErr("load", file, err)
	}

	clip, err := decodeSnapshot(sh, payload, depth)
	if err != nil {
		p.logger.LogAttrs(p.context, slog.LevelWarn, "pool: corrupted snapshot", slog.String("file", file), slog.Any("err", err))
		return LoadStats{}, streamErr("load", file, err)
	}
	defer clip.Free()

	l := p.newLoader(d, file, -1, mkdir)
	l.apply(clip.dir)
	l.done("snapshot")
	return l.stats, nil
}
