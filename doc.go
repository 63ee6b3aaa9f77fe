/*
Package pool implements a hierarchical in-memory associative store: a tree of
directories, each holding key/value-list entries and named subdirectories,
with cached handles, cursors, clipboard copy/paste and file persistence.

We implement:

1. Tokens, tagged scalars (integer, float, symbol, opaque pointer) with a total
order: kinds are ranked, then values compared within a kind.

2. Directories, each with two fixed-size hash tables of sorted chains, one for
entries and one for subdirectories.

3. Pools, store roots that are either private or shared by name through a
Registry and reference counted.

4. Handles and cursors, which address a directory by path and cache it
until it is removed.

5. Persistence in a flat text format, a nested tag format, a binary snapshot
format and as nested buckets in a Bolt database.

# Technical Details

**Buckets.**
A directory's bucket tables have a power-of-two size picked at creation and
never resized. A token's xxhash is XOR-folded down to the table's bit width to
pick its bucket; each bucket keeps a chain sorted by the token order, plus a
count, so counting a directory is proportional to its table size.

**Identity.**
Directories live in an arena and are addressed by slot plus identity stamp.
Removing a directory clears its stamp at once, so cached handles notice, but
the directory is only reclaimed once the last handle lets go of it.

**Ordering.**
Listing functions (Keys, Entries, DirNames) return token order. Ordinal access
(EntryAt, SetAt, UnsetAt) and cursors walk storage order: bucket by bucket,
then along each chain.

## File formats

**Text**: one line per entry, "path , key , values", tokens separated by
spaces. A directory without entries is written as "path , ,".

**Tags**: a declaration line, then <pool> holding nested <dir> elements, each
with a <key> naming it and <value><key>…</key><data>…</data></value> entries.

**Snapshot**: a 32-byte header (magic "POOLSNAP", version, flags, payload
size, xxhash of the payload) followed by a msgpack payload, optionally
zstd-compressed.

**Bolt**: each directory is a bucket; entries are stored under 'v' plus the
msgpack key, subdirectories are nested buckets under 'd' plus the msgpack name.

Pointer tokens are process-local and never written to any file.
*/
package pool
