// Package offsetindex persists, keyed by a cheap fingerprint of an
// archive's bytes, enough of package record's decoded output (every
// entry's typeflag, names, and the byte offsets of its header and
// content) that a later run recognizing the same archive can rebuild the
// exact same []record.Entry slice tree.Build needs by slicing a fresh
// buffer at the recorded offsets — skipping record.Parse's header-decode
// loop entirely — instead of re-scanning the archive from byte zero.
//
// This is a pure cache. Nothing in package tarfs or package tree consults
// it, and a missing or stale entry just means paying for a full parse
// again; it never changes the result of a lookup, only its cost. That
// keeps spec.md §6's "persisted state: none" true of the core library —
// the cache lives here, next to the server process, not inside tarfs.FS.
package offsetindex

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"

	"github.com/archtree/tartree/record"
)

// sampleSize bounds how much of a (possibly huge) archive Fingerprint
// reads, so fingerprinting stays cheap even for multi-gigabyte tarballs.
const sampleSize = 64 * 1024

// Fingerprint is a cheap, non-cryptographic identity for an archive
// buffer: its length plus a digest of its first and last sampleSize
// bytes. Two different archives of the same length that happen to share
// both samples would collide; that risk is acceptable for a cache key
// whose only consequence on a miss is a slower re-parse.
func Fingerprint(buf []byte) uint64 {
	h := xxhash.New()
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(buf)))
	h.Write(lenBuf[:])

	head := buf
	if len(head) > sampleSize {
		head = head[:sampleSize]
	}
	h.Write(head)

	if len(buf) > sampleSize {
		tail := buf[len(buf)-sampleSize:]
		h.Write(tail)
	}
	return h.Sum64()
}

// Index is a handle onto an on-disk pebble store of archive-fingerprint ->
// serialized-entry-list entries.
type Index struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a pebble store at dir.
func Open(dir string) (*Index, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("offsetindex: opening %s: %w", dir, err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

func key(fp uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], fp)
	return k[:]
}

// cachedRecord is the subset of record.Entry's fields that package tree's
// Build actually reads (see tree/build.go's apply/effectiveName), plus
// the byte offsets needed to re-slice Contents out of a fresh buffer.
// Header.Size, which Build also reads, is not stored separately: Load
// sets it to the stored content length. Sparse maps, timestamps, and the other header fields tree.Build never
// looks at are intentionally not persisted — there is nothing for a
// lookup-tree cache to do with them.
type cachedRecord struct {
	Typeflag      byte
	Format        int32
	Name          string
	Linkname      string
	Prefix        string
	HeaderOffset  int64
	ContentOffset int64
	ContentSize   int64
}

// Store persists entries (package record's full decoded output for one
// archive) under fingerprint fp, overwriting whatever was stored there
// before.
func (x *Index) Store(fp uint64, entries []record.Entry) error {
	cached := make([]cachedRecord, len(entries))
	for i, e := range entries {
		cached[i] = cachedRecord{
			Typeflag:      e.Header.Typeflag,
			Format:        int32(e.Header.Format),
			Name:          e.Header.Name,
			Linkname:      e.Header.Linkname,
			Prefix:        e.Header.Prefix,
			HeaderOffset:  e.HeaderOffset,
			ContentOffset: e.ContentOffset,
			ContentSize:   int64(len(e.Contents)),
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cached); err != nil {
		return fmt.Errorf("offsetindex: encoding: %w", err)
	}
	if err := x.db.Set(key(fp), buf.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("offsetindex: storing: %w", err)
	}
	return nil
}

// Load reconstructs the []record.Entry slice previously stored under fp,
// slicing Contents directly out of buf at each entry's recorded offset
// rather than re-running record.Parse's header-decode loop. buf must be
// the same archive bytes the entries were originally parsed from — a
// fingerprint collision between two different archives of matching length
// and sampled bytes would produce garbage Contents slices here, which is
// why Fingerprint's collision risk, while low, is not zero; callers that
// care can re-verify a handful of entries against buf before trusting a
// hit, though cmd/tartreed does not (a definitively-identified archive
// collision is exceedingly unlikely and the cost of being wrong is a
// confusing listing, not an unsafe one: every slice stays within buf's
// bounds, or Load returns an error).
func (x *Index) Load(fp uint64, buf []byte) ([]record.Entry, bool, error) {
	v, closer, err := x.db.Get(key(fp))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("offsetindex: get: %w", err)
	}
	defer closer.Close()

	var cached []cachedRecord
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&cached); err != nil {
		return nil, false, fmt.Errorf("offsetindex: decoding: %w", err)
	}

	entries := make([]record.Entry, len(cached))
	for i, c := range cached {
		end := c.ContentOffset + c.ContentSize
		if c.ContentOffset < 0 || end < c.ContentOffset || end > int64(len(buf)) {
			return nil, false, fmt.Errorf("offsetindex: cached entry %q out of range for buffer of length %d", c.Name, len(buf))
		}
		entries[i] = record.Entry{
			Header: record.Header{
				Typeflag: c.Typeflag,
				Format:   record.Format(c.Format),
				Name:     c.Name,
				Linkname: c.Linkname,
				Prefix:   c.Prefix,
				Size:     c.ContentSize,
			},
			Contents:      buf[c.ContentOffset:end],
			HeaderOffset:  c.HeaderOffset,
			ContentOffset: c.ContentOffset,
		}
	}
	return entries, true, nil
}
