package record

import (
	"bytes"
	"fmt"
	"testing"
)

// writeOctalField writes v as a fixed-width NUL-terminated octal field,
// the same encoding parseOctal expects: len(b)-1 octal digits, zero
// padded, followed by a single NUL.
func writeOctalField(b []byte, v int64) {
	s := fmt.Sprintf("%0*o", len(b)-1, v)
	copy(b, s)
	b[len(b)-1] = 0
}

// buildOldGNUSparseHeader hand-assembles a single 512-byte GNU-format
// header block declaring an old-style sparse file with isExtended set, so
// that the extension-block chain in buildOldGNUSparseExtensionBlock is
// read after it. archive/tar's writer never emits this on-disk format (it
// only ever writes PAX sparse maps for Go-authored archives), so there is
// no stdlib cross-check available here the way record_test.go leans on
// elsewhere — this fixture has to be built by hand from the field layout
// in block.go.
func buildOldGNUSparseHeader(t *testing.T, name string, storedSize, realSize int64, inline []SparseEntry) []byte {
	t.Helper()
	blk := make([]byte, blockSize)
	copy(blk[offName:offName+widName], name)
	writeOctalField(blk[offMode:offMode+widMode], 0644)
	writeOctalField(blk[offUid:offUid+widUid], 0)
	writeOctalField(blk[offGid:offGid+widGid], 0)
	writeOctalField(blk[offSize:offSize+widSize], storedSize)
	writeOctalField(blk[offMtime:offMtime+widMtime], 0)
	blk[offTypeflag] = TypeGNUSparse
	copy(blk[offMagic:offMagic+widMagic], gnuMagic[:])
	copy(blk[offVersion:offVersion+widVersion], gnuVersion[:])

	rest := blk[offRest:]
	writeOctalField(rest[relDevmajor:relDevmajor+widDevmajor], 0)
	writeOctalField(rest[relDevminor:relDevminor+widDevminor], 0)
	writeOctalField(rest[relGNUOffset:relGNUOffset+widGNUOffset], 0)

	if len(inline) > numInlineSpd {
		t.Fatalf("test fixture has %d inline sparse entries, max %d", len(inline), numInlineSpd)
	}
	for i, se := range inline {
		entryOff := relSparse + i*widSparseOne
		writeOctalField(rest[entryOff:entryOff+12], se.Offset)
		writeOctalField(rest[entryOff+12:entryOff+24], se.NumBytes)
	}
	rest[relIsExtended] = 1 // more sparse records follow in extension blocks
	writeOctalField(rest[relRealSize:relRealSize+widRealSize], realSize)

	return blk
}

// buildOldGNUSparseExtensionBlock hand-assembles one 512-byte GNU sparse
// extension block: up to 21 more (offset, numbytes) pairs, then an
// isExtended byte. Setting more=true chains another such block after this
// one; the chain's final block must pass more=false to terminate it,
// mirroring parseOldGNUSparseExtensions' own termination condition.
func buildOldGNUSparseExtensionBlock(t *testing.T, entries []SparseEntry, more bool) []byte {
	t.Helper()
	const numPerBlock = 21
	if len(entries) > numPerBlock {
		t.Fatalf("test fixture has %d extension entries, max %d per block", len(entries), numPerBlock)
	}
	blk := make([]byte, blockSize)
	for i, se := range entries {
		entryOff := i * 24
		writeOctalField(blk[entryOff:entryOff+12], se.Offset)
		writeOctalField(blk[entryOff+12:entryOff+24], se.NumBytes)
	}
	if more {
		blk[numPerBlock*24] = 1
	}
	return blk
}

func TestParseOldGNUSparseExtensionsSingleBlock(t *testing.T) {
	sparse := []SparseEntry{{Offset: -1, NumBytes: -1}} // the continuation marker decodeHeader appends
	ext := buildOldGNUSparseExtensionBlock(t, []SparseEntry{{Offset: 0, NumBytes: 100}, {Offset: 4096, NumBytes: 50}}, false)

	consumed, got, err := parseOldGNUSparseExtensions(ext, sparse)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != blockSize {
		t.Errorf("consumed = %d, want %d", consumed, blockSize)
	}
	want := []SparseEntry{{Offset: 0, NumBytes: 100}, {Offset: 4096, NumBytes: 50}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseOldGNUSparseExtensionsChain(t *testing.T) {
	// Two extension blocks: the first has isExtended=true and chains to
	// the second, which terminates the chain. Verifies the loop in
	// parseOldGNUSparseExtensions walks past the first block instead of
	// stopping there.
	sparse := []SparseEntry{{Offset: -1, NumBytes: -1}}
	block1 := buildOldGNUSparseExtensionBlock(t, []SparseEntry{{Offset: 0, NumBytes: 10}}, true)
	block2 := buildOldGNUSparseExtensionBlock(t, []SparseEntry{{Offset: 1000, NumBytes: 20}}, false)
	buf := append(append([]byte{}, block1...), block2...)

	consumed, got, err := parseOldGNUSparseExtensions(buf, sparse)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != 2*blockSize {
		t.Errorf("consumed = %d, want %d (two blocks)", consumed, 2*blockSize)
	}
	want := []SparseEntry{{Offset: 0, NumBytes: 10}, {Offset: 1000, NumBytes: 20}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseOldGNUSparseExtensionsNoMarkerIsNoOp(t *testing.T) {
	// Without the {-1,-1} continuation marker (the common case: a GNU
	// header whose sparse map fit entirely in the four inline slots),
	// parseOldGNUSparseExtensions must not consume anything from buf.
	sparse := []SparseEntry{{Offset: 0, NumBytes: 10}}
	buf := buildOldGNUSparseExtensionBlock(t, []SparseEntry{{Offset: 999, NumBytes: 999}}, false)

	consumed, got, err := parseOldGNUSparseExtensions(buf, sparse)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != 0 {
		t.Errorf("consumed = %d, want 0", consumed)
	}
	if len(got) != 1 || got[0] != sparse[0] {
		t.Errorf("got %+v, want unchanged %+v", got, sparse)
	}
}

func TestParseOldGNUSparseExtensionsTruncated(t *testing.T) {
	sparse := []SparseEntry{{Offset: -1, NumBytes: -1}}
	_, _, err := parseOldGNUSparseExtensions(make([]byte, blockSize-1), sparse)
	if err == nil {
		t.Fatal("expected error for truncated extension block")
	}
}

// TestParseOldStyleGNUSparseFile exercises the whole chain end to end
// through Parse: a hand-built archive containing one GNU old-style sparse
// record whose map overflows into a single extension block, followed by a
// plain file, so a desync in offset bookkeeping shows up as the second
// file being misread.
func TestParseOldStyleGNUSparseFile(t *testing.T) {
	const storedSize = 24 // bytes actually stored in the archive for the sparse file
	hdr := buildOldGNUSparseHeader(t, "sparsefile", storedSize, 1<<20, []SparseEntry{
		{Offset: 0, NumBytes: 8},
		{Offset: 1 << 16, NumBytes: 8},
	})
	ext := buildOldGNUSparseExtensionBlock(t, []SparseEntry{{Offset: 1 << 17, NumBytes: 8}}, false)

	content := bytes.Repeat([]byte("s"), storedSize)
	var buf bytes.Buffer
	buf.Write(hdr)
	buf.Write(ext)
	buf.Write(content)
	buf.Write(make([]byte, blockPadding(storedSize)))

	nextHdr := buildPlainRegularHeader(t, "after", 3)
	buf.Write(nextHdr)
	buf.Write([]byte("abc"))
	buf.Write(make([]byte, blockPadding(3)))
	buf.Write(make([]byte, 2*blockSize)) // end-of-archive marker

	entries, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	sf := entries[0]
	if sf.Header.Name != "sparsefile" || sf.Header.Typeflag != TypeGNUSparse {
		t.Fatalf("entry 0 = %+v, want sparsefile/TypeGNUSparse", sf.Header)
	}
	if len(sf.Header.Sparse) != 3 {
		t.Fatalf("got %d sparse entries, want 3 (2 inline + 1 from extension block)", len(sf.Header.Sparse))
	}
	if len(sf.Contents) != storedSize {
		t.Fatalf("sparsefile contents length = %d, want %d", len(sf.Contents), storedSize)
	}

	after := entries[1]
	if after.Header.Name != "after" || string(after.Contents) != "abc" {
		t.Fatalf("entry 1 = %+v contents=%q, want name=after contents=abc (parser desynced past the sparse extension block)", after.Header, after.Contents)
	}
}

// buildPlainRegularHeader hand-assembles a minimal V7-format regular-file
// header, used as the "next record" sentinel in TestParseOldStyleGNUSparseFile.
func buildPlainRegularHeader(t *testing.T, name string, size int64) []byte {
	t.Helper()
	blk := make([]byte, blockSize)
	copy(blk[offName:offName+widName], name)
	writeOctalField(blk[offMode:offMode+widMode], 0644)
	writeOctalField(blk[offUid:offUid+widUid], 0)
	writeOctalField(blk[offGid:offGid+widGid], 0)
	writeOctalField(blk[offSize:offSize+widSize], size)
	writeOctalField(blk[offMtime:offMtime+widMtime], 0)
	blk[offTypeflag] = TypeReg
	return blk
}
