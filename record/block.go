package record

import (
	"bytes"
	"fmt"
	"time"
)

// Offsets and widths of the 512-byte tar header block, per the record
// parser's header layout table.
const (
	offName     = 0
	widName     = 100
	offMode     = 100
	widMode     = 8
	offUid      = 108
	widUid      = 8
	offGid      = 116
	widGid      = 8
	offSize     = 124
	widSize     = 12
	offMtime    = 136
	widMtime    = 12
	offChksum   = 148
	widChksum   = 8
	offTypeflag = 156
	offLinkname = 157
	widLinkname = 100
	offExtra    = 257
	widExtra    = 255

	offMagic   = 257
	widMagic   = 6
	offVersion = 263
	widVersion = 2
	offRest    = 265

	// Within the 247-byte "rest" of extra, common to POSIX and GNU.
	relUname    = 0
	widUname    = 32
	relGname    = 32
	widGname    = 32
	relDevmajor = 64
	widDevmajor = 8
	relDevminor = 72
	widDevminor = 8

	// POSIX-specific, relative to offRest.
	relPrefix = 80
	widPrefix = 155

	// GNU-specific, relative to offRest.
	relAtime      = 80
	widAtime      = 12
	relCtime      = 92
	widCtime      = 12
	relGNUOffset  = 104
	widGNUOffset  = 12
	relSparse     = 121
	widSparseOne  = 24 // one (offset[12]+numbytes[12]) pair
	numInlineSpd  = 4
	relIsExtended = 121 + numInlineSpd*widSparseOne
	relRealSize   = relIsExtended + 1
	widRealSize   = 12
)

var (
	posixMagic   = [widMagic]byte{'u', 's', 't', 'a', 'r', 0}
	posixVersion = [widVersion]byte{'0', '0'}
	gnuMagic     = [widMagic]byte{'u', 's', 't', 'a', 'r', ' '}
	gnuVersion   = [widVersion]byte{' ', 0}
)

func detectFormat(blk []byte) Format {
	magic := blk[offMagic : offMagic+widMagic]
	version := blk[offVersion : offVersion+widVersion]
	switch {
	case bytes.Equal(magic, gnuMagic[:]) && bytes.Equal(version, gnuVersion[:]):
		return FormatGNU
	case bytes.Equal(magic, posixMagic[:]) && bytes.Equal(version, posixVersion[:]):
		return FormatUSTAR
	default:
		return FormatV7
	}
}

// decodeHeader decodes the 512-byte header block blk into a Header.
func decodeHeader(blk []byte) (*Header, error) {
	hdr := &Header{}

	var err error
	hdr.Typeflag = blk[offTypeflag]
	if hdr.Name, err = parseString(blk[offName : offName+widName]); err != nil {
		return nil, err
	}
	if hdr.Linkname, err = parseString(blk[offLinkname : offLinkname+widLinkname]); err != nil {
		return nil, err
	}
	if hdr.Size, err = parseOctal(blk[offSize : offSize+widSize]); err != nil {
		return nil, err
	}
	if hdr.Mode, err = parseOctal(blk[offMode : offMode+widMode]); err != nil {
		return nil, err
	}
	if hdr.Uid, err = parseOctal(blk[offUid : offUid+widUid]); err != nil {
		return nil, err
	}
	if hdr.Gid, err = parseOctal(blk[offGid : offGid+widGid]); err != nil {
		return nil, err
	}
	mtime, err := parseOctal(blk[offMtime : offMtime+widMtime])
	if err != nil {
		return nil, err
	}
	hdr.Mtime = time.Unix(mtime, 0).UTC()

	if hdr.Typeflag == TypeRegA && len(hdr.Name) > 0 && hdr.Name[len(hdr.Name)-1] == '/' {
		hdr.Typeflag = TypeDir
	} else if hdr.Typeflag == TypeRegA {
		hdr.Typeflag = TypeReg
	}

	hdr.Format = detectFormat(blk)
	if hdr.Format == FormatV7 {
		return hdr, nil
	}

	rest := blk[offRest:]
	if hdr.Uname, err = parseString(rest[relUname : relUname+widUname]); err != nil {
		return nil, err
	}
	if hdr.Gname, err = parseString(rest[relGname : relGname+widGname]); err != nil {
		return nil, err
	}
	if hdr.Devmajor, err = parseOctal(rest[relDevmajor : relDevmajor+widDevmajor]); err != nil {
		return nil, err
	}
	if hdr.Devminor, err = parseOctal(rest[relDevminor : relDevminor+widDevminor]); err != nil {
		return nil, err
	}

	switch hdr.Format {
	case FormatUSTAR:
		prefix, err := parseString(rest[relPrefix : relPrefix+widPrefix])
		if err != nil {
			return nil, err
		}
		hdr.Prefix = prefix
	case FormatGNU:
		if b := rest[relAtime : relAtime+widAtime]; b[0] != 0 {
			v, err := parseOctal(b)
			if err != nil {
				return nil, err
			}
			hdr.Atime = time.Unix(v, 0).UTC()
		}
		if b := rest[relCtime : relCtime+widCtime]; b[0] != 0 {
			v, err := parseOctal(b)
			if err != nil {
				return nil, err
			}
			hdr.Ctime = time.Unix(v, 0).UTC()
		}
		if hdr.GNUOffset, err = parseOctal(rest[relGNUOffset : relGNUOffset+widGNUOffset]); err != nil {
			return nil, err
		}

		var inline []SparseEntry
		for i := 0; i < numInlineSpd; i++ {
			entryOff := relSparse + i*widSparseOne
			off, err := parseOctal(rest[entryOff : entryOff+12])
			if err != nil {
				return nil, err
			}
			num, err := parseOctal(rest[entryOff+12 : entryOff+24])
			if err != nil {
				return nil, err
			}
			if off == 0 && num == 0 {
				continue // unused slot
			}
			inline = append(inline, SparseEntry{Offset: off, NumBytes: num})
		}
		hdr.Sparse = inline

		isExtended := parseBool(rest[relIsExtended : relIsExtended+1])
		if hdr.RealSize, err = parseOctal(rest[relRealSize : relRealSize+widRealSize]); err != nil {
			return nil, err
		}
		if isExtended {
			// Marker consumed by parseOldGNUSparseExtensions (called from
			// Parse in record.go); nothing more to do here.
			hdr.Sparse = append(hdr.Sparse, SparseEntry{Offset: -1, NumBytes: -1})
		}
	}

	return hdr, nil
}

// parseOldGNUSparseExtensions reads the chain of 512-byte extension blocks
// that follow a GNU-format sparse header when its isextended flag is set.
// Each block holds 21 more sparse records, an isextended byte, and 7 bytes
// of padding; the chain ends at the first block reporting isextended=false.
//
// sparse is the inline sparse list already decoded from the main header; if
// its last entry is the internal continuation marker {-1,-1}, more blocks
// follow in buf. Returns the number of bytes consumed from buf and the
// fully assembled sparse list (marker stripped).
func parseOldGNUSparseExtensions(buf []byte, sparse []SparseEntry) (int, []SparseEntry, error) {
	if len(sparse) == 0 || sparse[len(sparse)-1] != (SparseEntry{Offset: -1, NumBytes: -1}) {
		return 0, sparse, nil
	}
	sparse = sparse[:len(sparse)-1]

	const numPerBlock = 21
	consumed := 0
	for {
		if len(buf)-consumed < blockSize {
			return 0, nil, fmt.Errorf("%w: truncated GNU sparse extension block", ErrTruncated)
		}
		blk := buf[consumed : consumed+blockSize]
		consumed += blockSize

		for i := 0; i < numPerBlock; i++ {
			entryOff := i * 24
			off, err := parseOctal(blk[entryOff : entryOff+12])
			if err != nil {
				return 0, nil, err
			}
			num, err := parseOctal(blk[entryOff+12 : entryOff+24])
			if err != nil {
				return 0, nil, err
			}
			if off == 0 && num == 0 {
				continue
			}
			sparse = append(sparse, SparseEntry{Offset: off, NumBytes: num})
		}

		isExtended := parseBool(blk[numPerBlock*24 : numPerBlock*24+1])
		if !isExtended {
			return consumed, sparse, nil
		}
	}
}
