package record

import (
	"fmt"
	"strconv"
)

// ParsePAXRecords parses a PAX extended header's contents area into its
// key/value records. Each record is formatted as:
//
//	<len> <SP> <key> = <value> <LF>
//
// where <len> is the decimal length of the complete record, including
// itself, the separating space, '=', and the trailing newline.
//
// Unrecognized keys are retained in the returned map; it is the caller's
// job (package tree) to act only on the keys it understands ("path",
// "linkpath", "size") and silently ignore the rest.
func ParsePAXRecords(contents []byte) (map[string]string, error) {
	records := make(map[string]string)
	b := contents
	for len(b) > 0 {
		sp := indexByte(b, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: malformed PAX record (no length)", ErrHeader)
		}
		n, err := strconv.Atoi(string(b[:sp]))
		if err != nil || n <= sp+1 || n > len(b) {
			return nil, fmt.Errorf("%w: malformed PAX record length", ErrHeader)
		}
		rec := b[:n]
		if rec[n-1] != '\n' {
			return nil, fmt.Errorf("%w: PAX record missing trailing newline", ErrHeader)
		}

		kv := rec[sp+1 : n-1]
		eq := indexByte(kv, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: malformed PAX record (no '=')", ErrHeader)
		}
		key := string(kv[:eq])
		value := string(kv[eq+1:])
		records[key] = value

		b = b[n:]
	}
	return records, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// PAX keys this package's caller (tree.Build) understands.
const (
	PAXPath     = "path"
	PAXLinkpath = "linkpath"
	PAXSize     = "size"
)
