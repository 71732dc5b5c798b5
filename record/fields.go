package record

import (
	"fmt"
	"unicode/utf8"
)

// parseString decodes a fixed-width string field: it ends at the first NUL
// byte, or at the field width if no NUL is present. The result must be
// valid UTF-8.
func parseString(b []byte) (string, error) {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	s := string(b[:n])
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: non-UTF-8 string field %q", ErrHeader, s)
	}
	return s, nil
}

// parseOctal decodes a fixed-width ASCII octal integer field. A NUL or
// end-of-field terminates the field, and ASCII spaces just before that
// terminator are skipped. Leading spaces are allowed before the digits
// start. An empty digit run decodes as 0.
func parseOctal(b []byte) (int64, error) {
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	start := 0
	for start < end && b[start] == ' ' {
		start++
	}

	var v int64
	for i := start; i < end; i++ {
		c := b[i]
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("%w: non-octal byte %q in numeric field", ErrHeader, c)
		}
		v = v<<3 | int64(c-'0')
	}
	return v, nil
}

// parseBool decodes a single boolean byte: non-zero is true.
func parseBool(b []byte) bool {
	return len(b) > 0 && b[0] != 0
}
