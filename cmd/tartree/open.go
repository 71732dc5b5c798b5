package main

import (
	"fmt"

	"github.com/archtree/tartree/tarfs"
	"github.com/archtree/tartree/tarfs/tardecomp"
	"github.com/archtree/tartree/tarfs/tarmmap"
)

// openArchive mmaps path, transparently decompresses it, and builds a
// tarfs.FS over the result. The returned FS's Close releases the mapping
// (or, for a compressed archive, simply drops the decompressed copy —
// there is nothing to unmap in that case, since Decompress already copied
// out of the mapping).
func openArchive(path string) (*tarfs.FS, error) {
	mapped, err := tarmmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	buf, err := tardecomp.Decompress(mapped.Bytes)
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}

	opts := []tarfs.Option{tarfs.WithResolveCache(1024)}
	stillMapped := len(buf) > 0 && len(mapped.Bytes) > 0 && &buf[0] == &mapped.Bytes[0]
	if stillMapped {
		// Decompress returned buf unchanged: still backed by the mapping,
		// so FS.Close must unmap it.
		opts = append(opts, tarfs.WithCloser(mapped))
	} else {
		mapped.Close()
	}

	fsys, err := tarfs.New(buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("building tree for %s: %w", path, err)
	}
	return fsys, nil
}
