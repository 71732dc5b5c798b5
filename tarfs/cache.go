package tarfs

import (
	"hash/maphash"
	"sync"

	"github.com/dgryski/go-tinylfu"

	"github.com/archtree/tartree/tree"
)

// resolveCache is a small admission-controlled cache of resolve() results,
// keyed by the original (pre-resolution) path string. It never affects
// correctness — a miss just falls through to a fresh walk — and is never
// consulted during tree construction, only by repeated queries against an
// already-built FS. Grounded on internal/spinner's tinylfu.New blocks in
// the teacher (same New/Get/Add shape, ported from a byte-block cache to a
// path-resolution cache). tinylfu.T updates its own state on every Get and
// Add, so mu serializes access for concurrent queries against one FS.
type resolveCache struct {
	mu sync.Mutex
	t  *tinylfu.T[string, *resolveResult]
}

// resolveResult is what gets cached: either the resolved leaf, or the
// error resolve() returned (not found, link loop). Caching negative
// results matters here, since a missing-path lookup is exactly as cheap to
// repeat badly (e.g. a glob probing many candidates) as a hit.
type resolveResult struct {
	entry *tree.TreeEntry
	err   error
}

var cacheSeed = maphash.MakeSeed()

func pathHasher(k string) uint64 {
	return maphash.String(cacheSeed, k)
}

func newResolveCache(size int) *resolveCache {
	if size <= 0 {
		return nil
	}
	return &resolveCache{t: tinylfu.New[string, *resolveResult](size, size*10, pathHasher)}
}

func (c *resolveCache) get(path string) (*resolveResult, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Get(path)
}

func (c *resolveCache) add(path string, r *resolveResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t.Add(path, r)
}
