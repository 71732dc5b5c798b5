// Package tarfs implements the lookup engine (spec §4.3) over a tree built
// by package tree, and adapts it to the standard library's io/fs
// abstraction — the "outer virtual-filesystem interface" spec.md §1 treats
// as an external collaborator.
package tarfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/archtree/tartree/record"
	"github.com/archtree/tartree/tree"
)

// FS is a read-only view over a tar archive's directory tree. It is safe
// for concurrent use once constructed: per spec §5, the tree is immutable
// after construction, and the optional resolve cache locks internally.
type FS struct {
	root         tree.DirTree
	maxLinkChain int
	cache        *resolveCache

	closer    io.Closer
	closeOnce sync.Once
}

// Option configures an FS at construction.
type Option func(*FS)

// WithMaxLinkChain overrides the default cap (40) on chained symlink and
// hardlink resolutions per lookup.
func WithMaxLinkChain(n int) Option {
	return func(f *FS) { f.maxLinkChain = n }
}

// WithResolveCache enables the tinylfu-backed admission cache of resolved
// lookups, sized for approximately n distinct paths. Zero (the default)
// disables caching.
func WithResolveCache(n int) Option {
	return func(f *FS) { f.cache = newResolveCache(n) }
}

// WithCloser attaches a resource (typically an mmap from tarmmap) that
// FS.Close releases exactly once. The archive buffer passed to New must remain valid until Close.
func WithCloser(c io.Closer) Option {
	return func(f *FS) { f.closer = c }
}

// New parses buf as a tar archive and builds its directory tree. buf must
// remain valid (and unmodified) for the lifetime of the returned FS.
func New(buf []byte, opts ...Option) (*FS, error) {
	entries, err := record.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("tarfs: parsing archive: %w", err)
	}
	return NewFromEntries(entries, opts...)
}

// NewFromEntries builds a directory tree directly from an already-decoded
// entry list, skipping record.Parse entirely. This is the hook
// internal/offsetindex's cache hits use: entries reconstructed from a
// fingerprint lookup plus a fresh buffer slice are exactly as valid an
// input to tree.Build as a fresh record.Parse's output.
func NewFromEntries(entries []record.Entry, opts ...Option) (*FS, error) {
	root, err := tree.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("tarfs: building tree: %w", err)
	}

	f := &FS{root: root, maxLinkChain: defaultMaxLinkChain}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close releases the resource supplied via WithCloser, exactly once. It is
// safe to call Close while fs.File handles obtained from this FS are still
// open: per spec §5 this mirrors an mmap's "transparent" page faults — the
// caller's responsibility not to read through a closed mapping afterward
// is documented, not enforced.
func (f *FS) Close() error {
	var err error
	f.closeOnce.Do(func() {
		if f.closer != nil {
			err = f.closer.Close()
		}
	})
	return err
}

// lookupPath maps an io/fs name (which may be ".") to the internal
// permissive path syntax resolve() expects (where "" means root).
func lookupPath(name string) string {
	if name == "." {
		return ""
	}
	return name
}

func (f *FS) resolve(name string) (*tree.TreeEntry, error) {
	if r, ok := f.cache.get(name); ok {
		return r.entry, r.err
	}
	entry, err := resolve(f.root, name, f.maxLinkChain)
	f.cache.add(name, &resolveResult{entry: entry, err: err})
	return entry, err
}

func notExistOrErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fs.ErrNotExist
	}
	return err
}

// Open implements fs.FS. name follows io/fs.ValidPath rules — absolute
// paths, "." and ".." components, empty components, and trailing slashes
// are all fs.ErrInvalid — a stricter outer layer in front of spec §4.3's
// more permissive internal path syntax (which treats ".."  as a literal
// component name).
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	entry, err := f.resolve(lookupPath(name))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: notExistOrErr(err)}
	}
	switch entry.Kind {
	case tree.KindDir:
		return newOpenDir(name, entry.Children), nil
	case tree.KindFile:
		return newOpenFile(name, entry.Contents), nil
	default:
		// resolve() never returns a Link: it always follows it to a
		// terminal File or Directory, or fails.
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	entry, err := f.resolve(lookupPath(name))
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: notExistOrErr(err)}
	}
	return fileInfoFor(path.Base(name), entry), nil
}

// ReadDir implements fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	entry, err := f.resolve(lookupPath(name))
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: notExistOrErr(err)}
	}
	if entry.Kind != tree.KindDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDir}
	}
	return dirEntriesFor(entry.Children), nil
}

// ReadFile implements fs.ReadFileFS. The returned slice is a copy: unlike
// the tree's own File nodes, io/fs.ReadFile's contract does not let callers
// know the bytes are borrowed from the archive buffer, so handing out the
// zero-copy slice directly would silently violate that contract the moment
// a caller mutated it.
func (f *FS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	entry, err := f.resolve(lookupPath(name))
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: notExistOrErr(err)}
	}
	if entry.Kind != tree.KindFile {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrDir}
	}
	out := make([]byte, len(entry.Contents))
	copy(out, entry.Contents)
	return out, nil
}

// Glob implements fs.GlobFS with doublestar ("**") support, beyond the
// single-level matching path.Match gives plain fs.Glob implementations.
func (f *FS) Glob(pattern string) ([]string, error) {
	return doublestar.Glob(f, pattern)
}

// CreateDir, CreateFile, AppendFile, RemoveFile, RemoveDir, and RemoveAll
// are spec §4.3's six mutation endpoints. FS is a read-only view built
// once over an immutable archive buffer (spec §5); every one of them
// fails with ErrNotSupported, unconditionally, the same way the FUSE
// layer's treeFS falls back to ENOSYS by embedding
// fuseutil.NotImplementedFileSystem instead of implementing Mkdir,
// CreateFile, and friends. These stubs are that same "not supported"
// error kind expressed at the io/fs boundary, where there is no
// not-implemented base type to embed.
func (f *FS) CreateDir(name string) error {
	return &fs.PathError{Op: "create_dir", Path: name, Err: ErrNotSupported}
}

func (f *FS) CreateFile(name string) error {
	return &fs.PathError{Op: "create_file", Path: name, Err: ErrNotSupported}
}

func (f *FS) AppendFile(name string, data []byte) error {
	return &fs.PathError{Op: "append_file", Path: name, Err: ErrNotSupported}
}

func (f *FS) RemoveFile(name string) error {
	return &fs.PathError{Op: "remove_file", Path: name, Err: ErrNotSupported}
}

func (f *FS) RemoveDir(name string) error {
	return &fs.PathError{Op: "remove_dir", Path: name, Err: ErrNotSupported}
}

func (f *FS) RemoveAll(name string) error {
	return &fs.PathError{Op: "remove_all", Path: name, Err: ErrNotSupported}
}

var (
	_ fs.FS         = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
	_ fs.GlobFS     = (*FS)(nil)
)
