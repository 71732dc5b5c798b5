package tarfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/archtree/tartree/tree"
)

// Permission bits and modification times are not part of the tree's data
// model (spec.md §1 names permission bits a non-goal outright); every node
// reports the same fixed mode and the zero time, rather than fabricating
// metadata the archive parser never retained.
const (
	fileMode = fs.FileMode(0o444)
	dirMode  = fs.FileMode(0o755) | fs.ModeDir
)

type fileInfo struct {
	name  string
	kind  tree.Kind
	size  int64
}

func fileInfoFor(name string, e *tree.TreeEntry) fileInfo {
	fi := fileInfo{name: name, kind: e.Kind}
	if e.Kind == tree.KindFile {
		fi.size = int64(len(e.Contents))
	}
	return fi
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) Sys() any           { return nil }
func (fi fileInfo) IsDir() bool        { return fi.kind == tree.KindDir }
func (fi fileInfo) Mode() fs.FileMode {
	if fi.kind == tree.KindDir {
		return dirMode
	}
	return fileMode
}

// dirEntryAdapter implements fs.DirEntry for one child of a resolved
// directory.
type dirEntryAdapter struct {
	fi fileInfo
}

func (d dirEntryAdapter) Name() string               { return d.fi.name }
func (d dirEntryAdapter) IsDir() bool                 { return d.fi.IsDir() }
func (d dirEntryAdapter) Type() fs.FileMode           { return d.fi.Mode().Type() }
func (d dirEntryAdapter) Info() (fs.FileInfo, error)  { return d.fi, nil }

func dirEntriesFor(children tree.DirTree) []fs.DirEntry {
	out := make([]fs.DirEntry, 0, len(children))
	for name, e := range children {
		out = append(out, dirEntryAdapter{fi: fileInfoFor(name, e)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// openFile adapts a resolved File leaf's zero-copy byte slice to fs.File,
// io.ReaderAt, and io.Seeker.
type openFile struct {
	name string
	r    *bytes.Reader
	size int64
}

func newOpenFile(name string, contents []byte) *openFile {
	return &openFile{name: name, r: bytes.NewReader(contents), size: int64(len(contents))}
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(f.name), kind: tree.KindFile, size: f.size}, nil
}
func (f *openFile) Read(p []byte) (int, error)                { return f.r.Read(p) }
func (f *openFile) ReadAt(p []byte, off int64) (int, error)    { return f.r.ReadAt(p, off) }
func (f *openFile) Seek(offset int64, whence int) (int64, error) { return f.r.Seek(offset, whence) }
func (f *openFile) Close() error                               { return nil }

var (
	_ io.ReaderAt = (*openFile)(nil)
	_ io.Seeker   = (*openFile)(nil)
)

// openDir adapts a resolved Directory leaf to fs.File + fs.ReadDirFile, the
// shape io/fs requires from Open on a directory.
type openDir struct {
	name     string
	entries  []fs.DirEntry
	offset   int
}

func newOpenDir(name string, children tree.DirTree) *openDir {
	return &openDir{name: name, entries: dirEntriesFor(children)}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(d.name), kind: tree.KindDir}, nil
}
func (d *openDir) Read([]byte) (int, error) { return 0, &fs.PathError{Op: "read", Path: d.name, Err: ErrDir} }
func (d *openDir) Close() error              { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if n <= 0 {
		rest := d.entries[d.offset:]
		d.offset = len(d.entries)
		return rest, nil
	}
	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}
	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}
	rest := d.entries[d.offset:end]
	d.offset = end
	return rest, nil
}

var _ fs.ReadDirFile = (*openDir)(nil)
