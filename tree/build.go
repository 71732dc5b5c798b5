package tree

import (
	"strconv"
	"strings"

	"github.com/archtree/tartree/record"
)

// builder carries the three pieces of state that modifier records set for
// the next concrete record: pendingLongName, pendingLongLink, and
// pendingRealSize. This is the only stateful part of the design (see
// spec design notes: "modifier-record state machine").
type builder struct {
	root *TreeEntry

	pendingLongName *string
	pendingLongLink *string
	pendingRealSize *int64
}

// Build folds an ordered record sequence into a root DirTree.
//
// Builder-time protocol violations — a second long-name/long-link arriving
// before the first was consumed, or a PAX header whose contents fail to
// parse — are recovered from silently: the offending modifier is discarded
// and the fold proceeds, per spec §7's "prefer silent recovery in release
// builds so that partially non-conformant archives still yield maximum
// useful content."
func Build(entries []record.Entry) (DirTree, error) {
	b := &builder{root: newDir()}
	for _, e := range entries {
		b.apply(e)
	}
	return b.root.Children, nil
}

func (b *builder) apply(e record.Entry) {
	h := &e.Header

	switch h.Typeflag {
	case record.TypeDir, record.TypeGNUDir:
		b.insertDir(b.effectiveName(h))
		return

	case record.TypeLink, record.TypeSymlink:
		name := b.effectiveName(h)
		target := h.Linkname
		if b.pendingLongLink != nil {
			target = *b.pendingLongLink
			b.pendingLongLink = nil
		}
		b.insertLeaf(name, &TreeEntry{Kind: KindLink, Target: target})
		return

	case record.TypeGNULongName:
		if s, ok := parseNULTerminated(e.Contents); ok && b.pendingLongName == nil {
			b.pendingLongName = &s
		}
		// Already set, or unparsable: discard this modifier, keep fold
		// going with whatever state already exists.
		return

	case record.TypeGNULongLink:
		if s, ok := parseNULTerminated(e.Contents); ok && b.pendingLongLink == nil {
			b.pendingLongLink = &s
		}
		return

	case record.TypeXHeader, record.TypeXHeaderUpper:
		records, err := record.ParsePAXRecords(e.Contents)
		if err != nil {
			return // discard an unparsable PAX block, keep going
		}
		if v, ok := records[record.PAXPath]; ok && b.pendingLongName == nil {
			b.pendingLongName = &v
		}
		if v, ok := records[record.PAXLinkpath]; ok && b.pendingLongLink == nil {
			b.pendingLongLink = &v
		}
		if v, ok := records[record.PAXSize]; ok && b.pendingRealSize == nil {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				b.pendingRealSize = &n
			}
			// A size that fails to parse is ignored, per spec §6.
		}
		return

	case record.TypeXGlobalHeader, record.TypeGNUVolHeader:
		return // ignored

	default:
		// POSIX mandates unknown types be treated as regular files; this
		// also covers TypeReg, TypeCont, vendor-specific bytes, and the
		// old-style GNU sparse typeflag (its sparse map is parsed by
		// package record but never acted on here).
		//
		// package record already sizes e.Contents to the PAX-overridden
		// size (it has to, to find the next header correctly), so this
		// slice is a defensive no-op in well-formed archives. It is kept
		// because pendingRealSize is still the state this fold's modifier
		// protocol tracks, and a PAX record that disagrees with what
		// record.Parse saw — e.g. one rejected there as unparsable but
		// accepted here, or vice versa — should still clip Contents to the
		// smaller of the two rather than exposing an inconsistent length.
		name := b.effectiveName(h)
		size := h.Size
		if b.pendingRealSize != nil {
			size = *b.pendingRealSize
			b.pendingRealSize = nil
		}
		contents := e.Contents
		if size >= 0 && size <= int64(len(contents)) {
			contents = contents[:size]
		}
		b.insertLeaf(name, &TreeEntry{Kind: KindFile, Contents: contents})
		return
	}
}

// effectiveName computes the fully qualified path for a concrete record,
// consuming pendingLongName if set.
func (b *builder) effectiveName(h *record.Header) string {
	if b.pendingLongName != nil {
		name := *b.pendingLongName
		b.pendingLongName = nil
		return name
	}
	if h.Format == record.FormatUSTAR && h.Prefix != "" {
		return h.Prefix + "/" + h.Name
	}
	return h.Name
}

// splitPath splits an effective name on '/', dropping one optional leading
// empty component (produced by a leading slash).
func splitPath(name string) []string {
	parts := strings.Split(name, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	return parts
}

// insertDir descends/creates each component of path as a directory. It is
// idempotent: existing directories are reused. Per Open Question O2 (the
// conservative reading), if a non-directory entry already occupies a
// component the explicit directory record is skipped rather than
// overwriting it — preserving invariant I5 (an explicit record never
// clobbers children already discovered under an inferred directory).
func (b *builder) insertDir(path string) {
	parts := splitPath(path)
	dir := b.root.Children
	for _, c := range parts {
		if c == "" {
			continue
		}
		existing, ok := dir[c]
		if !ok {
			existing = newDir()
			dir[c] = existing
		} else if existing.Kind != KindDir {
			return // O2: skip, preserve the existing (non-directory) entry
		}
		dir = existing.Children
	}
}

// insertLeaf inserts a File or Link leaf at path, creating any missing
// parent directories along the way. A path with no filename component
// (trailing slash) is skipped, as is one whose parent path is blocked by a
// pre-existing non-directory entry.
func (b *builder) insertLeaf(path string, leaf *TreeEntry) {
	parts := splitPath(path)
	// A trailing slash leaves an empty last component: no filename
	// component remains, so there is nothing to insert.
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return
	}

	dir := b.root.Children
	for _, c := range parts[:len(parts)-1] {
		existing, ok := dir[c]
		if !ok {
			existing = newDir()
			dir[c] = existing
		} else if existing.Kind != KindDir {
			return // parent path is blocked by a file or link; skip
		}
		dir = existing.Children
	}
	dir[parts[len(parts)-1]] = leaf
}

// parseNULTerminated decodes a GNU long-name/long-link payload: a
// NUL-padded string (the logical string ends at the first NUL, or at the
// buffer's end).
func parseNULTerminated(b []byte) (string, bool) {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n]), true
}
