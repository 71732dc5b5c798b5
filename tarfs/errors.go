package tarfs

import "errors"

var (
	// ErrNotFound reports that path resolution produced no entry — either
	// a missing component, trailing components after reaching a file (the
	// strict reading of Open Question O3), or a link-resolution chain that
	// exceeded its cap. All three collapse to the same user-visible kind
	// per the design's error taxonomy: only NotFound and NotSupported are
	// ever surfaced past construction.
	ErrNotFound = errors.New("tarfs: not found")

	// ErrNotSupported reports a mutating operation. The tree is read-only.
	ErrNotSupported = errors.New("tarfs: not supported")

	// ErrNotDir reports that a directory operation (ReadDir) was attempted
	// on a file.
	ErrNotDir = errors.New("tarfs: not a directory")

	// ErrDir reports that a file operation (Open for reading, ReadFile)
	// was attempted on a directory.
	ErrDir = errors.New("tarfs: is a directory")

	// ErrLinkLoop reports that link resolution exceeded its configured
	// chain length. Wrapped as ErrNotFound at the boundary (see above).
	ErrLinkLoop = errors.New("tarfs: link resolution chain too long")
)
