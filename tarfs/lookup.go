package tarfs

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/archtree/tartree/tree"
)

// defaultMaxLinkChain is the recommended cap from the lookup engine design
// (§4.3): the number of chained symlink/hardlink resolutions permitted
// before a lookup fails rather than looping.
const defaultMaxLinkChain = 40

// splitPath splits a path on '/', dropping one optional leading empty
// component. It does not special-case "." or ".." — per §4.3, those become
// literal component keys when they appear in a *user* path (only link
// targets interpret them).
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	return parts
}

// walkOnce descends components through root without following any link it
// encounters. It returns the leaf TreeEntry reached, the index within
// components at which it was found (so the caller can recover the leaf's
// own parent path), and the unconsumed tail of components.
//
// Reaching a File with components still unconsumed is Open Question O3's
// strict reading: treated identically to a missing path. A Link may be
// returned with components still unconsumed — the caller resolves it and
// resumes the walk with the new path plus that tail.
func walkOnce(root tree.DirTree, components []string) (entry *tree.TreeEntry, atIndex int, remaining []string, err error) {
	cur := root
	for i, c := range components {
		e, ok := cur[c]
		if !ok {
			return nil, 0, nil, ErrNotFound
		}
		switch e.Kind {
		case tree.KindDir:
			cur = e.Children
		case tree.KindFile:
			if i != len(components)-1 {
				return nil, 0, nil, ErrNotFound
			}
			return e, i, nil, nil
		case tree.KindLink:
			return e, i, components[i+1:], nil
		}
	}
	return &tree.TreeEntry{Kind: tree.KindDir, Children: cur}, len(components), nil, nil
}

// resolveLinkTarget computes the component list a link's target resolves
// to, relative to the components that make up the link's own parent
// directory (parent does not include the link's own name).
func resolveLinkTarget(parent []string, target string) []string {
	var base []string
	if strings.HasPrefix(target, "/") {
		base = nil
	} else {
		base = append([]string(nil), parent...)
	}
	for _, c := range strings.Split(target, "/") {
		switch c {
		case "", ".":
			continue
		case "..":
			if len(base) > 0 {
				base = base[:len(base)-1]
			}
		default:
			base = append(base, c)
		}
	}
	return base
}

// resolve walks path from root, transparently following symlinks and
// hardlinks (both stored as tree.KindLink), and returns the final
// non-link entry: a File or a Directory.
//
// Loop protection is two-layered, per the domain-stack expansion: a hard
// cap of maxChain hops (the spec's own "configurable maximum of chained
// resolutions"), and an xxhash-keyed set of already-visited resolved paths
// that catches a short cycle (a -> b -> a) well before the counter would.
func resolve(root tree.DirTree, path string, maxChain int) (*tree.TreeEntry, error) {
	components := splitPath(path)
	visited := make(map[uint64]struct{})

	for hop := 0; ; hop++ {
		if hop > maxChain {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, ErrLinkLoop)
		}
		key := xxhash.Sum64String(strings.Join(components, "/"))
		if _, seen := visited[key]; seen {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, ErrLinkLoop)
		}
		visited[key] = struct{}{}

		entry, at, remaining, err := walkOnce(root, components)
		if err != nil {
			return nil, err
		}
		if entry.Kind != tree.KindLink {
			return entry, nil
		}

		next := resolveLinkTarget(components[:at], entry.Target)
		components = append(next, remaining...)
	}
}
