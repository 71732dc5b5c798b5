package main

import (
	"flag"
	"fmt"
	"path"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/archtree/tartree/tarfs"
)

// runWalk prints every path under the given directory (default: root).
// Sibling directories are fanned out across goroutines with errgroup,
// grounded on distr1-distri's use of the same package for "do N
// independent things, collect the first error" — a shape that also
// appears, less formally, in the teacher's internal/spinner/concurrent.go.
func runWalk(args []string) error {
	fset := flag.NewFlagSet("walk", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() < 1 || fset.NArg() > 2 {
		return fmt.Errorf("syntax: tartree walk <archive> [path]")
	}
	archivePath := fset.Arg(0)
	root := "."
	if fset.NArg() == 2 {
		root = fset.Arg(1)
	}

	fsys, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer fsys.Close()

	lines, err := walkDir(fsys, root)
	if err != nil {
		return err
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

func walkDir(fsys *tarfs.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	lines := make([][]string, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		i, e := i, e
		childPath := path.Join(dir, e.Name())
		if dir == "." {
			childPath = e.Name()
		}
		lines[i] = []string{childPath}
		if !e.IsDir() {
			continue
		}
		g.Go(func() error {
			sub, err := walkDir(fsys, childPath)
			if err != nil {
				return fmt.Errorf("%s: %w", childPath, err)
			}
			lines[i] = append(lines[i], sub...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for _, l := range lines {
		out = append(out, l...)
	}
	return out, nil
}
