// Command tartreefuse mounts a tar archive's directory tree (spec.md's
// read-only metadata/read_dir/open_file view) as a real, read-only FUSE
// filesystem, grounded on the teacher pack's distr1-distri
// internal/fuse/fuse.go Mount function.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/archtree/tartree/record"
	"github.com/archtree/tartree/tarfs/tardecomp"
	"github.com/archtree/tartree/tarfs/tarmmap"
	"github.com/archtree/tartree/tree"
)

func main() {
	fset := flag.NewFlagSet("tartreefuse", flag.ExitOnError)
	debug := fset.Bool("debug", false, "log every FUSE operation to stderr")
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: tartreefuse [flags] <archive> <mountpoint>")
		fset.PrintDefaults()
	}
	fset.Parse(os.Args[1:])
	if fset.NArg() != 2 {
		fset.Usage()
		os.Exit(2)
	}
	archivePath, mountpoint := fset.Arg(0), fset.Arg(1)

	if err := run(archivePath, mountpoint, *debug); err != nil {
		log.Fatalf("tartreefuse: %v", err)
	}
}

func run(archivePath, mountpoint string, debug bool) error {
	mapped, err := tarmmap.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer mapped.Close()

	buf, err := tardecomp.Decompress(mapped.Bytes)
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}

	entries, err := record.Parse(buf)
	if err != nil {
		return fmt.Errorf("parsing archive: %w", err)
	}
	root, err := tree.Build(entries)
	if err != nil {
		return fmt.Errorf("building tree: %w", err)
	}

	server := fuseutil.NewFileSystemServer(newTreeFS(root))

	cfg := &fuse.MountConfig{
		FSName:   "tartree",
		ReadOnly: true,
		Options: map[string]string{
			"allow_other": "",
		},
		EnableSymlinkCaching: true,
	}
	if debug {
		cfg.DebugLogger = log.New(os.Stderr, "[fuse] ", log.LstdFlags)
	}

	mfs, err := fuse.Mount(mountpoint, server, cfg)
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		fuse.Unmount(mountpoint)
	}()

	log.Printf("mounted %s at %s", archivePath, mountpoint)
	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("mfs.Join: %w", err)
	}
	return nil
}
