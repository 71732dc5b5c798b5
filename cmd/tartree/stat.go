package main

import (
	"flag"
	"fmt"
	"io/fs"
)

func runStat(args []string) error {
	fset := flag.NewFlagSet("stat", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return fmt.Errorf("syntax: tartree stat <archive> <path>")
	}
	archivePath, lookupPath := fset.Arg(0), fset.Arg(1)

	fsys, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer fsys.Close()

	fi, err := fsys.Stat(lookupPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", lookupPath)
	fmt.Printf("  kind: %s\n", kindOf(fi))
	fmt.Printf("  size: %d\n", fi.Size())
	fmt.Printf("  mode: %s\n", fi.Mode())
	return nil
}

func kindOf(fi fs.FileInfo) string {
	if fi.IsDir() {
		return "dir"
	}
	return "file"
}
