package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func runCat(args []string) error {
	fset := flag.NewFlagSet("cat", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return fmt.Errorf("syntax: tartree cat <archive> <path>")
	}
	archivePath, lookupPath := fset.Arg(0), fset.Arg(1)

	fsys, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer fsys.Close()

	f, err := fsys.Open(lookupPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(os.Stdout, f)
	return err
}
