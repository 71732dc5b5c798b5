package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorDir    = "\x1b[34;1m"
	colorLink   = "\x1b[36;1m"
	colorReset  = "\x1b[0m"
)

func runLs(args []string) error {
	fset := flag.NewFlagSet("ls", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() < 1 || fset.NArg() > 2 {
		return fmt.Errorf("syntax: tartree ls <archive> [path]")
	}
	archivePath := fset.Arg(0)
	lookupPath := "."
	if fset.NArg() == 2 {
		lookupPath = fset.Arg(1)
	}

	fsys, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer fsys.Close()

	entries, err := fsys.ReadDir(lookupPath)
	if err != nil {
		return err
	}

	color := isatty.IsTerminal(os.Stdout.Fd())
	for _, e := range entries {
		name := e.Name()
		if !color {
			fmt.Println(name)
			continue
		}
		if e.IsDir() {
			fmt.Println(colorDir + name + colorReset)
		} else {
			fmt.Println(name)
		}
	}
	return nil
}
