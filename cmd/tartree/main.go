// Command tartree inspects a tar archive through the read-only directory
// tree view: stat, ls, cat, and walk subcommands, each its own flag.FlagSet in
// the style distr1-distri's cmd/distri dispatches "fuse", "gc", "build",
// and friends.
package main

import (
	"fmt"
	"os"
)

var help = `usage: tartree <command> [flags] <archive> [path]

commands:
  stat   print metadata for one path
  ls     list a directory's immediate children
  cat    print a file's contents
  walk   recursively print every path under a directory
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, help)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "stat":
		err = runStat(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "cat":
		err = runCat(os.Args[2:])
	case "walk":
		err = runWalk(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stderr, help)
		return
	default:
		fmt.Fprintf(os.Stderr, "tartree: unknown command %q\n\n%s", os.Args[1], help)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tartree %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}
