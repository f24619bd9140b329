// Command krusty is the entry point for the krusty shell: a readline-backed
// interactive REPL when invoked with no script argument, or a batch
// interpreter when given one (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/stacksjs/krusty/cmd/krusty/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
