// Command keepsake encodes object references as bookmarks and mementos and
// resolves them against a catalog and a SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/keepsake/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
