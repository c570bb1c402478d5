// Command hch runs an interactive Humans Consulting HCH session against a
// terminal, optionally persisting state to a SQLite database between runs.
package main

import (
	"fmt"
	"os"

	"github.com/hchlab/hch/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if code := cli.GetExitCode(err); code != cli.ExitSuccess {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(code)
		}
		return
	}
}
