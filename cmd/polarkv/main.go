// Command polarkv is a small CLI front end for the embeddable key-value
// engine, useful for manual exercising and for the bench subcommand's
// write/read throughput smoke test.
package main

import (
	"fmt"
	"os"

	"github.com/laekov/polarkv/cmd/polarkv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
