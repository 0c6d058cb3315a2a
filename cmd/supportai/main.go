// Command supportai answers customer-support questions from an indexed
// corpus of support pages. It provides a Cobra CLI and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/supportai-go/cmd/supportai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
