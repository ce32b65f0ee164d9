// Command historian indexes and searches a user's browsing history through
// an MCP server, a one-shot CLI, or both.
package main

import (
	"fmt"
	"os"

	"github.com/historian-labs/historian/cmd/historian/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
