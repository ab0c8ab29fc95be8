// Package main is the entry point for the mcphost CLI.
package main

import (
	"os"

	"github.com/thoreinstein/mcphost/cmd/mcphost/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
