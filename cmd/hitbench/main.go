// Package main provides the entry point for the hitbench CLI, which
// benchmarks and verifies the canopy hit index.
package main

import (
	"fmt"
	"os"

	"github.com/phanxgames/canopy/cmd/hitbench/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
