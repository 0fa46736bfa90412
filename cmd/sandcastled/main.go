// Package main is the entry point for sandcastled.
package main

import (
	"fmt"
	"os"

	"github.com/sandcastle-dev/sandcastle/cmd/sandcastled/cmd"
)

// Version information set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime, GitCommit)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
