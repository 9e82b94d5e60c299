// Command scandeck is the entry point for the scan management console.
// All functionality lives in subcommands; run with no arguments for
// usage.
package main

import (
	"github.com/scandeck/scandeck/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
