package main

import (
	"fmt"
	"os"

	"github.com/withObsrvr/asset-graph-indexer/internal/cli/cmd"
)

// Set by -ldflags at build time.
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

func main() {
	cmd.SetFactories(factories())
	cmd.SetVersionInfo(version, gitCommit, buildDate)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
