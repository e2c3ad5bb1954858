// CLI entry point for LegalLens.
package main

import (
	"os"

	"github.com/turtacn/LegalLens/internal/bootstrap"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
	config.Version = version
}

func main() {
	// Execute prints the error itself.
	if err := cli.Execute(bootstrap.ServiceFactory); err != nil {
		os.Exit(1)
	}
}
