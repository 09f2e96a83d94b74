// Suqaba - command-line client for the Suqaba simulation service
package main

import (
	"os"

	"github.com/suqaba/suqaba-cli/internal/cli"
	"github.com/suqaba/suqaba-cli/internal/version"
)

// Version information, set with -ldflags "-X main.Version=... -X main.BuildTime=..."
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	// internal/version is the source every package reads
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
