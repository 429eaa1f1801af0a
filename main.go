// Package main is the entry point for the apdu-utility TUI application.
package main

import (
	"os"

	"github.com/gregLibert/apdu-utility/cmd"
)

// version is injected via ldflags at build time.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
