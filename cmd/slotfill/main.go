package main

import (
	"os"

	"github.com/contentops/slotfill/cmd/slotfill/commands"
)

// Version is the current version of slotfill
// This must match the git tag when creating releases
const Version = "v0.3.0"

func main() {
	commands.SetVersion(Version)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
