package main

import (
	"fmt"
	"os"

	"github.com/ortizmas/whats-send/cmd/whats-send/cmd"
)

// Version information, set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.SetVersion(version, commit)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
