package main

import (
	"fmt"
	"os"

	"github.com/altostore/altostore/internal/cli"
)

// Overridden at release time via LDFLAGS:
//
//	-X main.version=... -X main.buildTime=...
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
