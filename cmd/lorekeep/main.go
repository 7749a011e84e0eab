// Package main provides the entry point for the lorekeep CLI.
package main

import (
	"os"

	"github.com/lorekeep/lorekeep/cmd/lorekeep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
