// Package main provides the entry point for the g3index CLI.
package main

import (
	"os"

	"github.com/silviusavu/g3index/cmd/g3index/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
