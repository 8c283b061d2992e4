// Package main provides the entry point for the lawsearch CLI.
package main

import (
	"os"

	"github.com/redwell/law-search/cmd/lawsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
