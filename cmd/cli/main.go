// Package main is the entry point for the utilbill CLI.
package main

import (
	"os"

	"utility-bill/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
