// Package main provides the planwire CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/planwire/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
