// Package cli provides the command-line interface for planwire.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/planwire/internal/cli/commands"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planwire",
		Short: "planwire - query plan interchange bridge",
		Long: `planwire serializes SQL queries and scalar expressions into an
engine-neutral binary plan format and decodes them back.

Queries are planned against a catalog of table schemas defined in a
YAML file; the resulting plans round-trip through the wire format
byte for byte.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Query plan interchange bridge
`)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewSerializeCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewExprCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
