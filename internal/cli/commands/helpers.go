package commands

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/planwire/internal/cli/config"
	"github.com/leapstack-labs/planwire/pkg/logical"
	"github.com/spf13/cobra"
)

// newLogger builds the command logger. Quiet unless --verbose is set on
// the root command.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// loadSession builds a session from a catalog file. An empty path yields
// a session with builtins only.
func loadSession(catalogPath string) (*logical.Session, error) {
	if catalogPath == "" {
		return logical.NewSession(), nil
	}
	cat, err := config.Load(catalogPath)
	if err != nil {
		return nil, err
	}
	return cat.Session(), nil
}
