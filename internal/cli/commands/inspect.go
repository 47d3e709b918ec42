package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/planwire/pkg/bridge"
	"github.com/leapstack-labs/planwire/pkg/wire"
	"github.com/spf13/cobra"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	Expr bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode and print a serialized plan or expression file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Expr, "expr", false, "Decode as an expression file")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, opts *InspectOptions) error {
	s := bridge.NewSerializer(newLogger(cmd))

	if opts.Expr {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		expr, err := s.DeserializeExpressionBytes(data)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), wire.FormatExtendedExpression(expr.Message()))
		return nil
	}

	plan, err := s.Deserialize(path)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), wire.FormatPlan(plan.Message()))
	return nil
}
