package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/planwire/pkg/bridge"
	"github.com/leapstack-labs/planwire/pkg/wire"
	"github.com/spf13/cobra"
)

// ExprOptions holds options for the expr command.
type ExprOptions struct {
	Catalog string
	Table   string
	Out     string
}

// NewExprCommand creates the expr command.
func NewExprCommand() *cobra.Command {
	opts := &ExprOptions{}

	cmd := &cobra.Command{
		Use:   "expr <sql>",
		Short: "Serialize a scalar SQL expression bound to a table's schema",
		Example: `  # Serialize an expression over the orders table
  planwire expr "amount * 2" --catalog catalog.yaml --table orders --out expr.bin

  # Print the envelope instead of writing a file
  planwire expr "amount * 2" --catalog catalog.yaml --table orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpr(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Catalog, "catalog", "c", "", "Catalog file (YAML)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "Table providing the input schema")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Output file (prints the envelope when unset)")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runExpr(cmd *cobra.Command, sql string, opts *ExprOptions) error {
	sess, err := loadSession(opts.Catalog)
	if err != nil {
		return err
	}

	tbl, err := sess.Table(cmd.Context(), opts.Table)
	if err != nil {
		return err
	}

	s := bridge.NewSerializer(newLogger(cmd))
	data, err := s.SerializeExpressionBytes(cmd.Context(), sql, tbl.Schema, sess)
	if err != nil {
		return err
	}

	if opts.Out == "" {
		expr, err := s.DeserializeExpressionBytes(data)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), wire.FormatExtendedExpression(expr.Message()))
		return nil
	}

	if err := os.WriteFile(opts.Out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.Out)
	return nil
}
