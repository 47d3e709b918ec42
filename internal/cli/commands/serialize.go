package commands

import (
	"fmt"

	"github.com/leapstack-labs/planwire/pkg/bridge"
	"github.com/spf13/cobra"
)

// SerializeOptions holds options for the serialize command.
type SerializeOptions struct {
	Catalog string
	Out     string
}

// NewSerializeCommand creates the serialize command.
func NewSerializeCommand() *cobra.Command {
	opts := &SerializeOptions{}

	cmd := &cobra.Command{
		Use:   "serialize <sql>",
		Short: "Serialize a SQL query to a plan file",
		Long: `Plan a SQL query against the catalog and write the encoded plan
to a file.`,
		Example: `  # Serialize a query against a catalog
  planwire serialize "SELECT id, amount FROM orders WHERE amount > 10" \
    --catalog catalog.yaml --out plan.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSerialize(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Catalog, "catalog", "c", "", "Catalog file (YAML)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "plan.bin", "Output file")

	return cmd
}

func runSerialize(cmd *cobra.Command, sql string, opts *SerializeOptions) error {
	sess, err := loadSession(opts.Catalog)
	if err != nil {
		return err
	}

	s := bridge.NewSerializer(newLogger(cmd))
	if err := s.Serialize(cmd.Context(), sql, sess, opts.Out); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.Out)
	return nil
}
