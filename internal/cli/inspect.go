package cli

import (
	"github.com/spf13/cobra"

	"credit-risk/backend/internal/model"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Print the layout of a model artifact",
		Long: `Load a model artifact the way the server does and print its name,
input columns, encoded feature names, classes and tree count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.Load(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, p.Summary())
		},
	}
}
