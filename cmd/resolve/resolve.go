// Package resolve implements the resolve sub-command.
package resolve

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/anomalystream/internal/params"
)

// Command creates the resolve command. model resolves the parameter
// document selected by the shared --params flag or the positional argument.
func Command(model func() (*params.ModelConfig, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [-p file | PARAMS_JSON]",
		Short: "Print the resolved model configuration as YAML",
		Long:  "Applies the parameter document to the defaults and prints the configuration a run would use, without reading any data.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model()
			if err != nil {
				return err
			}
			out, err := params.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	return cmd
}
