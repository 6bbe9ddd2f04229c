package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(GetConfig())
			if err != nil {
				return fmt.Errorf("marshal effective configuration: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}
