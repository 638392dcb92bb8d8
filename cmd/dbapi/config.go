package dbapi

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the merged configuration as YAML, with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	},
}

func init() {
	configCmd.AddCommand(configViewCmd)
}
