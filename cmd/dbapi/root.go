package dbapi

import (
	"fmt"
	"os"

	"github.com/edgeflare/dbapi/pkg/config"
	"github.com/edgeflare/dbapi/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string
var logLevel string
var cfg *config.Config
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "dbapi",
	Short: "dbapi serves relational tables over HTTP",
	Long: `dbapi exposes every table of a SQLite, PostgreSQL, MySQL or SQL Server database as
JSON CRUD endpoints, discovering table shapes from the catalog at request time.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			return nil
		}

		// If no subcommand is provided, print help
		return cmd.Help()
	},
}

func Main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dbapi.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "log at this level (debug, info, warn, error), overrides log.level")
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	rootCmd.AddCommand(serveCmd, tablesCmd, configCmd, healthcheckCmd)
}

// initConfig loads the configuration with the invoked command's flags bound over it, then
// builds the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	if cfg.File != "" {
		logger.Debug("using config file", zap.String("file", cfg.File))
	}
	return nil
}
