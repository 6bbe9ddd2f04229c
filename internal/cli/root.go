// Package cli implements LogCrafter's command-line surface, ported from
// the teacher's cmd/vaino/commands shape: a cobra root command with
// PersistentPreRunE config loading, persistent flags bound through
// viper, and an Execute() that renders fatal errors with
// internal/errors.DisplayError before exiting with its sysexits code.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seungwoo7050/logcrafter/internal/config"
	logcrafterrors "github.com/seungwoo7050/logcrafter/internal/errors"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "logcrafterd",
	Short:             "Networked log ingestion, query and IRC broadcast service",
	Long:              "logcrafterd accepts log lines over TCP, answers filtered queries over a second TCP port, and optionally broadcasts incoming logs to an embedded IRC gateway.",
	DisableAutoGenTag: true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds every subcommand and runs the root command, converting a
// returned error into a colorized display plus a sysexits-style exit
// code.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		logcrafterrors.DisplayError(err)
		os.Exit(logcrafterrors.GetExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./logcrafter.yaml)")
	rootCmd.PersistentFlags().Int("log-port", 0, "ingest TCP port (default 9999)")
	rootCmd.PersistentFlags().Int("query-port", 0, "query TCP port (default 9998)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored error output")

	viper.BindPFlag("log_port", rootCmd.PersistentFlags().Lookup("log-port"))
	viper.BindPFlag("query_port", rootCmd.PersistentFlags().Lookup("query-port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output.no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
}

func initConfig() error {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return logcrafterrors.New(logcrafterrors.TypeConfiguration, logcrafterrors.ComponentConfig, "failed to load configuration").
			WithCause(err.Error()).
			WithSolutions("Check logcrafter.yaml for syntax errors", "Verify LOGCRAFTER_ environment variables are well-formed")
	}

	if err := loaded.Validate(); err != nil {
		return logcrafterrors.New(logcrafterrors.TypeValidation, logcrafterrors.ComponentConfig, "configuration failed validation").
			WithCause(err.Error()).
			WithSolutions("Review the bounds documented for each setting in logcrafter.yaml")
	}

	cfg = loaded
	return nil
}

// GetConfig returns the configuration loaded by initConfig.
func GetConfig() *config.Config {
	return cfg
}
