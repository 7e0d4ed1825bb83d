// Package commands implements the polarkv CLI command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/config"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "polarkv",
	Short: "polarkv is an embeddable key-value store CLI",
	Long: `polarkv drives the embeddable key-value engine from the command
line: open a database, write and read individual records, inspect its
on-disk statistics, or run a short write/read benchmark.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./polarkv.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database name prefix (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(benchCmd)
}

func loadConfig() (*config.Options, error) {
	return config.Load(cfgFile)
}
