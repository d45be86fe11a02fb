package commands

import (
	"github.com/spf13/cobra"

	"github.com/careerforge/console/pkg/config"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "CareerForge campaign console - A/B test evaluation",
	Long: `CareerForge Campaign Console

Evaluates newsletter and voucher A/B tests, picks statistically
significant winners and shifts traffic to them.

Usage:
  go run ./cmd/console [command]

Examples:
  go run ./cmd/console api
  go run ./cmd/console scheduler start
  go run ./cmd/console evaluate welcome-subject --dry-run
  go run ./cmd/console significance --a-sends 1000 --a-opens 200 --b-sends 1000 --b-opens 250`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig applies the global flags on top of the environment
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}
