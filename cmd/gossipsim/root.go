package main

import (
	"fmt"
	"os"

	"github.com/iti/gossipsim"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logFormat  string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gossipsim",
	Short: "gossipsim - discrete-event simulator for peer-to-peer gossip",
	Long: `gossipsim runs gossip agents over a simulated peer graph whose links
are lossy and delayed, either paced against the wall clock or on a virtual
clock, and reports how far a message spread.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: plain, text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")
}

// loadConfig reads the configuration and applies the global flags to it
func loadConfig(cmd *cobra.Command) (*gossipsim.Config, error) {
	cfg, err := gossipsim.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *gossipsim.Config) (zerolog.Logger, error) {
	return gossipsim.NewLogger(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
}
