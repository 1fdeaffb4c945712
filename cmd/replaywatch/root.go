package main

import (
	"github.com/spf13/cobra"

	"replaywatch/internal/config"
	"replaywatch/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// appConfig is loaded before any subcommand runs.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "replaywatch",
	Short: "Audit archived web captures against their live counterparts",
	Long: "replaywatch compares the network requests of archived web pages with\n" +
		"those of the live pages, reporting missing requests and status code\n" +
		"disagreements as a correspondence score per page.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "YAML config file (default $REPLAYWATCH_CONFIG)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text, json, tint, auto")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if rootFlags.configPath != "" {
		appConfig, err = config.LoadFile(rootFlags.configPath)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		appConfig.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		appConfig.LogFormat = rootFlags.logFormat
	}
	logging.Init(logging.ParseLevel(appConfig.LogLevel), appConfig.LogFormat, cmd.ErrOrStderr())
	return nil
}
