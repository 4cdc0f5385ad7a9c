package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"smartport-go/services/config"
	"smartport-go/types"
	"smartport-go/x/logx"
	"smartport-go/x/strx"
)

var rootCmd = &cobra.Command{
	Use:   "portctl",
	Short: "portctl drives a simulated smart-port controller",
	Long: `portctl loads a controller profile, plugs the configured devices and either
serves the port table over HTTP or runs a script of port operations against it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides --profile)")
	rootCmd.PersistentFlags().String("profile", config.DefaultProfile, "embedded profile name")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "text or json (overrides config)")
}

func loadConfig(cmd *cobra.Command) (types.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.Load(path)
	}
	profile, _ := cmd.Flags().GetString("profile")
	return config.LoadProfile(profile)
}

func newLogger(cmd *cobra.Command, cfg types.Config) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logx.New(
		logx.ParseLevel(strx.Coalesce(level, cfg.Log.Level)),
		logx.Format(strx.Coalesce(format, cfg.Log.Format)),
	)
}
