package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thumbcache",
	Short: "On-demand cached thumbnails",
	Long: `thumbcache renders thumbnails of JPEG, PNG and GIF images into
<width>x<height> cache directories and returns their public URLs.

Example usage:
  thumbcache render photo.jpg --width 200 --height 150
  thumbcache render photo.jpg --width 200 --height auto --url-only
  thumbcache warm --source albums --width 320 --height 240
  thumbcache warm --watch --metrics-addr :9090`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (default: LOG_LEVEL)")
}

// initConfig applies the log level and loads the configuration.
func initConfig() error {
	if logLevel != "" {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg = loaded
	return nil
}

// configSource names where the configuration came from.
func configSource() string {
	if cfgFile == "" {
		return "defaults"
	}
	return cfgFile
}
