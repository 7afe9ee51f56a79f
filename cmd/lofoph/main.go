// Command lofoph serves the lost-and-found front end and its tooling.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "lofoph",
	Short:         "Lost-and-found listings front end",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logPath, "log", "l", "", "log file path (overrides LOG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// logSettings applies the persistent flags over the configured values.
func logSettings(cmd *cobra.Command, path string, level slog.Level) (string, slog.Level, error) {
	if cmd.Flags().Changed("log") {
		path = logPath
	}
	if cmd.Flags().Changed("log-level") {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return "", 0, err
		}
	}
	return path, level, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
