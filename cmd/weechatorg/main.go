// Package main is the entry point for the weechatorg theme service.
// It provides the serve, migrate and export commands; all of them load
// configuration from the environment and connect to PostgreSQL.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logLevel   string
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:           "weechatorg",
	Short:         "weechatorg - WeeChat theme submission and export service",
	Long:          "weechatorg accepts WeeChat theme submissions, stores them for moderation and publishes the theme feeds.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(logLevel)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  "Run migrations, then serve the theme API until SIGINT or SIGTERM.",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply pending database migrations and, in development, seed the release records.",
	RunE:  runMigrate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate the theme feeds",
	Long:  "Rebuild themes.xml, themes.json, their gzip copies and themes.tar.bz2 from the published themes.",
	RunE:  runExport,
}

func init() {
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setupLogger installs the default structured logger.
func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}
