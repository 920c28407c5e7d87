package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartpresence/attendance-service/internal/config"
)

// nolint: gochecknoglobals
var (
	Version = "dev"

	// RootCmd represents the base command when called without any subcommands.
	RootCmd = &cobra.Command{
		Use:           "smartpresence",
		Short:         "Campus attendance backend with GPS geofencing and face verification",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		RootCmd.PrintErrln(err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}
