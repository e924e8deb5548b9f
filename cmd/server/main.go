package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "fieldsync-server",
	Short:         "Fieldsync synchronization server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync server",
	Long: `Run the sync server until SIGINT or SIGTERM.

Configuration is read from --config (YAML) and FIELDSYNC_* environment variables,
e.g. FIELDSYNC_JWT_SECRET, FIELDSYNC_ENROLLMENT_DEVICE_KEY.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(configPath)
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.Log, os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger, Version)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				logger.Error("failed to close server", "error", err)
			}
		}()

		return srv.Run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Fieldsync Server\n")
		_, _ = fmt.Fprintf(out, "Version:    %s\n", Version)
		_, _ = fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		_, _ = fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
