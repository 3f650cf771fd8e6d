// Package main implements the patientsimd daemon serving the role-play
// simulator over HTTP.
//
// Configuration is loaded from an optional YAML file and PATIENTSIM_*
// environment variables. See the config package for details.
//
// Usage:
//
//	# Start with defaults (OPENAI_API_KEY from the environment)
//	patientsimd serve
//
//	# Start from a config file
//	patientsimd serve --config /etc/patientsim/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/patientsim"
	"github.com/hupe1980/patientsim/config"
	"github.com/hupe1980/patientsim/logging"
	"github.com/hupe1980/patientsim/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patientsimd",
	Short: "Clinical role-play simulator daemon",
	Long: `patientsimd serves simulated patient conversations for nursing
students: intake, dialogue against a language model and a rubric-based
debrief, with transcripts persisted to SQLite.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and block until SIGINT or SIGTERM.

Examples:
  # Serve with defaults
  patientsimd serve

  # Serve from a config file
  patientsimd serve --config config.yaml`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("patientsimd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.NewSlogLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		cfg.Logging.Format,
		cfg.Logging.AddSource,
	)

	svc, err := patientsim.New(cfg, func(o *patientsim.Options) {
		o.Logger = logger
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	srv, err := server.New(svc.Simulation(), func(o *server.Options) {
		o.Addr = cfg.Server.Addr()
		o.ReadTimeout = cfg.Server.ReadTimeout
		o.WriteTimeout = cfg.Server.WriteTimeout
		o.Logger = logger
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	logger.Info("starting patientsimd",
		"version", version,
		"addr", cfg.Server.Addr(),
		"provider", cfg.Model.Provider,
		"store", cfg.Store.Path,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	return nil
}
