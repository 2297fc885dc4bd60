package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-registry/internal/capture"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Registry web server.
The web server serves the enrollment and login console, receives capture
results on /signup and /login, and exposes the directory API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("backend", "", "Store backend to use (overrides STORE_BACKEND)")
}

// newLauncher builds the capture launcher for the configured mode.
func newLauncher(cfg *config.Config) (capture.Launcher, *capture.ProcessLauncher, error) {
	if cfg.Capture.Mode == config.CaptureModeProcess {
		pl, err := capture.NewProcessLauncher(map[capture.Kind][]string{
			capture.KindEnroll: cfg.Capture.EnrollCommand,
			capture.KindVerify: cfg.Capture.VerifyCommand,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return pl, pl, nil
	}

	hl, err := capture.NewHTTPLauncher(cfg.Capture.URL, map[capture.Kind]string{
		capture.KindEnroll: cfg.Capture.EnrollPath,
		capture.KindVerify: cfg.Capture.VerifyPath,
	}, cfg.Capture.Method, cfg.Capture.TriggerTimeout)
	if err != nil {
		return nil, nil, err
	}
	return hl, nil, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	fmt.Printf("Opening %s store...\n", cfg.Store.Backend)
	repo, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()
	fmt.Printf("Loaded %d users\n", len(repo.Snapshot()))

	launcher, processes, err := newLauncher(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure capture launcher: %w", err)
	}

	controller := capture.NewController(launcher,
		capture.WithGuardDuration(cfg.Capture.GuardDuration),
		capture.WithCallbackURL(capture.KindEnroll, cfg.Web.EnrollCallbackURL()),
		capture.WithCallbackURL(capture.KindVerify, cfg.Web.VerifyCallbackURL()),
		capture.WithRequireToken(cfg.Capture.RequireToken),
		capture.WithLogger(logger),
	)

	server := web.NewServer(cfg, repo, controller, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
		if processes != nil && processes.Busy() {
			fmt.Println("Waiting for the capture program to exit...")
			if err := processes.Wait(shutdownCtx); err != nil {
				logger.Warn("capture program still running", zap.Error(err))
			}
		}
	}()

	fmt.Printf("Starting Face Registry on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Capture mode: %s, guard %s\n", cfg.Capture.Mode, cfg.Capture.GuardDuration)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
