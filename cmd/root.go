package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// logger is built before any command runs; commands print results with fmt and
// diagnostics through the logger.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "face-registry",
	Short: "Enroll and verify people against a face directory",
	Long: `Face Registry runs the operator console for a biometric directory.
It launches the external face capture process for enrollment and verification,
correlates the capture results it sends back, and keeps the directory of
people in sync with the configured store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logging.ConfigFromEnv()
		if lvl := mustGetString(cmd, "log-level"); lvl != "" {
			cfg.Level = lvl
		}
		if mustGetBool(cmd, "log-dev") {
			cfg.Dev = true
		}
		l, err := logging.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("log-dev", false, "Human-readable development logging (same as LOG_DEV=1)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
