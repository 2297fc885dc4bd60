package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/directory"
	"github.com/spf13/cobra"

	// Store backends register themselves with the database package.
	_ "github.com/kozaktomas/face-registry/internal/database/mariadb"
	_ "github.com/kozaktomas/face-registry/internal/database/mock"
	_ "github.com/kozaktomas/face-registry/internal/database/postgres"
	_ "github.com/kozaktomas/face-registry/internal/remotestore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Directory store commands",
}

var storePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured store is reachable",
	Long: `Open the configured store and check that it answers.
For SQL backends this also applies pending schema migrations.`,
	RunE: runStorePing,
}

var storeBackendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the available store backends",
	Run: func(cmd *cobra.Command, args []string) {
		current := config.Load().Store.Backend
		for _, name := range database.Backends() {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storePingCmd)
	storeCmd.AddCommand(storeBackendsCmd)

	storeCmd.PersistentFlags().String("backend", "", "Store backend to use (overrides STORE_BACKEND)")
}

// loadConfig loads and validates the configuration, applying the --backend flag if the command has it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()
	if f := cmd.Flags().Lookup("backend"); f != nil && f.Value.String() != "" {
		cfg.Store.Backend = strings.ToLower(f.Value.String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openRepository opens the configured store and loads the directory.
// The returned close function releases the store.
func openRepository(ctx context.Context, cfg *config.Config) (*directory.Repository, func(), error) {
	backend, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			logger.Sugar().Warnf("closing store: %v", err)
		}
	}

	repo := directory.NewRepository(backend, logger)
	if _, err := repo.ListAll(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to load directory: %w", err)
	}
	return repo, closeFn, nil
}

func runStorePing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.Ping(ctx); err != nil {
		return fmt.Errorf("%s store is not reachable: %w", cfg.Store.Backend, err)
	}
	fmt.Printf("%s store is reachable\n", cfg.Store.Backend)
	return nil
}
