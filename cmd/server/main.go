package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mystari/mystari-api/internal/api"
	"github.com/mystari/mystari-api/internal/config"
	"github.com/mystari/mystari-api/internal/factory"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/services/players"
)

// errEphemeralSeed is returned when seeding would write into a store that
// disappears when the command exits
var errEphemeralSeed = errors.New("seed needs persistent storage (set STORAGE_TYPE to redis or mongo), or use serve --seed with in-memory storage")

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "mystari-server",
		Short:         "Mystari API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env if present)")

	rootCmd.AddCommand(newServeCmd(logger, &envFile))
	rootCmd.AddCommand(newSeedCmd(logger, &envFile))

	return rootCmd
}

func newServeCmd(logger *slog.Logger, envFile *string) *cobra.Command {
	var (
		port     int
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			var seeds []model.PlayerSeed
			if seedFile != "" {
				if seeds, err = players.LoadSeeds(seedFile); err != nil {
					return err
				}
			}

			// Handle graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			factoryCfg, httpCfg := factory.FromConfig(cfg, logger)
			app, err := factory.New(ctx, factoryCfg)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Warn("closing storage", slog.String("error", err.Error()))
				}
			}()

			if seedFile != "" {
				if err := seedPlayers(ctx, app, seedFile, seeds, logger); err != nil {
					return err
				}
			}

			serverConfig := api.DefaultServerConfig()
			serverConfig.Port = cfg.Port
			server := api.NewServer(app.Router(httpCfg), serverConfig, logger)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			logger.Info("server started",
				slog.String("addr", server.Addr()),
				slog.String("storage", factoryCfg.StorageType),
				slog.Bool("google", factoryCfg.Google != nil),
			)

			// Wait for shutdown or error
			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				if err := server.Shutdown(context.Background()); err != nil {
					return err
				}
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port to listen on (env: PORT)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "Seed players from this YAML file before listening")

	return cmd
}

func newSeedCmd(logger *slog.Logger, envFile *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load player records from a YAML file into persistent storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.Storage.Type == config.StorageMemory {
				return errEphemeralSeed
			}

			seeds, err := players.LoadSeeds(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			factoryCfg, _ := factory.FromConfig(cfg, logger)
			app, err := factory.New(ctx, factoryCfg)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			defer func() { _ = app.Close() }()

			return seedPlayers(ctx, app, file, seeds, logger)
		},
	}

	cmd.Flags().StringVar(&file, "file", "players.yaml", "Seed file")

	return cmd
}

func seedPlayers(ctx context.Context, app *factory.App, file string, seeds []model.PlayerSeed, logger *slog.Logger) error {
	created, err := app.PlayerService.Seed(ctx, seeds)
	if err != nil {
		return fmt.Errorf("seeding %s: %w", file, err)
	}

	logger.Info("seed complete",
		slog.String("file", file),
		slog.Int("players", len(seeds)),
		slog.Int("created", created),
	)
	return nil
}
