package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/config"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/spf13/cobra"
)

var Version = "0.1.0"

// app holds the backends commands run against. Tests swap in an in-memory
// store and cache.
type app struct {
	openStore func(ctx context.Context) (store.Store, func(), error)
	// openCache returns the server's projection cache, or a nil Cache when
	// none is configured.
	openCache func(ctx context.Context) (cache.Cache, time.Duration, func(), error)
	migrate   func() error

	genericName string
}

func defaultApp() *app {
	return &app{
		openStore: func(ctx context.Context) (store.Store, func(), error) {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return nil, nil, err
			}
			pool, err := store.Connect(ctx, *cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("connect database: %w", err)
			}
			return store.NewPostgresStore(pool), pool.Close, nil
		},
		openCache: func(ctx context.Context) (cache.Cache, time.Duration, func(), error) {
			cfg, err := config.LoadCache()
			if err != nil {
				return nil, 0, nil, err
			}
			if cfg.RedisURL == "" {
				slog.Warn("REDIS_URL not set, cached projections will not be invalidated")
				return nil, 0, func() {}, nil
			}
			rc, err := cache.NewRedisCache(cfg.RedisURL)
			if err != nil {
				return nil, 0, nil, fmt.Errorf("create redis cache: %w", err)
			}
			if err := rc.Ping(ctx); err != nil {
				rc.Close()
				return nil, 0, nil, fmt.Errorf("connect redis: %w", err)
			}
			return rc, cfg.ProjectionCacheTTL, func() { rc.Close() }, nil
		},
		migrate: func() error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			return store.RunMigrations(cfg.URL, cfg.MigrationsDir)
		},
	}
}

// withStore opens the store, runs fn and closes the store again.
func (a *app) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, closeFn, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(st)
}

// withCache opens the projection cache, runs fn and closes the cache again.
func (a *app) withCache(ctx context.Context, fn func(cache.Cache, time.Duration) error) error {
	c, ttl, closeFn, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(c, ttl)
}

func (a *app) service(ctx context.Context, st store.Store, opts ...reconcile.Option) (*reconcile.Service, error) {
	opts = append([]reconcile.Option{reconcile.WithGenericTechnique(a.genericName)}, opts...)
	svc, err := reconcile.NewService(ctx, st, opts...)
	if err != nil {
		return nil, fmt.Errorf("create reconcile service: %w", err)
	}
	return svc, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rollreviewctl",
		Short: "Operate a RollReview database",
		Long: `rollreviewctl manages a RollReview deployment from the command line.

Features:
  - Apply database migrations
  - Import AI analysis payloads and print projected results
  - Create, list and revoke API keys`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.genericName, "generic-technique",
		reconcile.DefaultGenericTechnique, "name of the fallback technique for unlinked drills")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "rollreviewctl version %s\n", Version)
			},
		},
		newMigrateCmd(a),
		newImportCmd(a),
		newShowCmd(a),
		newAPIKeyCmd(a),
	)
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Apply all pending up migrations from MIGRATIONS_DIR to DATABASE_URL. An up-to-date schema is not an error.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.migrate(); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}
