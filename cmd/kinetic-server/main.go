package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kinetic/kinetic/internal/config"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/metrics"
	"github.com/kinetic/kinetic/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinetic-server",
		Short: "Physio referral and care-handoff API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(transitionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if cfg != nil {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			logger = logger.Level(lvl)
		}
	}
	return logger
}

// connect loads config and opens the pool shared by every command.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.UsesMemory() {
		return nil, nil, fmt.Errorf("this command needs Postgres, STORAGE=%s holds no data", config.StorageMemory)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// withApp runs fn against a fully wired app backed by Postgres.
func withApp(ctx context.Context, fn func(a *app, logger zerolog.Logger) error) error {
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger := newLogger(cfg)

	locker, rdb, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	a := newApp(cfg, pgRepos(pool), db.NewTransactor(pool), locker, metrics.New(), logger)
	a.pinger = pool
	return fn(a, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := db.NewMigrator(pool, migrations.FS, cfg.DBSchema).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS, cfg.DBSchema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

func signalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Manage computed physio signals",
	}

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute signals for one physio or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			physio, _ := cmd.Flags().GetString("physio")
			all, _ := cmd.Flags().GetBool("all")
			if (physio == "") == !all {
				return fmt.Errorf("exactly one of --physio or --all is required")
			}
			return withApp(cmd.Context(), func(a *app, logger zerolog.Logger) error {
				if all {
					res, err := a.signals.RecomputeAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Printf("Recomputed %d physio(s), %d failed.\n", res.Recomputed, len(res.Failed))
					for id, reason := range res.Failed {
						fmt.Printf("  %s: %s\n", id, reason)
					}
					return nil
				}
				id, err := uuid.Parse(physio)
				if err != nil {
					return fmt.Errorf("invalid --physio: %w", err)
				}
				out, err := a.signals.ComputeForPhysio(cmd.Context(), id)
				if err != nil {
					return err
				}
				for _, s := range out {
					fmt.Printf("%-20s %3d %-7s episodes=%d\n", s.SignalType, s.Value, s.Confidence, s.EpisodeCount)
				}
				return nil
			})
		},
	}
	recompute.Flags().String("physio", "", "Physio id to recompute")
	recompute.Flags().Bool("all", false, "Recompute every physio")
	cmd.AddCommand(recompute)
	return cmd
}

func transitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Maintain care transitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Expire transitions that waited too long for patient consent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app, logger zerolog.Logger) error {
				n, err := a.continuity.ExpireStaleTransitions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Expired %d transition(s).\n", n)
				return nil
			})
		},
	})
	return cmd
}

func runServer() error {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		boot := newLogger(nil)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.close()

	locker, rdb, err := newLocker(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	a := newApp(cfg, st.repos, st.tx, locker, metrics.New(), logger)
	a.pinger = st.pinger
	e := newEcho(cfg, a, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
