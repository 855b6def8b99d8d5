// cmd/ghmetrics/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/serpent"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github-metrics/internal/api"
	"github-metrics/internal/config"
	"github-metrics/internal/database"
	"github-metrics/internal/github"
	"github-metrics/internal/metrics"
	"github-metrics/internal/ratelimit"
	"github-metrics/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

type rootCmd struct {
	dbPath string

	cfg    *config.Config
	logger *slog.Logger
}

func newLogger(format string, level *slog.LevelVar) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen + " 05.999",
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

// setup loads configuration and builds the root logger. Every subcommand
// calls it first.
func (r *rootCmd) setup() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if r.dbPath != "" {
		cfg.DBPath = r.dbPath
	}
	r.cfg = cfg

	logLevel := new(slog.LevelVar)
	setLogLevel(cfg.LogLevel, logLevel)
	r.logger = newLogger(cfg.LogFormat, logLevel)
	slog.SetDefault(r.logger)
	return nil
}

func (r *rootCmd) openStore(ctx context.Context) (*sql.DB, *database.Store, error) {
	db, err := database.Open(ctx, r.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	r.logger.Info("Database ready", "path", r.cfg.DBPath)
	return db, database.NewStore(db), nil
}

func (r *rootCmd) newSyncer(store database.Querier) (*syncer.Syncer, error) {
	if err := r.cfg.RequireToken(); err != nil {
		return nil, err
	}
	client := github.NewClient(r.cfg.GithubToken, r.logger)
	if r.cfg.GithubAPIURL != "" {
		if err := client.UseEnterpriseURL(r.cfg.GithubAPIURL); err != nil {
			return nil, err
		}
	}
	governor := ratelimit.NewGovernor(client, r.logger, r.cfg.RateLimitLowWater, r.cfg.RateLimitMargin)
	return syncer.NewSyncer(client, store, governor, r.logger, r.cfg.GithubOrg, r.cfg.ExcludedRepoPrefix), nil
}

func (r *rootCmd) newEngine(store *database.Store) *metrics.Engine {
	return metrics.NewEngine(store, r.logger, r.cfg.MetricsEpochTime, r.cfg.MetricsBackdateDays)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(inv *serpent.Invocation) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(inv.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func (r *rootCmd) syncCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "sync",
		Short: "Mirror the organization into the database and recompute daily metrics",
		Handler: func(inv *serpent.Invocation) error {
			if err := r.setup(); err != nil {
				return err
			}
			ctx, cancel := signalContext(inv)
			defer cancel()

			db, store, err := r.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := r.newSyncer(store)
			if err != nil {
				return err
			}
			if err := s.SyncOrg(ctx); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			return r.newEngine(store).Recompute(ctx)
		},
	}
}

func (r *rootCmd) sweepCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "sweep",
		Short: "Reconcile locally open issues against the remote open set",
		Handler: func(inv *serpent.Invocation) error {
			if err := r.setup(); err != nil {
				return err
			}
			ctx, cancel := signalContext(inv)
			defer cancel()

			db, store, err := r.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := r.newSyncer(store)
			if err != nil {
				return err
			}
			if err := s.SweepOrg(ctx); err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			return nil
		},
	}
}

func (r *rootCmd) aggregateCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "aggregate",
		Short: "Recompute daily metrics from the mirrored tables",
		Handler: func(inv *serpent.Invocation) error {
			if err := r.setup(); err != nil {
				return err
			}
			ctx, cancel := signalContext(inv)
			defer cancel()

			db, store, err := r.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			return r.newEngine(store).Recompute(ctx)
		},
	}
}

func (r *rootCmd) serveCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "serve",
		Short: "Serve the read API over the metrics database",
		Handler: func(inv *serpent.Invocation) error {
			if err := r.setup(); err != nil {
				return err
			}
			ctx, cancel := signalContext(inv)
			defer cancel()

			db, store, err := r.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &http.Server{
				Addr:              r.cfg.HTTPAddr,
				Handler:           api.NewRouter(store, r.logger, r.cfg.GithubOrg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				r.logger.Info("Listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				r.logger.Info("Shutdown signal received. Exiting.")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func (r *rootCmd) command() *serpent.Command {
	return &serpent.Command{
		Use:   "ghmetrics",
		Short: "ghmetrics mirrors a GitHub organization into SQLite and derives daily metrics",
		Children: []*serpent.Command{
			r.syncCmd(),
			r.sweepCmd(),
			r.aggregateCmd(),
			r.serveCmd(),
		},
		Handler: func(inv *serpent.Invocation) error {
			return serpent.DefaultHelpFn()(inv)
		},
		Options: []serpent.Option{
			{
				Flag:        "db-path",
				Description: "Path to the SQLite database file. Overrides DB_PATH.",
				Value:       serpent.StringOf(&r.dbPath),
			},
		},
	}
}

func main() {
	var root rootCmd
	err := root.command().Invoke().WithOS().Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
