package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/care-assistant/internal/agent"
	"github.com/ashureev/care-assistant/internal/api"
	"github.com/ashureev/care-assistant/internal/identity"
	"github.com/ashureev/care-assistant/internal/middleware"
	"github.com/ashureev/care-assistant/internal/probe"
	"github.com/ashureev/care-assistant/internal/session"
	"github.com/ashureev/care-assistant/internal/store"
	"github.com/ashureev/care-assistant/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat server",
	Long: `Starts the HTTP API, the WebSocket chat endpoint and the embedded web UI.
When grpc_addr is set a gRPC health service is started as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stdout, true)
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

//nolint:gocyclo // Startup wiring is intentionally sequential to keep dependency setup explicit.
func runServe(parent context.Context) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg := a.cfg
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	var (
		repo    *store.SQLiteStore
		archive agent.Archive
		pinger  api.Pinger
	)
	if cfg.ArchiveEnabled() {
		repo, err = store.NewSQLite(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close archive", "error", closeErr)
			}
		}()
		archive, pinger = repo, repo
		slog.Info("Turn archive enabled", "path", cfg.ArchivePath, "retention", cfg.Session.ArchiveRetention)
	}

	sessions := session.NewStore()
	svc, err := a.newService(sessions, archive)
	if err != nil {
		return err
	}

	agentHandler := agent.NewHandler(svc, agent.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), cfg.MaxBodyBytes, cfg.AllowedOrigins)
	defer agentHandler.Close()
	healthHandler := api.NewHealthHandler(pinger, sessions, a.data)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware)

	healthHandler.RegisterHealth(r)
	agentHandler.RegisterRoutes(r)
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: turns can run up to turn_timeout and /ws/chat is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-session.StartSweeper(ctx, sessions, cfg.Session.SweepInterval, cfg.Session.IdleTTL, pruneArchive(repo, cfg.Session.ArchiveRetention))
		return nil
	})

	if cfg.GRPCAddr != "" {
		checks := map[string]probe.Check{
			"dataset": func(context.Context) error {
				if a.data.Stats()["users"] == 0 {
					return errors.New("dataset has no members")
				}
				return nil
			},
		}
		if repo != nil {
			checks["archive"] = repo.Ping
		}
		health := probe.New(checks)
		g.Go(func() error { return health.ListenAndServe(ctx, cfg.GRPCAddr) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

// pruneArchive returns a sweep callback that drops archived turns older
// than retention. It is nil when there is nothing to prune.
func pruneArchive(repo *store.SQLiteStore, retention time.Duration) session.SweepCallback {
	if repo == nil || retention <= 0 {
		return nil
	}
	return func(ctx context.Context, _ int) {
		n, err := repo.PruneBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			slog.Warn("Archive prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("Pruned archived turns", "count", n, "retention", retention)
		}
	}
}
