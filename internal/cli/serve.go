package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eventtree/internal/cache"
	"eventtree/internal/config"
	"eventtree/internal/database"
	"eventtree/internal/handlers"
	"eventtree/internal/middleware"
	"eventtree/internal/router"
)

// NewServeCommand creates the command that runs the JSON API server.
func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, root.Config)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"driver", cfg.DBDriver,
	)

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(ctx, a.events, a.categories); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}

	// The tree cache is optional; without Valkey every read hits the database.
	var treeCache handlers.TreeCache
	if cfg.CacheEnabled() {
		client, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			return fmt.Errorf("connect valkey: %w", err)
		}
		defer client.Close()
		treeCache = cache.NewTreeCache(client, cfg.CacheTTL)
	} else {
		slog.Warn("valkey not configured, tree cache disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		defer limiter.Stop()
	}

	api := handlers.NewAPI(a.events, a.categories, a.changes, treeCache)
	r := router.New(api, router.Options{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		DB:             a.db,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
