package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/orbitscan/internal/api"
	"github.com/star/orbitscan/internal/auth"
	"github.com/star/orbitscan/internal/cache"
	"github.com/star/orbitscan/internal/config"
	"github.com/star/orbitscan/internal/health"
	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/stream"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/tracing"
)

func serveCommand(ctx context.Context, args []string, stderr io.Writer) int {
	var configPath, addr, logLevel string
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "config", "", "config file (default: ./orbitscan.yaml if present)")
	fs.StringVar(&addr, "addr", "", "override server.addr")
	fs.StringVar(&logLevel, "log-level", "", "override log.level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, logger, err := loadConfig(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		return exitError
	}
	return exitOK
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	sampler, err := newSampler(cfg, logger)
	if err != nil {
		return err
	}
	catalog := newCatalog(cfg, logger)
	store := catalog.Store()

	results := cache.NewResultCache(cache.Config{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries}, logger)
	go results.Start(ctx)

	streamHandler := stream.NewHandler(catalog, sampler, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		DefaultInterval:    cfg.Stream.DefaultInterval,
		MinInterval:        cfg.Stream.MinInterval,
		TrustProxy:         cfg.Server.TrustProxy,
	}, logger)

	srv := api.NewServer(api.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		TrustProxy:   cfg.Server.TrustProxy,
		Auth:         auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token},
	}, api.Deps{
		Sampler: sampler,
		Catalog: catalog,
		Results: results,
		Stream:  streamHandler,
		Ready:   health.NewChecker(store),
	}, logger)

	// Warm the catalog without blocking startup.
	go warmCatalog(ctx, cfg, catalog, logger)

	// Background goroutine to update TLE dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetTLEDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_fetch_enabled", cfg.TLE.FetchEnabled,
			"gravity_model", cfg.Engine.GravityModel,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// warmCatalog refreshes an empty catalog and pre-resolves the configured
// catalog numbers.
func warmCatalog(ctx context.Context, cfg *config.Config, catalog *tle.Catalog, logger *slog.Logger) {
	if cfg.TLE.FetchEnabled && catalog.Store().Get().Len() == 0 {
		if _, err := catalog.Refresh(ctx); err != nil {
			logger.Warn("initial TLE fetch failed", "error", err)
		}
	}
	for _, id := range cfg.TLE.NoradIDs {
		if _, err := catalog.Resolve(ctx, id); err != nil {
			logger.Warn("could not resolve configured satellite", "norad_id", id, "error", err)
		}
	}
}
