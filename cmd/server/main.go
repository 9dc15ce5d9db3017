package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/roomgate/internal/adapters/http"
	"github.com/dkeye/roomgate/internal/adapters/rtc"
	"github.com/dkeye/roomgate/internal/app"
	"github.com/dkeye/roomgate/internal/app/orch"
	"github.com/dkeye/roomgate/internal/auth"
	"github.com/dkeye/roomgate/internal/config"
	"github.com/dkeye/roomgate/internal/identity"
	"github.com/dkeye/roomgate/internal/logging"
	"github.com/dkeye/roomgate/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console logger until the configured one is known.
	logging.Setup("info", "console")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	backend, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	st := store.WithBreaker(backend, store.BreakerSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	})
	defer st.Close()

	cache, closeCache, err := newIdentityCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	resolver := identity.NewResolver(st, cache)

	ice, err := rtc.NewConfiguration(cfg.ICEServers)
	if err != nil {
		return fmt.Errorf("ice servers: %w", err)
	}

	o := orch.New(app.NewRegistry(), st, resolver, app.SimplePolicy{}, cfg.PersistTimeout)
	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch: o,
		Auth: auth.NewAuthenticator(cfg.Secret),
		ICE:  ice,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("gateway started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		o.Shutdown()
		return err
	})
	return g.Wait()
}

// newIdentityCache uses Redis when configured so every gateway instance
// shares one display-identity cache.
func newIdentityCache(ctx context.Context, cfg *config.Config) (identity.Cache, func(), error) {
	if cfg.Redis.URL == "" {
		c := identity.NewMemoryCache(cfg.Identity.CacheTTL, nil)
		stop := c.StartEvictionTimer(time.Minute)
		return c, stop, nil
	}
	rdb, err := identity.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	log.Info().Str("module", "identity").Msg("using redis identity cache")
	return identity.NewRedisCache(rdb, cfg.Identity.CacheTTL), func() { _ = rdb.Close() }, nil
}
