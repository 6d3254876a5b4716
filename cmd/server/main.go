package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/portalprefs/internal/adapter/httpserver"
	"github.com/pscheid92/portalprefs/internal/adapter/metrics"
	"github.com/pscheid92/portalprefs/internal/adapter/redis"
	"github.com/pscheid92/portalprefs/internal/adapter/storage"
	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/layout"
	"github.com/pscheid92/portalprefs/internal/platform/config"
	"github.com/pscheid92/portalprefs/internal/platform/logging"
	"github.com/pscheid92/portalprefs/internal/platform/version"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/profile"
	"github.com/pscheid92/portalprefs/internal/profile/mapper"
	"github.com/pscheid92/portalprefs/internal/session"
)

const (
	sessionEvictionInterval = time.Minute
	cacheEvictionInterval   = time.Minute
	shutdownTimeout         = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, m *metrics.StoreMetrics) (storage.Backend, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeFn, err := storage.Open(ctx, cfg, m)
	if err != nil {
		slog.Error("Failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	return store, closeFn
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	bc := redis.DefaultBreakerConfig()
	bc.OpenFor = cfg.RedisBreakerOpenFor
	client, err := redis.NewClient(ctx, cfg.RedisURL, bc, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupMapper(cfg *config.Config) domain.ProfileMapper {
	if cfg.ProfileRulesPath == "" {
		m, err := mapper.New(mapper.DefaultRuleSet)
		if err != nil {
			slog.Error("Failed to compile default profile rules", "error", err)
			os.Exit(1)
		}
		return m
	}

	m, err := mapper.LoadFile(cfg.ProfileRulesPath)
	if err != nil {
		slog.Error("Failed to load profile rules", "path", cfg.ProfileRulesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Profile rules loaded", "path", cfg.ProfileRulesPath, "rules", m.Len())
	return m
}

func runGracefulShutdown(srv *httpserver.Server, sessions *session.Store, cancelBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Ends every session so preferences are flushed when SaveAtLogout is on.
		sessions.Close(shutdownCtx)
		cancelBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port, "store", cfg.StoreDriver)

	reg := metrics.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(reg)
	prefsMetrics := metrics.NewPreferencesMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	backend, closeStore := setupStore(cfg, storeMetrics)
	defer closeStore()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	healthChecks := []httpserver.HealthCheck{{Name: "store", Check: backend.Ping}}

	var store domain.LayoutStore = backend
	var appOpts []app.Option
	if cfg.RedisURL != "" {
		redisClient := setupRedis(bgCtx, cfg, metrics.NewRedisMetrics(reg))
		defer func() { _ = redisClient.Close() }()

		cache := redis.NewDescriptionCache(backend, redisClient, cfg.DescriptionCacheTTL, clock,
			redis.WithCacheRecorder(metrics.NewCacheMetrics(reg)),
			redis.WithInvalidationPublisher(redisClient),
		)
		stopEviction := cache.StartEvictionTimer(cacheEvictionInterval, clock)
		defer stopEviction()

		go redis.NewDescriptionInvalidationSubscriber(redisClient, cache).Start(bgCtx)

		store = cache
		appOpts = append(appOpts, app.WithInvalidator(cache))
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Optional: true,
		})
	} else {
		slog.Info("REDIS_URL not set, stylesheet descriptions are cached per session only")
	}

	resolver := profile.NewResolver(store, setupMapper(cfg), profile.WithRecorder(prefsMetrics))
	appSvc := app.NewService(preferences.Deps{
		Store:        store,
		Resolver:     resolver,
		Layouts:      layout.NewFactory(backend),
		Recorder:     prefsMetrics,
		SaveAtLogout: cfg.SavePreferencesAtLogout,
		LocaleAware:  cfg.LocaleAware,
	}, appOpts...)

	sessions := session.NewStore(cfg.SessionIdleTimeout, clock,
		session.WithEndFunc(app.EndSession),
		session.WithRecorder(prefsMetrics),
	)
	stopSessionEviction := sessions.StartEvictionTimer(sessionEvictionInterval)
	defer stopSessionEviction()

	srv := httpserver.NewServer(cfg, appSvc, sessions,
		httpserver.WithMetrics(metrics.Handler(reg), httpMetrics),
		httpserver.WithHealthChecks(healthChecks...),
	)

	done := runGracefulShutdown(srv, sessions, cancelBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
