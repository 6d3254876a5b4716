// Package storage opens the configured preferences store.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/portalprefs/internal/adapter/metrics"
	"github.com/pscheid92/portalprefs/internal/adapter/postgres"
	"github.com/pscheid92/portalprefs/internal/adapter/sqlite"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/config"
)

// Backend is everything the server and the admin CLI need from a store.
type Backend interface {
	domain.LayoutStore
	domain.LayoutRepository

	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int32, error)

	CreateStructureStylesheet(ctx context.Context, d *domain.StructureStylesheetDescription) error
	CreateThemeStylesheet(ctx context.Context, d *domain.ThemeStylesheetDescription) error
	CreateProfile(ctx context.Context, userID string, p *domain.Profile) error
	MapAgent(ctx context.Context, userID string, agent domain.ClientSignature, profileID int) error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open connects to the store selected by cfg.StoreDriver and brings its schema
// up to date. m may be nil. The returned close function releases the store.
func Open(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (Backend, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg, m)
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.Info("Using SQLite store", "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (Backend, func(), error) {
	pc := postgres.PoolConfig{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
	var opts []postgres.StoreOption
	if m != nil {
		pc.Tracer = postgres.NewMetricsTracer(m)
		opts = append(opts, postgres.WithRetryRecorder(m))
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, pc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return postgres.NewStore(pool, opts...), pool.Close, nil
}
