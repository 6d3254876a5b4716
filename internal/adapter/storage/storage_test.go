package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/config"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StoreDriver: config.StoreDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "prefs.db")}

	store, closeFn, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, store.Ping(ctx))
	_, err = store.GetSystemProfile(ctx, domain.NullClientSignature)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreDriver: "mysql"}, nil)
	assert.ErrorContains(t, err, `unknown store driver "mysql"`)
}
