package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/portalprefs/internal/platform/retry"
)

func TestSSLMode(t *testing.T) {
	assert.Equal(t, "require", sslMode("postgres://u:p@host/db?sslmode=REQUIRE"))
	assert.Equal(t, "prefer (default)", sslMode("postgres://u:p@host/db"))
	assert.Equal(t, "unknown", sslMode("://bad"))
}

func TestClassifyWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Action
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, retry.Retry},
		{"deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), retry.Retry},
		{"unique violation", &pgconn.PgError{Code: "23505"}, retry.Stop},
		{"plain error", errors.New("boom"), retry.Stop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyWriteError(tt.err))
		})
	}
}

func TestJSONObject(t *testing.T) {
	var nilMap map[string]string
	got, err := jsonObject(nilMap)
	assert.NoError(t, err)
	assert.Equal(t, "{}", got)

	got, err = jsonObject(map[string]map[string]string{"n1": {"width": "100%"}})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"n1":{"width":"100%"}}`, got)
}
