package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	old := Version
	Version = "v1.4.0"
	t.Cleanup(func() { Version = old })

	info := Get()
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestFillFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	t.Run("fills_unknown", func(t *testing.T) {
		info := Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
		info.fillFromSettings(settings)

		assert.Equal(t, "0123456789abcdef0123", info.Commit)
		assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)
		assert.True(t, info.Modified)
	})

	t.Run("ldflags_win", func(t *testing.T) {
		info := Info{Version: "v1.0.0", Commit: "abc123", BuildTime: "yesterday"}
		info.fillFromSettings(settings)

		assert.Equal(t, "abc123", info.Commit)
		assert.Equal(t, "yesterday", info.BuildTime)
	})
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.0.0", Commit: "0123456789abcdef", GoVersion: "go1.25.0", Modified: true}
	assert.Equal(t, "v1.0.0 (0123456789ab-dirty, go1.25.0)", info.String())

	info = Info{Version: "dev", Commit: "unknown", GoVersion: "go1.25.0"}
	assert.Equal(t, "dev (unknown, go1.25.0)", info.String())
}
