package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("TEST_FLAG", v)
		assert.True(t, flag("TEST_FLAG", false), v)
	}
	t.Setenv("TEST_FLAG", "nope")
	assert.False(t, flag("TEST_FLAG", true))
	t.Setenv("TEST_FLAG", "")
	assert.True(t, flag("TEST_FLAG", true), "unset keeps the default")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("GOOGLE_CLIENT_IDS", "a, b")
	t.Setenv("GOOGLE_WEB_CLIENT_ID", "web")
	t.Setenv("GOOGLE_IOS_CLIENT_ID", "")
	t.Setenv("GOOGLE_JWKS_CACHE_TTL_SECONDS", "5")

	cfg := loadConfig()
	assert.True(t, cfg.FailClosedWithoutDB, "production defaults to fail-closed")
	assert.True(t, cfg.RequireAuth)
	assert.True(t, cfg.CaptionPlayerListing)
	assert.Equal(t, []string{"a", "b", "web"}, cfg.ClientIDs)
	assert.Equal(t, time.Minute, cfg.JWKSCacheTTL, "key TTL is floored")
	assert.Equal(t, 20*time.Second, cfg.QueueTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.MaxConcurrency)
}

func TestBuildAppStartupChecks(t *testing.T) {
	base := engine.Config{CacheDir: t.TempDir(), CacheTTL: time.Hour, MaxConcurrency: 1}

	cfg := base
	cfg.RequireAuth = true
	_, err := buildApp(context.Background(), cfg, false)
	assert.ErrorContains(t, err, "GOOGLE_CLIENT_IDS")

	cfg = base
	cfg.FailClosedWithoutDB = true
	_, err = buildApp(context.Background(), cfg, false)
	assert.ErrorContains(t, err, "DATABASE_URL")

	cfg.DatabaseURL = "redis://127.0.0.1:1"
	_, err = buildApp(context.Background(), cfg, false)
	assert.ErrorContains(t, err, "unreachable")

	cfg = base
	cfg.DatabaseURL = "redis://127.0.0.1:1"
	a, err := buildApp(context.Background(), cfg, false)
	require.NoError(t, err, "fail-open starts on the file cache")
	defer a.closeStore()
	assert.Empty(t, a.tiers.DurableName())
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
