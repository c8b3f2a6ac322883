package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crawler.yaml"), []byte(content), 0o644))
}

func TestInitialize_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
site:
  base_url: "https://csa-iot.org"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://csa-iot.org", cfg.Site.BaseURL)
	assert.Equal(t, 2.0, cfg.Fetch.MaxRequestsPerSecond)
	assert.Equal(t, 20, cfg.Planning.BatchSize)
	assert.Equal(t, 1, cfg.Session.MaxConcurrentSessions)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestInitialize_UserOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
log_level: debug
site:
  base_url: "https://csa-iot.org"
fetch:
  max_requests_per_second: 2
  user_agent: "custom-agent/1.0"
planning:
  batch_size: 50
session:
  max_concurrent_sessions: 3
  replan_on_growth: true
retry:
  max_attempts: 5
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.0, cfg.Fetch.MaxRequestsPerSecond)
	assert.Equal(t, "custom-agent/1.0", cfg.Fetch.UserAgent)
	// Fields not overridden keep their defaults after the merge.
	assert.Equal(t, 30, cfg.Fetch.RequestTimeoutSeconds)
	assert.Equal(t, 50, cfg.Planning.BatchSize)
	assert.Equal(t, 5, cfg.Planning.ConcurrencyLimit)
	assert.Equal(t, 3, cfg.Session.MaxConcurrentSessions)
	assert.True(t, cfg.Session.ReplanOnGrowth)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestInitialize_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "site: [this is not: valid yaml")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
planning:
  batch_size: 0
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitialize_ExpandsEnvVars(t *testing.T) {
	t.Setenv("CRAWLER_BASE_URL", "https://example.test")

	dir := t.TempDir()
	writeConfigFile(t, dir, `
site:
  base_url: "{{.CRAWLER_BASE_URL}}"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.Site.BaseURL)
}

func TestLoadCrawlerYAML_MalformedTemplateKeptLiteral(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
site:
  base_url: "{{.UNCLOSED"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "{{.UNCLOSED", cfg.Site.BaseURL)
}
