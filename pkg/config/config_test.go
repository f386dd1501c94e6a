package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://issues.apache.org/jira", cfg.Jira.BaseURL)
	assert.Equal(t, DefaultFields, cfg.Jira.Fields)
	assert.Equal(t, 30*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, 50, cfg.Harvest.PageSize)
	assert.Equal(t, 1, cfg.Harvest.Concurrency)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
jira:
  base_url: https://jira.example.com
  fields: summary,updated
collections:
  - key: HADOOP
  - key: SPARK
    filter: type = Bug
harvest:
  page_size: 100
  concurrency: 3
rate_limit:
  requests_per_minute: 30
output:
  base_directory: /tmp/corpora
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://jira.example.com", cfg.Jira.BaseURL)
	assert.Equal(t, "summary,updated", cfg.Jira.Fields)
	require.Len(t, cfg.Collections, 2)
	assert.Equal(t, "HADOOP", cfg.Collections[0].Key)
	assert.Equal(t, "type = Bug", cfg.Collections[1].Filter)
	assert.Equal(t, 100, cfg.Harvest.PageSize)
	assert.Equal(t, 3, cfg.Harvest.Concurrency)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/tmp/corpora", cfg.Output.BaseDirectory)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jira: [not: closed"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JIRAHARVEST_BASE_URL", "https://env.example.com")
	t.Setenv("JIRAHARVEST_PROJECTS", "KAFKA, FLINK")
	t.Setenv("JIRAHARVEST_REQUESTS_PER_MINUTE", "25")
	t.Setenv("JIRAHARVEST_PAGE_SIZE", "75")
	t.Setenv("JIRAHARVEST_STATE_DIR", "/tmp/state")
	t.Setenv("JIRAHARVEST_OUTPUT_DIR", "/tmp/out")
	t.Setenv("JIRAHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://env.example.com", cfg.Jira.BaseURL)
	require.Len(t, cfg.Collections, 2)
	assert.Equal(t, "KAFKA", cfg.Collections[0].Key)
	assert.Equal(t, "FLINK", cfg.Collections[1].Key)
	assert.Equal(t, 25, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 75, cfg.Harvest.PageSize)
	assert.Equal(t, "/tmp/state", cfg.Harvest.StateDirectory)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("JIRAHARVEST_REQUESTS_PER_MINUTE", "plenty")
	t.Setenv("JIRAHARVEST_PAGE_SIZE", "-5")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 50, cfg.Harvest.PageSize)
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyFlags(map[string]interface{}{
		"base-url":         "https://flag.example.com",
		"projects":         []string{"HBASE"},
		"rate-limit":       10,
		"page-size":        20,
		"concurrency":      4,
		"max-run-duration": 2 * time.Hour,
		"state-dir":        "/flag/state",
		"output":           "/flag/out",
		"account":          "apache",
		"log-level":        "warn",
	})

	assert.Equal(t, "https://flag.example.com", cfg.Jira.BaseURL)
	require.Len(t, cfg.Collections, 1)
	assert.Equal(t, "HBASE", cfg.Collections[0].Key)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 20, cfg.Harvest.PageSize)
	assert.Equal(t, 4, cfg.Harvest.Concurrency)
	assert.Equal(t, 2*time.Hour, cfg.Harvest.MaxRunDuration)
	assert.Equal(t, "/flag/state", cfg.Harvest.StateDirectory)
	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
	assert.Equal(t, "apache", cfg.Jira.Account)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // keep any real ~/.jiraharvest.yaml out of the test
	t.Setenv("JIRAHARVEST_BASE_URL", "https://env.example.com")
	t.Setenv("JIRAHARVEST_PROJECTS", "KAFKA")

	cfg, err := Load("", map[string]interface{}{
		"base-url": "https://flag.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com", cfg.Jira.BaseURL)
	require.Len(t, cfg.Collections, 1)
	assert.Equal(t, "KAFKA", cfg.Collections[0].Key)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Collections = []CollectionConfig{{Key: "HADOOP"}}
		return cfg
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL", func(c *Config) { c.Jira.BaseURL = "" }},
		{"non-http base URL", func(c *Config) { c.Jira.BaseURL = "ftp://example.com" }},
		{"no collections", func(c *Config) { c.Collections = nil }},
		{"blank collection key", func(c *Config) { c.Collections = []CollectionConfig{{Key: "  "}} }},
		{"zero page size", func(c *Config) { c.Harvest.PageSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Harvest.Concurrency = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"sub-unit multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{"jitter out of range", func(c *Config) { c.Retry.JitterFactor = 1.5 }},
		{"empty state dir", func(c *Config) { c.Harvest.StateDirectory = "" }},
		{"empty output dir", func(c *Config) { c.Output.BaseDirectory = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
