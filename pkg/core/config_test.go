package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedsearch "github.com/oceanbase/embedsearch-go/pkg/core"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *embedsearch.Config)
	}{
		{
			name: "openai with sqlite",
			envVars: map[string]string{
				"EMBEDDING_PROVIDER": "openai",
				"EMBEDDING_API_KEY":  "test-key",
				"EMBEDDING_MODEL":    "text-embedding-ada-002",
				"STORE_PROVIDER":     "sqlite",
				"SQLITE_PATH":        "./test.db",
			},
			check: func(t *testing.T, cfg *embedsearch.Config) {
				assert.Equal(t, "openai", cfg.Embedder.Provider)
				assert.Equal(t, "test-key", cfg.Embedder.APIKey)
				assert.Equal(t, "text-embedding-ada-002", cfg.Embedder.Model)
				assert.Equal(t, "sqlite", cfg.Store.Provider)
				assert.Equal(t, "./test.db", cfg.Store.SQLite.Path)
			},
		},
		{
			name: "OPENAI_API_KEY fallback",
			envVars: map[string]string{
				"EMBEDDING_API_KEY": "",
				"OPENAI_API_KEY":    "sk-fallback",
			},
			check: func(t *testing.T, cfg *embedsearch.Config) {
				assert.Equal(t, "sk-fallback", cfg.Embedder.APIKey)
			},
		},
		{
			name: "qwen with postgres and search tuning",
			envVars: map[string]string{
				"EMBEDDING_PROVIDER":   "qwen",
				"EMBEDDING_API_KEY":    "test-key",
				"EMBEDDING_DIMENSIONS": "1024",
				"STORE_PROVIDER":       "postgres",
				"POSTGRES_HOST":        "db.internal",
				"POSTGRES_PORT":        "6543",
				"SEARCH_CONCURRENCY":   "8",
				"SEARCH_BATCH_SIZE":    "16",
				"SEARCH_MAX_DISTANCE":  "0.5",
				"LOG_LEVEL":            "debug",
				"LOG_DEVELOPMENT":      "true",
			},
			check: func(t *testing.T, cfg *embedsearch.Config) {
				assert.Equal(t, "qwen", cfg.Embedder.Provider)
				assert.Equal(t, 1024, cfg.Embedder.Dimensions)
				assert.Equal(t, "db.internal", cfg.Store.Postgres.Host)
				assert.Equal(t, 6543, cfg.Store.Postgres.Port)
				assert.Equal(t, "postgres", cfg.Store.Postgres.User)
				assert.Equal(t, 8, cfg.Search.Concurrency)
				assert.Equal(t, 16, cfg.Search.BatchSize)
				assert.Equal(t, 0.5, cfg.Search.MaxDistance)
				assert.Equal(t, "debug", cfg.Log.Level)
				assert.True(t, cfg.Log.Development)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := embedsearch.LoadConfigFromEnv()
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadConfigFromEnv_InvalidNumber(t *testing.T) {
	t.Setenv("SEARCH_CONCURRENCY", "many")

	_, err := embedsearch.LoadConfigFromEnv()
	assert.ErrorIs(t, err, embedsearch.ErrInvalidConfig)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EMBEDDING_PROVIDER=mock\nCSV_DIR=/tmp/embedsearch-corpora\n"), 0644))
	t.Cleanup(func() {
		_ = os.Unsetenv("EMBEDDING_PROVIDER")
		_ = os.Unsetenv("CSV_DIR")
	})

	cfg, err := embedsearch.LoadConfigFromEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
	assert.Equal(t, "/tmp/embedsearch-corpora", cfg.Store.CSV.Dir)

	_, err = embedsearch.LoadConfigFromEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
embedder:
  provider: mock
  dimensions: 16
store:
  provider: csv
  csv:
    dir: ./corpora
search:
  concurrency: 3
log:
  level: warn
`), 0644))

	cfg, err := embedsearch.LoadConfigFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
	assert.Equal(t, 16, cfg.Embedder.Dimensions)
	assert.Equal(t, "csv", cfg.Store.Provider)
	assert.Equal(t, "./corpora", cfg.Store.CSV.Dir)
	assert.Equal(t, 3, cfg.Search.Concurrency)
	assert.Equal(t, 1, cfg.Search.BatchSize, "unset fields keep defaults")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"embedder": {"provider": "qwen", "api_key": "k"}, "store": {"provider": "sqlite"}}`), 0644))

	cfg, err = embedsearch.LoadConfigFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "qwen", cfg.Embedder.Provider)
	assert.Equal(t, "k", cfg.Embedder.APIKey)
	assert.Equal(t, "./embedsearch.db", cfg.Store.SQLite.Path)
	assert.NoError(t, cfg.Validate())

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{"), 0644))
	_, err = embedsearch.LoadConfigFromJSON(badPath)
	assert.Error(t, err)

	_, err = embedsearch.LoadConfigFromYAML(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *embedsearch.Config {
		cfg := embedsearch.DefaultConfig()
		cfg.Embedder.APIKey = "test-key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *embedsearch.Config)
		wantErr bool
	}{
		{"valid config", func(cfg *embedsearch.Config) {}, false},
		{"mock needs no key", func(cfg *embedsearch.Config) {
			cfg.Embedder.Provider = "mock"
			cfg.Embedder.APIKey = ""
		}, false},
		{"missing api key", func(cfg *embedsearch.Config) { cfg.Embedder.APIKey = "" }, true},
		{"unknown embedder", func(cfg *embedsearch.Config) { cfg.Embedder.Provider = "huggingface" }, true},
		{"missing embedder", func(cfg *embedsearch.Config) { cfg.Embedder.Provider = "" }, true},
		{"unknown store", func(cfg *embedsearch.Config) { cfg.Store.Provider = "redis" }, true},
		{"csv without dir", func(cfg *embedsearch.Config) {
			cfg.Store.Provider = "csv"
			cfg.Store.CSV.Dir = ""
		}, true},
		{"negative concurrency", func(cfg *embedsearch.Config) { cfg.Search.Concurrency = -1 }, true},
		{"negative batch size", func(cfg *embedsearch.Config) { cfg.Search.BatchSize = -1 }, true},
		{"max distance above 2", func(cfg *embedsearch.Config) { cfg.Search.MaxDistance = 2.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, embedsearch.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := embedsearch.NewLogger(embedsearch.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = embedsearch.NewLogger(embedsearch.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = embedsearch.NewLogger(embedsearch.LogConfig{Level: "loud"})
	assert.ErrorIs(t, err, embedsearch.ErrInvalidConfig)
}
