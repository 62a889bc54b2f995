package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
)

// Supported embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"
	ProviderMock   = "mock"
)

// Supported corpus stores.
const (
	StoreNone      = "none"
	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreOceanBase = "oceanbase"
	StoreCSV       = "csv"
)

// Config contains the complete configuration for an embedsearch client.
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "text-embedding-ada-002",
//	    },
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        SQLite:   core.SQLiteConfig{Path: "./embedsearch.db"},
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// Store contains corpus store configuration (optional).
	Store StoreConfig `json:"store" yaml:"store"`

	// Search contains corpus build and query tuning.
	Search SearchConfig `json:"search" yaml:"search"`

	// Log contains logger configuration.
	Log LogConfig `json:"log" yaml:"log"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen, mock
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider. Not used by mock.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-ada-002", "text-embedding-v4").
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 1024).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// StoreConfig selects and configures the corpus store.
//
// Supported providers: none (default), sqlite, postgres, oceanbase, csv
type StoreConfig struct {
	Provider  string          `json:"provider" yaml:"provider"`
	SQLite    SQLiteConfig    `json:"sqlite" yaml:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" yaml:"postgres"`
	OceanBase OceanBaseConfig `json:"oceanbase" yaml:"oceanbase"`
	CSV       CSVConfig       `json:"csv" yaml:"csv"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path  string `json:"path" yaml:"path"`
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty"`
}

// OceanBaseConfig configures the OceanBase store.
type OceanBaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
}

// CSVConfig configures the CSV directory store.
type CSVConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// SearchConfig tunes corpus construction and queries.
type SearchConfig struct {
	// Concurrency bounds in-flight embedding requests during a build.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// BatchSize is the number of texts per provider request. 1 embeds one at a time.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// MaxDistance is the default threshold for Search. 0 disables it.
	MaxDistance float64 `json:"max_distance,omitempty" yaml:"max_distance,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Development selects zap's human-readable development encoder.
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns a configuration with defaults filled in and no
// credentials.
func DefaultConfig() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Provider: ProviderOpenAI,
		},
		Store: StoreConfig{
			Provider: StoreNone,
			SQLite:   SQLiteConfig{Path: "./embedsearch.db"},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "postgres",
				DBName:  "embedsearch",
				SSLMode: "disable",
			},
			OceanBase: OceanBaseConfig{
				Host:   "127.0.0.1",
				Port:   2881,
				User:   "root@sys",
				DBName: "embedsearch",
			},
			CSV: CSVConfig{Dir: "./corpora"},
		},
		Search: SearchConfig{
			Concurrency: corpus.DefaultConcurrency,
			BatchSize:   1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - EMBEDDING_PROVIDER (openai, qwen, mock), EMBEDDING_API_KEY (falls back to
//     OPENAI_API_KEY), EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - STORE_PROVIDER (none, sqlite, postgres, oceanbase, csv)
//   - SQLITE_PATH, SQLITE_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_TABLE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD,
//     OCEANBASE_DATABASE, OCEANBASE_TABLE
//   - CSV_DIR
//   - SEARCH_CONCURRENCY, SEARCH_BATCH_SIZE, SEARCH_MAX_DISTANCE
//   - LOG_LEVEL, LOG_DEVELOPMENT
//
// Malformed numeric values are reported as ErrInvalidConfig.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
	return configFromEnv()
}

func configFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	var err error

	cfg.Embedder.Provider = getEnvOrDefault("EMBEDDING_PROVIDER", cfg.Embedder.Provider)
	cfg.Embedder.APIKey = getEnvOrDefault("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.Embedder.Model = os.Getenv("EMBEDDING_MODEL")
	cfg.Embedder.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	if cfg.Embedder.Dimensions, err = envInt("EMBEDDING_DIMENSIONS", 0); err != nil {
		return nil, err
	}

	cfg.Store.Provider = getEnvOrDefault("STORE_PROVIDER", cfg.Store.Provider)

	cfg.Store.SQLite.Path = getEnvOrDefault("SQLITE_PATH", cfg.Store.SQLite.Path)
	cfg.Store.SQLite.Table = os.Getenv("SQLITE_TABLE")

	pg := &cfg.Store.Postgres
	pg.Host = getEnvOrDefault("POSTGRES_HOST", pg.Host)
	if pg.Port, err = envInt("POSTGRES_PORT", pg.Port); err != nil {
		return nil, err
	}
	pg.User = getEnvOrDefault("POSTGRES_USER", pg.User)
	pg.Password = os.Getenv("POSTGRES_PASSWORD")
	pg.DBName = getEnvOrDefault("POSTGRES_DATABASE", pg.DBName)
	pg.Table = os.Getenv("POSTGRES_TABLE")
	pg.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", pg.SSLMode)

	ob := &cfg.Store.OceanBase
	ob.Host = getEnvOrDefault("OCEANBASE_HOST", ob.Host)
	if ob.Port, err = envInt("OCEANBASE_PORT", ob.Port); err != nil {
		return nil, err
	}
	ob.User = getEnvOrDefault("OCEANBASE_USER", ob.User)
	ob.Password = os.Getenv("OCEANBASE_PASSWORD")
	ob.DBName = getEnvOrDefault("OCEANBASE_DATABASE", ob.DBName)
	ob.Table = os.Getenv("OCEANBASE_TABLE")

	cfg.Store.CSV.Dir = getEnvOrDefault("CSV_DIR", cfg.Store.CSV.Dir)

	if cfg.Search.Concurrency, err = envInt("SEARCH_CONCURRENCY", cfg.Search.Concurrency); err != nil {
		return nil, err
	}
	if cfg.Search.BatchSize, err = envInt("SEARCH_BATCH_SIZE", cfg.Search.BatchSize); err != nil {
		return nil, err
	}
	if v := os.Getenv("SEARCH_MAX_DISTANCE"); v != "" {
		if cfg.Search.MaxDistance, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, NewSearchError("LoadConfigFromEnv", fmt.Errorf("%w: SEARCH_MAX_DISTANCE: %v", ErrInvalidConfig, err))
		}
	}

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = os.Getenv("LOG_DEVELOPMENT") == "true"

	return cfg, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return configFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file. Fields absent from
// the file keep their DefaultConfig values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSearchError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewSearchError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file. Fields absent from
// the file keep their DefaultConfig values.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSearchError("LoadConfigFromYAML", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, NewSearchError("LoadConfigFromYAML", err)
	}

	return config, nil
}

// LoadConfigFromFile dispatches on the file extension: .json is read as JSON,
// .yaml and .yml as YAML, anything else as a .env file.
func LoadConfigFromFile(path string) (*Config, error) {
	switch filepath.Ext(path) {
	case ".json":
		return LoadConfigFromJSON(path)
	case ".yaml", ".yml":
		return LoadConfigFromYAML(path)
	default:
		return LoadConfigFromEnvFile(path)
	}
}

// Validate validates the configuration.
//
// Checks that:
//   - the embedder provider is known, with an API key unless it is mock
//   - the store provider is known
//   - concurrency and batch size are not negative, and max distance is in [0, 2]
//
// Returns an error matching ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return NewSearchError("Validate", fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	switch c.Embedder.Provider {
	case ProviderOpenAI, ProviderQwen:
		if c.Embedder.APIKey == "" {
			return invalid("%s embedder requires an API key", c.Embedder.Provider)
		}
	case ProviderMock:
	default:
		return invalid("unknown embedder provider %q", c.Embedder.Provider)
	}
	if c.Embedder.Dimensions < 0 {
		return invalid("negative embedding dimensions %d", c.Embedder.Dimensions)
	}

	switch c.Store.Provider {
	case "", StoreNone, StoreSQLite, StorePostgres, StoreOceanBase:
	case StoreCSV:
		if c.Store.CSV.Dir == "" {
			return invalid("csv store requires a directory")
		}
	default:
		return invalid("unknown store provider %q", c.Store.Provider)
	}

	if c.Search.Concurrency < 0 {
		return invalid("negative concurrency %d", c.Search.Concurrency)
	}
	if c.Search.BatchSize < 0 {
		return invalid("negative batch size %d", c.Search.BatchSize)
	}
	if c.Search.MaxDistance < 0 || c.Search.MaxDistance > 2 {
		return invalid("max distance %g outside [0, 2]", c.Search.MaxDistance)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewSearchError("LoadConfigFromEnv", fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err))
	}
	return n, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
