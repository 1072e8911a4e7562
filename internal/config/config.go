// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kabinet/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, embedder model, vector dimension
//   - Storage: PostgreSQL connection (see storage.go)
//   - Indexing: chunk size/overlap, sync workers, remote root
//   - Retrieval: top-k, context token budget, similarity threshold
//
// The loaded Config is treated as immutable: it is built once at startup,
// validated, and passed by pointer into constructors. Core components never
// read ambient environment state themselves.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates chunk size/overlap violate 0 <= overlap < size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates the top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidContextTokens indicates the context token budget is out of range.
	ErrInvalidContextTokens = errors.New("invalid max context tokens")

	// ErrInvalidSyncWorkers indicates the sync worker count is out of range.
	ErrInvalidSyncWorkers = errors.New("invalid sync workers")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema is provisioned at
	// DefaultEmbeddingDim and changing the model requires a full re-index.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingDim is the vector dimension of the chunks.embedding column.
	DefaultEmbeddingDim = 768

	// DefaultChunkSize is the target passage length in runes.
	DefaultChunkSize = 1200

	// DefaultChunkOverlap is the shared rune count between consecutive passages.
	DefaultChunkOverlap = 150

	// DefaultTopK is the default number of chunks fetched per retrieval.
	DefaultTopK = 6

	// DefaultMaxContextTokens is the default context assembly budget.
	DefaultMaxContextTokens = 2048

	// DefaultSyncWorkers bounds concurrent per-document indexing in one sync run.
	DefaultSyncWorkers = 4

	// DefaultEmbedBatchSize is the maximum number of passages per embedding call.
	DefaultEmbedBatchSize = 32
)

// Config stores application configuration.
type Config struct {
	// AI provider and embedder configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDim  int    `mapstructure:"embedding_dim" json:"embedding_dim"`

	// Chunking configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	TopK             int     `mapstructure:"top_k" json:"top_k"`
	MaxContextTokens int     `mapstructure:"max_context_tokens" json:"max_context_tokens"`
	MinSimilarity    float32 `mapstructure:"min_similarity" json:"min_similarity"` // 0 = disabled

	// Remote corpus configuration
	RemoteRoot      string `mapstructure:"remote_root" json:"remote_root"`
	RemoteRecursive bool   `mapstructure:"remote_recursive" json:"remote_recursive"`
	RemoteToken     string `mapstructure:"remote_token" json:"remote_token"` // SENSITIVE

	// Sync configuration
	SyncWorkers    int    `mapstructure:"sync_workers" json:"sync_workers"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	SyncLockPath   string `mapstructure:"sync_lock_path" json:"sync_lock_path"`

	// Passphrases maps a document path to the passphrase used to open it
	// when the remote copy is encrypted (PDF only).
	Passphrases map[string]string `mapstructure:"passphrases" json:"-"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve mode configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	AdminToken string `mapstructure:"admin_token" json:"-"` // SENSITIVE: guards the sync trigger
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kabinet")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_dim", DefaultEmbeddingDim)

	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)

	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("max_context_tokens", DefaultMaxContextTokens)
	viper.SetDefault("min_similarity", 0.0)

	viper.SetDefault("remote_root", "kb")
	viper.SetDefault("remote_recursive", false)

	viper.SetDefault("sync_workers", DefaultSyncWorkers)
	viper.SetDefault("embed_batch_size", DefaultEmbedBatchSize)
	// One lock file per machine: serve and a CLI sync against the same
	// catalog must not index concurrently.
	viper.SetDefault("sync_lock_path", filepath.Join(os.TempDir(), "kabinet-sync.lock"))

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kabinet")
	viper.SetDefault("postgres_password", "kabinet_dev_password")
	viper.SetDefault("postgres_db_name", "kabinet")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("listen_addr", "127.0.0.1:3500")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate only
// checks its presence for the selected provider.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "KABINET_PROVIDER")
	mustBind("embedder_model", "KABINET_EMBEDDER_MODEL")
	mustBind("remote_root", "KABINET_REMOTE_ROOT")
	mustBind("remote_token", "KABINET_REMOTE_TOKEN")
	mustBind("admin_token", "KABINET_ADMIN_TOKEN")
	mustBind("listen_addr", "KABINET_LISTEN_ADDR")
}
