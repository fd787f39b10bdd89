// Package config loads GeoFlow CDS configuration.
//
// Precedence, lowest to highest: hardcoded defaults, YAML config file,
// GEOFLOW_* environment variables. The merged result is validated before
// use.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// Config represents the complete GeoFlow configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Agents     AgentsConfig     `yaml:"agents"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the regulatory corpus store.
type StoreConfig struct {
	// Path is the SQLite database file holding the ingested corpus.
	Path string `yaml:"path"`
	// Collection is the corpus collection name to load.
	Collection string `yaml:"collection"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// SemanticWeight is the fusion weight for the semantic leg (0.0-1.0).
	// Must sum to 1.0 with LexicalWeight.
	SemanticWeight float64 `yaml:"semantic_weight"`

	// LexicalWeight is the fusion weight for the keyword leg (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight"`

	// DefaultResults is the result count used when a caller omits n_results.
	DefaultResults int `yaml:"default_results"`

	// MaxResults caps n_results per query.
	MaxResults int `yaml:"max_results"`

	// Timeout bounds each query end to end, including the embedding call.
	// Duration string, e.g. "30s".
	Timeout string `yaml:"timeout"`

	// DegradeOnEmbedError serves lexical-only results when the embedding
	// provider fails at query time instead of failing the query.
	DegradeOnEmbedError bool `yaml:"degrade_on_embed_error"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "gemini" or "static".
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Host is the provider API base URL. Empty uses the provider default.
	Host string `yaml:"host"`
	// APIKey authenticates with the provider. Usually set via
	// GEOFLOW_API_KEY or GOOGLE_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`
	// Timeout bounds each embedding HTTP request. Duration string.
	Timeout string `yaml:"timeout"`
	// CacheSize is the LRU query-embedding cache capacity.
	CacheSize int `yaml:"cache_size"`
	// BatchSize is texts per batch request during corpus indexing.
	BatchSize int `yaml:"batch_size"`
}

// AgentsConfig locates the agent configuration file.
type AgentsConfig struct {
	// Path is the agents YAML file.
	Path string `yaml:"path"`
	// WatchDebounce coalesces rapid file events during live reload.
	// Duration string, e.g. "200ms".
	WatchDebounce string `yaml:"watch_debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	FilePath      string `yaml:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       filepath.Join("data", "corpus.db"),
			Collection: "regulations",
		},
		Search: SearchConfig{
			SemanticWeight:      0.7,
			LexicalWeight:       0.3,
			DefaultResults:      10,
			MaxResults:          100,
			Timeout:             "30s",
			DegradeOnEmbedError: false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "gemini",
			Model:     "models/embedding-001",
			Host:      "",
			Timeout:   "15s",
			CacheSize: 1000,
			BatchSize: 32,
		},
		Agents: AgentsConfig{
			Path:          filepath.Join("config", "agents.yaml"),
			WatchDebounce: "200ms",
		},
		Logging: LoggingConfig{
			Level:         "info",
			FilePath:      "",
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
	}
}

// Load reads configuration from path (empty means defaults only), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML merges non-zero values from a YAML file over the defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return geoerrors.Wrap(err, geoerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path))
		}
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path))
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path))
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Collection != "" {
		c.Store.Collection = other.Store.Collection
	}

	// Zero is not a practical weight, so only non-zero values merge.
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.DefaultResults != 0 {
		c.Search.DefaultResults = other.Search.DefaultResults
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.Timeout != "" {
		c.Search.Timeout = other.Search.Timeout
	}
	if other.Search.DegradeOnEmbedError {
		c.Search.DegradeOnEmbedError = true
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Host != "" {
		c.Embeddings.Host = other.Embeddings.Host
	}
	if other.Embeddings.APIKey != "" {
		c.Embeddings.APIKey = other.Embeddings.APIKey
	}
	if other.Embeddings.Timeout != "" {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Agents.Path != "" {
		c.Agents.Path = other.Agents.Path
	}
	if other.Agents.WatchDebounce != "" {
		c.Agents.WatchDebounce = other.Agents.WatchDebounce
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies GEOFLOW_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEOFLOW_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("GEOFLOW_COLLECTION"); v != "" {
		c.Store.Collection = v
	}
	if v := os.Getenv("GEOFLOW_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("GEOFLOW_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("GEOFLOW_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.Timeout = v
		}
	}
	if v := os.Getenv("GEOFLOW_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GEOFLOW_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("GEOFLOW_EMBED_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("GEOFLOW_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" && c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("GEOFLOW_AGENTS_PATH"); v != "" {
		c.Agents.Path = v
	}
	if v := os.Getenv("GEOFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GEOFLOW_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate checks the merged configuration for consistency.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}

	sum := c.Search.SemanticWeight + c.Search.LexicalWeight
	if math.Abs(sum-1.0) > 0.01 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"semantic_weight + lexical_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.DefaultResults <= 0 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"default_results must be positive, got %d", c.Search.DefaultResults)
	}
	if c.Search.MaxResults < c.Search.DefaultResults {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"max_results (%d) must be >= default_results (%d)",
			c.Search.MaxResults, c.Search.DefaultResults)
	}
	if d, err := time.ParseDuration(c.Search.Timeout); err != nil || d <= 0 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"search timeout must be a positive duration, got %q", c.Search.Timeout)
	}
	if d, err := time.ParseDuration(c.Embeddings.Timeout); err != nil || d <= 0 {
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"embeddings timeout must be a positive duration, got %q", c.Embeddings.Timeout)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "gemini", "static":
	default:
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"embeddings.provider must be 'gemini' or 'static', got %s", c.Embeddings.Provider)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// SearchTimeout returns the parsed per-query timeout.
func (c *Config) SearchTimeout() time.Duration {
	return parseDurationOr(c.Search.Timeout, 30*time.Second)
}

// EmbedTimeout returns the parsed per-request embedding timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return parseDurationOr(c.Embeddings.Timeout, 15*time.Second)
}

// WatchDebounce returns the parsed config-watch debounce window.
func (c *Config) WatchDebounce() time.Duration {
	return parseDurationOr(c.Agents.WatchDebounce, 200*time.Millisecond)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid, "failed to write config file")
	}
	return nil
}
