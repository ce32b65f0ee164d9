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
)

// Config represents the complete historian configuration.
// It mirrors the config knobs enumerated in the retrieval specification.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures where the on-disk index lives.
type PathsConfig struct {
	// IndexDir is the directory holding index.db and its lock file.
	// Defaults to ~/.historian.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// SearchConfig configures hybrid search parameters.
// Knobs are configurable via:
//  1. User config (~/.config/historian/config.yaml) - personal defaults
//  2. Project config (.historian.yaml) - per-directory tuning
//  3. Env vars (HISTORIAN_ALPHA, HISTORIAN_MIN_SIMILARITY, ...) - highest priority
type SearchConfig struct {
	// Alpha is the semantic-ranker weight in weighted RRF fusion (0.0-1.0).
	// The keyword ranker receives 1-Alpha. Default: 0.7.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// RRFConstant is the RRF fusion smoothing parameter (k). Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MinSimilarity is the primary semantic acceptance threshold. Default: 0.70.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`

	// FallbackFloor is the looser threshold used only when the primary
	// threshold yields zero results. Default: 0.45.
	FallbackFloor float64 `yaml:"fallback_floor" json:"fallback_floor"`

	// SearchMultiplier controls how many candidates (k * multiplier) each
	// ranker considers before fusion narrows to k. Default: 3.
	SearchMultiplier int `yaml:"search_multiplier" json:"search_multiplier"`

	// DefaultK is the default number of results returned by search. Default: 10.
	DefaultK int `yaml:"default_k" json:"default_k"`

	// BoostRecent enables the recency boost in result scoring.
	BoostRecent bool `yaml:"boost_recent" json:"boost_recent"`

	// BoostFrequent enables the visit-frequency boost in result scoring.
	BoostFrequent bool `yaml:"boost_frequent" json:"boost_frequent"`

	// RecencyWeight is the contribution of the recency boost. Default: 0.15.
	RecencyWeight float64 `yaml:"recency_weight" json:"recency_weight"`

	// FrequencyWeight is the contribution of the frequency boost. Default: 0.15.
	FrequencyWeight float64 `yaml:"frequency_weight" json:"frequency_weight"`
}

// ChunkingConfig configures passage chunking.
type ChunkingConfig struct {
	MaxWordsPerPassage     int     `yaml:"max_words_per_passage" json:"max_words_per_passage"`
	MaxPassagesPerPage     int     `yaml:"max_passages_per_page" json:"max_passages_per_page"`
	SiblingMergeThreshold  float64 `yaml:"sibling_merge_threshold" json:"sibling_merge_threshold"`
	MinQuality             float64 `yaml:"min_quality" json:"min_quality"`
	MinPassageWords        int     `yaml:"min_passage_words" json:"min_passage_words"`
	ContentCapChars        int     `yaml:"content_cap_chars" json:"content_cap_chars"`
}

// EmbeddingsConfig configures the embedding backend adapter.
type EmbeddingsConfig struct {
	// Provider names the embedding backend: static, ollama, remote, or empty.
	// Validate checks the name; pkg/historian.Open builds the static embedder
	// whatever the value, and no backend is selected automatically.
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// Dimensions is the embedding vector length D, constant across the store.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// CallTimeout bounds a single embed() call. Default: 30s.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`

	// WarmTimeout/ColdTimeout bound a batch call depending on whether the
	// backend has already served a request this process lifetime.
	WarmTimeout time.Duration `yaml:"warm_timeout" json:"warm_timeout"`
	ColdTimeout time.Duration `yaml:"cold_timeout" json:"cold_timeout"`

	// BackendEndpoint is the address of an out-of-process embedding backend.
	BackendEndpoint string `yaml:"backend_endpoint" json:"backend_endpoint"`
}

// CacheConfig configures the query-result and embedding caches.
type CacheConfig struct {
	// ResultCacheSize is the max number of distinct (query,opts) entries kept.
	ResultCacheSize int `yaml:"result_cache_size" json:"result_cache_size"`
	// ResultCacheTTL bounds how long a cached search result stays fresh.
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl" json:"result_cache_ttl"`
	// EmbeddingCacheSize is the max number of cached query embeddings.
	EmbeddingCacheSize int `yaml:"embedding_cache_size" json:"embedding_cache_size"`
}

// StoreConfig configures the persistent page/passage store.
type StoreConfig struct {
	// SchemaVersion is the schema_version this binary expects on disk.
	SchemaVersion int `yaml:"schema_version" json:"schema_version"`
	// LockTimeout bounds how long to wait for the store's file lock.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
	// SQLiteCacheMB is the SQLite page cache size in MB.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ServerConfig configures the MCP server surface.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IndexDir: defaultIndexDir(),
		},
		Search: SearchConfig{
			Alpha:            0.7,
			RRFConstant:      60,
			MinSimilarity:    0.70,
			FallbackFloor:    0.45,
			SearchMultiplier: 3,
			DefaultK:         10,
			BoostRecent:      true,
			BoostFrequent:    true,
			RecencyWeight:    0.15,
			FrequencyWeight:  0.15,
		},
		Chunking: ChunkingConfig{
			MaxWordsPerPassage:    200,
			MaxPassagesPerPage:    30,
			SiblingMergeThreshold: 0.80,
			MinQuality:            0.3,
			MinPassageWords:       5,
			ContentCapChars:       10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "", // Empty names no particular backend
			Model:       "",
			Dimensions:  768,
			BatchSize:   32,
			CallTimeout: 30 * time.Second,
			WarmTimeout: 120 * time.Second,
			ColdTimeout: 180 * time.Second,
		},
		Cache: CacheConfig{
			ResultCacheSize:    100,
			ResultCacheTTL:     5 * time.Minute,
			EmbeddingCacheSize: 1000,
		},
		Store: StoreConfig{
			SchemaVersion: CurrentSchemaVersion,
			LockTimeout:   5 * time.Second,
			SQLiteCacheMB: 64,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// CurrentSchemaVersion is the schema_version this binary writes and expects.
const CurrentSchemaVersion = 1

// defaultIndexDir returns the default index storage directory.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".historian")
	}
	return filepath.Join(home, ".historian")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/historian/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/historian/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "historian", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "historian", "config.yaml")
	}
	return filepath.Join(home, ".config", "historian", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/historian/config.yaml)
//  3. Project config (.historian.yaml in dir)
//  4. Environment variables (HISTORIAN_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .historian.yaml or .historian.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".historian.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".historian.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if other.Paths.IndexDir != "" {
		c.Paths.IndexDir = other.Paths.IndexDir
	}

	// Search
	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MinSimilarity != 0 {
		c.Search.MinSimilarity = other.Search.MinSimilarity
	}
	if other.Search.FallbackFloor != 0 {
		c.Search.FallbackFloor = other.Search.FallbackFloor
	}
	if other.Search.SearchMultiplier != 0 {
		c.Search.SearchMultiplier = other.Search.SearchMultiplier
	}
	if other.Search.DefaultK != 0 {
		c.Search.DefaultK = other.Search.DefaultK
	}
	if other.Search.RecencyWeight != 0 {
		c.Search.RecencyWeight = other.Search.RecencyWeight
	}
	if other.Search.FrequencyWeight != 0 {
		c.Search.FrequencyWeight = other.Search.FrequencyWeight
	}

	// Chunking
	if other.Chunking.MaxWordsPerPassage != 0 {
		c.Chunking.MaxWordsPerPassage = other.Chunking.MaxWordsPerPassage
	}
	if other.Chunking.MaxPassagesPerPage != 0 {
		c.Chunking.MaxPassagesPerPage = other.Chunking.MaxPassagesPerPage
	}
	if other.Chunking.SiblingMergeThreshold != 0 {
		c.Chunking.SiblingMergeThreshold = other.Chunking.SiblingMergeThreshold
	}
	if other.Chunking.MinQuality != 0 {
		c.Chunking.MinQuality = other.Chunking.MinQuality
	}
	if other.Chunking.MinPassageWords != 0 {
		c.Chunking.MinPassageWords = other.Chunking.MinPassageWords
	}
	if other.Chunking.ContentCapChars != 0 {
		c.Chunking.ContentCapChars = other.Chunking.ContentCapChars
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CallTimeout != 0 {
		c.Embeddings.CallTimeout = other.Embeddings.CallTimeout
	}
	if other.Embeddings.WarmTimeout != 0 {
		c.Embeddings.WarmTimeout = other.Embeddings.WarmTimeout
	}
	if other.Embeddings.ColdTimeout != 0 {
		c.Embeddings.ColdTimeout = other.Embeddings.ColdTimeout
	}
	if other.Embeddings.BackendEndpoint != "" {
		c.Embeddings.BackendEndpoint = other.Embeddings.BackendEndpoint
	}

	// Cache
	if other.Cache.ResultCacheSize != 0 {
		c.Cache.ResultCacheSize = other.Cache.ResultCacheSize
	}
	if other.Cache.ResultCacheTTL != 0 {
		c.Cache.ResultCacheTTL = other.Cache.ResultCacheTTL
	}
	if other.Cache.EmbeddingCacheSize != 0 {
		c.Cache.EmbeddingCacheSize = other.Cache.EmbeddingCacheSize
	}

	// Store
	if other.Store.SchemaVersion != 0 {
		c.Store.SchemaVersion = other.Store.SchemaVersion
	}
	if other.Store.LockTimeout != 0 {
		c.Store.LockTimeout = other.Store.LockTimeout
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies HISTORIAN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HISTORIAN_ALPHA"); v != "" {
		if a, err := parseFloat64(v); err == nil && a >= 0 && a <= 1 {
			c.Search.Alpha = a
		}
	}
	if v := os.Getenv("HISTORIAN_MIN_SIMILARITY"); v != "" {
		if s, err := parseFloat64(v); err == nil && s >= 0 && s <= 1 {
			c.Search.MinSimilarity = s
		}
	}
	if v := os.Getenv("HISTORIAN_FALLBACK_FLOOR"); v != "" {
		if s, err := parseFloat64(v); err == nil && s >= 0 && s <= 1 {
			c.Search.FallbackFloor = s
		}
	}
	if v := os.Getenv("HISTORIAN_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("HISTORIAN_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("HISTORIAN_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("HISTORIAN_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("HISTORIAN_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("HISTORIAN_BACKEND_ENDPOINT"); v != "" {
		c.Embeddings.BackendEndpoint = v
	}
	if v := os.Getenv("HISTORIAN_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("HISTORIAN_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %f", c.Search.Alpha)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be between 0 and 1, got %f", c.Search.MinSimilarity)
	}
	if c.Search.FallbackFloor < 0 || c.Search.FallbackFloor > c.Search.MinSimilarity {
		return fmt.Errorf("search.fallback_floor must be between 0 and min_similarity, got %f", c.Search.FallbackFloor)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.SearchMultiplier <= 0 {
		return fmt.Errorf("search.search_multiplier must be positive, got %d", c.Search.SearchMultiplier)
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search.default_k must be positive, got %d", c.Search.DefaultK)
	}

	if c.Chunking.MaxWordsPerPassage <= 0 {
		return fmt.Errorf("chunking.max_words_per_passage must be positive, got %d", c.Chunking.MaxWordsPerPassage)
	}
	if c.Chunking.MinQuality < 0 || c.Chunking.MinQuality > 1 {
		return fmt.Errorf("chunking.min_quality must be between 0 and 1, got %f", c.Chunking.MinQuality)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"static": true, "ollama": true, "remote": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'static', 'ollama', 'remote', or empty, got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	if c.Store.SchemaVersion <= 0 {
		return fmt.Errorf("store.schema_version must be positive, got %d", c.Store.SchemaVersion)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	// reject a config whose fallback floor and primary threshold are both zero
	if math.Abs(c.Search.FallbackFloor-c.Search.MinSimilarity) < 1e-9 && c.Search.FallbackFloor == 0 {
		return fmt.Errorf("search.fallback_floor and search.min_similarity cannot both be zero")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.Alpha == 0 {
		c.Search.Alpha = defaults.Search.Alpha
		added = append(added, "search.alpha")
	}
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = defaults.Search.RRFConstant
		added = append(added, "search.rrf_constant")
	}
	if c.Search.MinSimilarity == 0 {
		c.Search.MinSimilarity = defaults.Search.MinSimilarity
		added = append(added, "search.min_similarity")
	}
	if c.Search.FallbackFloor == 0 {
		c.Search.FallbackFloor = defaults.Search.FallbackFloor
		added = append(added, "search.fallback_floor")
	}
	if c.Search.SearchMultiplier == 0 {
		c.Search.SearchMultiplier = defaults.Search.SearchMultiplier
		added = append(added, "search.search_multiplier")
	}
	if c.Cache.ResultCacheSize == 0 {
		c.Cache.ResultCacheSize = defaults.Cache.ResultCacheSize
		added = append(added, "cache.result_cache_size")
	}
	if c.Store.SQLiteCacheMB == 0 {
		c.Store.SQLiteCacheMB = defaults.Store.SQLiteCacheMB
		added = append(added, "store.sqlite_cache_mb")
	}

	return added
}
