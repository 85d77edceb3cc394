package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Index drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMilvus = "milvus"
	DriverMemory = "memory"
)

// Config holds the dealscout configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Rollup     RollupConfig     `yaml:"rollup"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Sync       SyncConfig       `yaml:"sync"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Auth       AuthConfig       `yaml:"auth"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig selects and tunes the vector index.
type IndexConfig struct {
	Driver           string       `yaml:"driver"` // valkey, redis, milvus, memory (default: valkey)
	Addrs            []string     `yaml:"addrs"`
	Username         string       `yaml:"username"`
	Password         string       `yaml:"password"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	KeyPrefix        string       `yaml:"key_prefix"`
	Algorithm        string       `yaml:"algorithm"` // hnsw, flat
	HNSWM            int          `yaml:"hnsw_m"`
	HNSWEFConstruct  int          `yaml:"hnsw_ef_construction"`
	HNSWEFSearch     int          `yaml:"hnsw_ef_search"`
	Milvus           MilvusConfig `yaml:"milvus"`
}

// MilvusConfig holds Milvus connection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"db_name"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string      `yaml:"provider"` // metrics label, e.g. openai, nebius
	APIKey              string      `yaml:"api_key"`
	BaseURL             string      `yaml:"base_url"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	BatchSize           int         `yaml:"batch_size"`
	DocumentInstruction string      `yaml:"document_instruction"`
	QueryInstruction    string      `yaml:"query_instruction"`
	Cache               CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLHour int  `yaml:"ttl_hours"` // 0 = no expiry
}

// GenerationConfig holds text-generation provider settings. An empty model disables generation.
type GenerationConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// RollupConfig tunes candidate retrieval.
type RollupConfig struct {
	DefaultK        int `yaml:"default_k"`
	MaxK            int `yaml:"max_k"`
	EmbedTimeoutMs  int `yaml:"embed_timeout_ms"`
	SearchTimeoutMs int `yaml:"search_timeout_ms"`
}

// SynthesisConfig tunes narrative generation.
type SynthesisConfig struct {
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   *float64 `yaml:"temperature"` // unset means 0.3
	MaxCandidates int      `yaml:"max_candidates"`
	TimeoutMs     int      `yaml:"timeout_ms"`
}

// SyncConfig holds the deal source and batch sync settings.
type SyncConfig struct {
	DSN           string `yaml:"dsn"`
	Table         string `yaml:"table"`
	PublishedOnly bool   `yaml:"published_only"`
	PageSize      int    `yaml:"page_size"`
	Concurrency   int    `yaml:"concurrency"`
	MaxRecords    int    `yaml:"max_records"`
	Enrich        bool   `yaml:"enrich"`
}

// EnrichmentConfig tunes strategy/stage inference.
type EnrichmentConfig struct {
	Workers       int     `yaml:"workers"`
	MinConfidence float64 `yaml:"min_confidence"`
	TimeoutMs     int     `yaml:"timeout_ms"`
	MaxTokens     int     `yaml:"max_tokens"`
	Overwrite     bool    `yaml:"overwrite"`
}

// TracingConfig holds OpenTelemetry exporter settings. Tracing is off unless enabled.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Index.Driver == "" {
		c.Index.Driver = DriverValkey
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "dealscout:"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.HNSWEFSearch <= 0 {
		c.Index.HNSWEFSearch = 128
	}
	if c.Index.Milvus.Collection == "" {
		c.Index.Milvus.Collection = "dealscout_candidates"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = c.Embedding.Provider
	}
	// Generation reuses the embedding credentials unless set explicitly.
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}

	if c.Rollup.DefaultK <= 0 {
		c.Rollup.DefaultK = 5
	}
	if c.Rollup.MaxK <= 0 {
		c.Rollup.MaxK = 50
	}
	if c.Rollup.EmbedTimeoutMs <= 0 {
		c.Rollup.EmbedTimeoutMs = 10000
	}
	if c.Rollup.SearchTimeoutMs <= 0 {
		c.Rollup.SearchTimeoutMs = 5000
	}

	if c.Synthesis.MaxTokens <= 0 {
		c.Synthesis.MaxTokens = 500
	}
	if c.Synthesis.Temperature == nil {
		t := 0.3
		c.Synthesis.Temperature = &t
	}
	if c.Synthesis.MaxCandidates <= 0 {
		c.Synthesis.MaxCandidates = 5
	}
	if c.Synthesis.TimeoutMs <= 0 {
		c.Synthesis.TimeoutMs = 8000
	}

	if c.Sync.Table == "" {
		c.Sync.Table = "deals"
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 200
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = 2
	}

	if c.Enrichment.Workers <= 0 {
		c.Enrichment.Workers = 4
	}
	if c.Enrichment.MinConfidence <= 0 {
		c.Enrichment.MinConfidence = 0.6
	}
	if c.Enrichment.TimeoutMs <= 0 {
		c.Enrichment.TimeoutMs = 15000
	}
	if c.Enrichment.MaxTokens <= 0 {
		c.Enrichment.MaxTokens = 200
	}

	if c.Tracing.SampleRatio <= 0 {
		c.Tracing.SampleRatio = 1
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "dealscout"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Index.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("index.addrs is required for driver %q", c.Index.Driver)
		}
	case DriverMilvus:
		if c.Index.Milvus.Address == "" {
			return fmt.Errorf("index.milvus.address is required for driver %q", c.Index.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("index.driver must be one of valkey, redis, milvus, memory, got %q", c.Index.Driver)
	}
	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}

	if c.Rollup.DefaultK > c.Rollup.MaxK {
		return fmt.Errorf("rollup.default_k (%d) must not exceed rollup.max_k (%d)", c.Rollup.DefaultK, c.Rollup.MaxK)
	}
	if t := c.Synthesis.TemperatureValue(); t < 0 || t > 2 || math.IsNaN(t) {
		return fmt.Errorf("synthesis.temperature must be within [0, 2], got %g", t)
	}
	if c.Enrichment.MinConfidence > 1 {
		return fmt.Errorf("enrichment.min_confidence must be within (0, 1], got %g", c.Enrichment.MinConfidence)
	}
	if c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within (0, 1], got %g", c.Tracing.SampleRatio)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// EmbedTimeout returns the query embedding timeout.
func (c RollupConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutMs) * time.Millisecond
}

// SearchTimeout returns the index search timeout.
func (c RollupConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMs) * time.Millisecond
}

// Timeout returns the synthesis timeout.
func (c SynthesisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// TemperatureValue returns the sampling temperature, 0.3 when unset.
func (c SynthesisConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return 0.3
	}
	return *c.Temperature
}

// Timeout returns the per-record enrichment timeout.
func (c EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// TTL returns the embedding cache TTL; zero means entries never expire.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHour) * time.Hour
}

// GenerationEnabled reports whether a text-generation model is configured.
func (c *Config) GenerationEnabled() bool {
	return c.Generation.Model != ""
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
