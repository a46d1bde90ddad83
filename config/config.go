package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for vaultindex.
type Config struct {
	Vault     VaultConfig     `yaml:"vault"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VaultConfig selects which documents are indexable.
type VaultConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// EmbeddingConfig holds provider configuration for embeddings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai" or "mock"
	Model     string `yaml:"model"`       // e.g. "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // environment variable holding the key
	BaseURL   string `yaml:"base_url"`    // empty for api.openai.com
	Dimension int    `yaml:"dimension"`
}

// ChatConfig holds provider configuration for reply generation.
type ChatConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// IndexConfig tunes the sync pipeline.
type IndexConfig struct {
	BatchSize    int  `yaml:"batch_size"`
	BatchDelayMS int  `yaml:"batch_delay_ms"`
	ContentCap   int  `yaml:"content_cap"`
	SampleSize   int  `yaml:"sample_size"` // staleness heuristic sample
	CacheEnabled bool `yaml:"cache_enabled"`
}

// SearchConfig tunes query behavior.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Includes: []string{"**/*.md"},
			Excludes: []string{".obsidian/**", ".vaultindex/**", "**/.trash/**"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Chat: ChatConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Index: IndexConfig{
			BatchSize:    5,
			BatchDelayMS: 200,
			ContentCap:   3000,
			SampleSize:   10,
			CacheEnabled: true,
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// BatchDelay returns the inter-batch throttle as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Index.BatchDelayMS) * time.Millisecond
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a vault directory (looks for
// vaultindex.yaml, then .vaultindex/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "vaultindex.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".vaultindex", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath returns the path of the durable vector store for a vault.
func StorePath(dir string) string {
	return filepath.Join(dir, ".vaultindex", "vectors.json")
}

// CachePath returns the path of the embedding cache for a vault.
func CachePath(dir string) string {
	return filepath.Join(dir, ".vaultindex", "cache.db")
}

// EnsureDataDir ensures the .vaultindex directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".vaultindex"), 0755)
}
