package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DataDirName is the per-library data directory created under the root.
	DataDirName = ".lorekeep"

	// FileName is the primary config file name at the library root.
	FileName = ".lorekeep.yaml"
)

// Config represents the complete lorekeep configuration.
// It is loaded once and passed by reference; nothing reads it ambiently.
type Config struct {
	Library    LibraryConfig    `yaml:"library" json:"library"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Repos      []RepoConfig     `yaml:"repos" json:"repos"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// LibraryConfig configures the document tree being indexed.
type LibraryConfig struct {
	// Root is the document tree root. Relative paths resolve against the
	// directory the config was loaded from.
	Root string `yaml:"root" json:"root"`
	// Extensions lists the file extensions treated as documents.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// ExcludeDirs lists directory names skipped during scans.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
	// RespectGitignore honors .gitignore files found in the tree.
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`
	// MaxFileSize is the per-file size cap in bytes; larger files are skipped.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// ChunkingConfig configures how documents are split.
type ChunkingConfig struct {
	// Size is the chunk window in characters.
	Size int `yaml:"size" json:"size"`
	// Overlap is the number of characters shared between adjacent chunks.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // 0 = provider default
	// Workers bounds concurrent embedding requests during indexing.
	Workers int `yaml:"workers" json:"workers"`
	// Timeout is the per-request timeout as a duration string (e.g. "60s").
	Timeout string `yaml:"timeout" json:"timeout"`
	// CacheSize is the LRU entry count for the embedding cache; 0 disables.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// OpenAIBaseURL overrides the OpenAI API endpoint (empty = api.openai.com).
	// The API key itself comes from OPENAI_API_KEY, never from this file.
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend string `yaml:"backend" json:"backend"` // hnsw | sqlite
}

// SearchConfig configures semantic search behavior.
type SearchConfig struct {
	// DefaultLimit is the hit count when the caller doesn't specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// DistanceThreshold drops hits with cosine distance above this value.
	DistanceThreshold float64 `yaml:"distance_threshold" json:"distance_threshold"`
}

// RepoConfig names a git source synced under the library root.
type RepoConfig struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File overrides the log path; empty uses <root>/.lorekeep/logs/lorekeep.log.
	File string `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Root:             ".",
			Extensions:       []string{".md", ".markdown"},
			ExcludeDirs:      []string{".git", DataDirName, "node_modules"},
			RespectGitignore: true,
			MaxFileSize:      10 * 1024 * 1024, // 10 MiB
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "all-minilm",
			Dimensions: 0, // detect from provider
			Workers:    4,
			Timeout:    "60s",
			CacheSize:  1024,
			OllamaHost: "http://localhost:11434",
		},
		Vector: VectorConfig{
			Backend: "hnsw",
		},
		Search: SearchConfig{
			DefaultLimit:      10,
			DistanceThreshold: 0.85,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the library rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. .lorekeep.yaml / .lorekeep.yml in dir
//  3. Environment variables (LOREKEEP_*, OPENAI_API_KEY via .env or shell)
func Load(dir string) (*Config, error) {
	// A .env next to the config is optional
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.resolveRoot(dir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the config file path for the library rooted at dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Exists reports whether a config file is present in dir.
func Exists(dir string) bool {
	return fileExists(Path(dir)) || fileExists(filepath.Join(dir, ".lorekeep.yml"))
}

// loadFromFile attempts to load configuration from .lorekeep.yaml or .lorekeep.yml.
func (c *Config) loadFromFile(dir string) error {
	// .yaml takes precedence
	yamlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".lorekeep.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults apply
	return nil
}

// loadYAML merges configuration from a YAML file over the current values.
// Unmarshaling into the populated struct means keys present in the file win,
// including explicit zero values like respect_gitignore: false, while absent
// keys keep their defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies LOREKEEP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOREKEEP_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("LOREKEEP_OLLAMA_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LOREKEEP_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("LOREKEEP_VECTOR_BACKEND"); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv("LOREKEEP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// resolveRoot makes Library.Root absolute, resolving relative roots against
// the directory the config was loaded from.
func (c *Config) resolveRoot(dir string) error {
	root := c.Library.Root
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve library root: %w", err)
	}
	c.Library.Root = abs
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be smaller than chunking.size, got overlap=%d size=%d",
			c.Chunking.Overlap, c.Chunking.Size)
	}

	validProviders := map[string]bool{"ollama": true, "openai": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'ollama', 'openai', or 'static', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.Workers <= 0 {
		return fmt.Errorf("embeddings.workers must be positive, got %d", c.Embeddings.Workers)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if c.Embeddings.Timeout != "" {
		if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
			return fmt.Errorf("embeddings.timeout is not a valid duration: %w", err)
		}
	}

	validBackends := map[string]bool{"hnsw": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Vector.Backend)] {
		return fmt.Errorf("vector.backend must be 'hnsw' or 'sqlite', got %s", c.Vector.Backend)
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.DistanceThreshold < 0 {
		return fmt.Errorf("search.distance_threshold must be non-negative, got %f", c.Search.DistanceThreshold)
	}

	if c.Library.MaxFileSize < 0 {
		return fmt.Errorf("library.max_file_size must be non-negative, got %d", c.Library.MaxFileSize)
	}
	if len(c.Library.Extensions) == 0 {
		return fmt.Errorf("library.extensions must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	seen := make(map[string]bool)
	for i, repo := range c.Repos {
		if repo.Name == "" {
			return fmt.Errorf("repos[%d].name must not be empty", i)
		}
		if strings.ContainsAny(repo.Name, `/\`) {
			return fmt.Errorf("repos[%d].name must not contain path separators, got %s", i, repo.Name)
		}
		if repo.URL == "" {
			return fmt.Errorf("repos[%d].url must not be empty", i)
		}
		if seen[repo.Name] {
			return fmt.Errorf("repos[%d].name %q is duplicated", i, repo.Name)
		}
		seen[repo.Name] = true
	}

	return nil
}

// DataDir returns the library's data directory.
func (c *Config) DataDir() string {
	return filepath.Join(c.Library.Root, DataDirName)
}

// DatabasePath returns the SQLite document store path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "library.db")
}

// LockPath returns the cross-process index lock path.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir(), "index.lock")
}

// LogFilePath returns the effective log file path.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.DataDir(), "logs", "lorekeep.log")
}

// EmbedTimeout returns the parsed embeddings timeout, defaulting to 60s.
func (c *Config) EmbedTimeout() time.Duration {
	if c.Embeddings.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindLibraryRoot finds the library root directory by walking up from
// startDir looking for a .lorekeep.yaml/.yml file or a .lorekeep data
// directory. Returns startDir itself when nothing is found.
func FindLibraryRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, FileName)) ||
			fileExists(filepath.Join(currentDir, ".lorekeep.yml")) {
			return currentDir, nil
		}

		if dirExists(filepath.Join(currentDir, DataDirName)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root, fall back to the starting directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
