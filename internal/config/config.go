package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the persisted index.
type StoreConfig struct {
	Root string `yaml:"root"`
}

// ChunkerConfig configures how documents are split into chunks.
// MaxWords <= 0 keeps every document as a single chunk.
type ChunkerConfig struct {
	Type     string `yaml:"type"`
	MaxWords int    `yaml:"max_words"`
	Overlap  int    `yaml:"overlap"`
}

// IngestConfig lists the files and directories scanned by ingest.
type IngestConfig struct {
	Inputs []string `yaml:"inputs"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
	MaxK int `yaml:"max_k"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store   StoreConfig   `yaml:"store"`
	Chunker ChunkerConfig `yaml:"chunker"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Query   QueryConfig   `yaml:"query"`
	Server  ServerConfig  `yaml:"server"`
}

const (
	EnvStoreRoot  = "DOCSEARCH_STORE_ROOT"
	EnvServerAddr = "DOCSEARCH_SERVER_ADDR"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	// Keys absent from the file keep their defaults; keys present keep their
	// value, so max_words: 0 (whole document as one chunk) survives.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/docsearch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Store:   StoreConfig{Root: filepath.Join("data", "vector_store")},
		Chunker: ChunkerConfig{Type: "words", MaxWords: 300, Overlap: 50},
		Ingest:  IngestConfig{Inputs: []string{"input"}},
		Query:   QueryConfig{TopK: 5, MaxK: 50},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Store.Root == "" {
		cfg.Store.Root = def.Store.Root
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = def.Chunker.Type
	}
	if cfg.Chunker.Overlap < 0 {
		cfg.Chunker.Overlap = 0
	}
	if len(cfg.Ingest.Inputs) == 0 {
		cfg.Ingest.Inputs = def.Ingest.Inputs
	}
	if cfg.Query.TopK <= 0 {
		cfg.Query.TopK = def.Query.TopK
	}
	if cfg.Query.MaxK <= 0 {
		cfg.Query.MaxK = def.Query.MaxK
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

// applyEnv lets environment variables (including ones loaded from .env)
// override file settings.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvStoreRoot); v != "" {
		cfg.Store.Root = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
}
