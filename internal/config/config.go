// Package config loads server configuration from defaults, an optional JSON
// config file, and AIGIST_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Storage   StorageConfig   `json:"storage"`
}

type ServerConfig struct {
	Port  int    `json:"port"`
	Token string `json:"token"`
	Debug bool   `json:"debug"`
}

type OpenAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	EmbedModel string `json:"embed_model"`
	ChatModel  string `json:"chat_model"`
}

type RetrievalConfig struct {
	ChunkSize       int     `json:"chunk_size"`
	ChunkOverlap    int     `json:"chunk_overlap"`
	TopK            int     `json:"top_k"`
	MinSimilarity   float64 `json:"min_similarity"`
	MaxDocsPerOwner int     `json:"max_docs_per_owner"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4o-mini",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			TopK:            3,
			MinSimilarity:   0.1,
			MaxDocsPerOwner: 5,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "aigist")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "aigist")
}

// Load reads configuration from defaults, the config file at
// $XDG_CONFIG_HOME/aigist/config.json (if present), and AIGIST_* environment
// variables. The OpenAI API key is required.
func Load() (Config, error) {
	return loadFrom(defaultConfigPath())
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "aigist", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aigist", "config.json")
}

func loadFrom(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. " +
			"Set it via environment variable AIGIST_OPENAI_API_KEY (or OPENAI_API_KEY)")
	}
	return cfg, nil
}

// applyFile overlays values from a JSON config file. A missing file is not
// an error.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(env string, dst *float64) {
		if v := os.Getenv(env); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setInt("AIGIST_SERVER_PORT", &cfg.Server.Port)
	setString("AIGIST_SERVER_TOKEN", &cfg.Server.Token)
	if v := os.Getenv("AIGIST_DEBUG"); v == "1" || v == "true" {
		cfg.Server.Debug = true
	}

	setString("AIGIST_OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		setString("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	}
	setString("AIGIST_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString("AIGIST_EMBED_MODEL", &cfg.OpenAI.EmbedModel)
	setString("AIGIST_CHAT_MODEL", &cfg.OpenAI.ChatModel)

	setInt("AIGIST_CHUNK_SIZE", &cfg.Retrieval.ChunkSize)
	setInt("AIGIST_CHUNK_OVERLAP", &cfg.Retrieval.ChunkOverlap)
	setInt("AIGIST_TOP_K", &cfg.Retrieval.TopK)
	setFloat("AIGIST_MIN_SIMILARITY", &cfg.Retrieval.MinSimilarity)
	setInt("AIGIST_MAX_DOCS_PER_OWNER", &cfg.Retrieval.MaxDocsPerOwner)

	setString("AIGIST_DATA_DIR", &cfg.Storage.DataDir)
}
