package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Documents DocumentsConfig `yaml:"documents"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	APIToken string `yaml:"api_token"`
}

type GeminiConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`
}

type DocumentsConfig struct {
	Dir          string `yaml:"dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Watch        bool   `yaml:"watch"`
}

type IndexConfig struct {
	Dir string `yaml:"dir"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Gemini: GeminiConfig{
			BaseURL:    "https://generativelanguage.googleapis.com",
			EmbedModel: "text-embedding-004",
			ChatModel:  "gemini-2.0-flash-exp",
		},
		Documents: DocumentsConfig{
			Dir:          "data/pdfs",
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Index: IndexConfig{
			Dir: "data/vectorstore_persistent",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
	}
}

// Load reads configuration in ascending precedence: compiled defaults, an
// optional YAML file (./sfadvisor.yaml or $XDG_CONFIG_HOME/sfadvisor/config.yaml),
// a .env file in the working directory, and SFADVISOR_* environment variables.
//
// The Gemini API key is required: set it via GEMINI_API_KEY or the config file.
func Load() (Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := defaults()

	path, err := findConfigFile()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		return Config{}, errors.New("missing required config: Gemini API key. " +
			"Set it via environment variable GEMINI_API_KEY or gemini.api_key in the config file")
	}

	return cfg, nil
}

func findConfigFile() (string, error) {
	if p := os.Getenv("SFADVISOR_CONFIG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	if _, err := os.Stat("sfadvisor.yaml"); err == nil {
		return "sfadvisor.yaml", nil
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		configHome = filepath.Join(home, ".config")
	}
	p := filepath.Join(configHome, "sfadvisor", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return "", nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("SFADVISOR_PORT", &cfg.Server.Port)
	setString("SFADVISOR_API_TOKEN", &cfg.Server.APIToken)

	setString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	setString("SFADVISOR_GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	setString("SFADVISOR_EMBED_MODEL", &cfg.Gemini.EmbedModel)
	setString("SFADVISOR_CHAT_MODEL", &cfg.Gemini.ChatModel)

	setString("SFADVISOR_PDF_DIR", &cfg.Documents.Dir)
	setInt("SFADVISOR_CHUNK_SIZE", &cfg.Documents.ChunkSize)
	setInt("SFADVISOR_CHUNK_OVERLAP", &cfg.Documents.ChunkOverlap)

	setString("SFADVISOR_INDEX_DIR", &cfg.Index.Dir)
	setString("SFADVISOR_DATA_DIR", &cfg.Storage.DataDir)

	if v := os.Getenv("SFADVISOR_WATCH"); v != "" {
		cfg.Documents.Watch = v == "1" || v == "true"
	}
}
