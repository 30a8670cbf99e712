package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GeminiEmbedderConfig holds configuration for the Gemini embeddings client.
type GeminiEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the verse embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Gemini *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// GeminiLLMConfig holds configuration for the Gemini generation client.
type GeminiLLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig selects and configures the text-generation client.
type LLMConfig struct {
	Type   string           `yaml:"type"`
	Gemini *GeminiLLMConfig `yaml:"gemini,omitempty"`
}

// RetrievalConfig controls similarity retrieval over the verse index.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// RegistryConfig selects and configures the guest registry backend.
type RegistryConfig struct {
	Type string `yaml:"type"` // "csv" or "sqlite"
	Path string `yaml:"path"`
}

// ChatConfig carries the user-facing wording that varies between deployments.
// An empty PromptTemplate falls back to the built-in template.
type ChatConfig struct {
	Title          string `yaml:"title"`
	PromptTemplate string `yaml:"prompt_template,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	CorpusPath string          `yaml:"corpus_path"`
	Embedder   EmbedderConfig  `yaml:"embedder"`
	LLM        LLMConfig       `yaml:"llm"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Registry   RegistryConfig  `yaml:"registry"`
	Chat       ChatConfig      `yaml:"chat"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/alkitab/config.yaml.
// If neither exists, it writes defaults to ~/.config/alkitab/config.yaml and returns them.
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
	return filepath.Join(home, ".config", "alkitab", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		CorpusPath: "Alkitab.csv",
		Embedder:   EmbedderConfig{Type: "gemini"},
		LLM:        LLMConfig{Type: "gemini"},
		Retrieval:  RetrievalConfig{TopK: 5},
		Registry:   RegistryConfig{Type: "csv", Path: "user_log.csv"},
		Chat:       ChatConfig{Title: "GOD REMIND YOU"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.CorpusPath == "" {
		cfg.CorpusPath = "Alkitab.csv"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Registry.Type == "" {
		cfg.Registry.Type = "csv"
	}
	if cfg.Registry.Path == "" {
		switch cfg.Registry.Type {
		case "sqlite":
			cfg.Registry.Path = "user_log.db"
		default:
			cfg.Registry.Path = "user_log.csv"
		}
	}
	if cfg.Chat.Title == "" {
		cfg.Chat.Title = "GOD REMIND YOU"
	}
	if cfg.Embedder.Type == "gemini" || cfg.Embedder.Type == "" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		g := cfg.Embedder.Gemini
		if g.BaseURL == "" {
			g.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "embedding-001"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 30
		}
		if g.BatchSize == 0 {
			g.BatchSize = 100
		}
	}
	if cfg.LLM.Type == "gemini" || cfg.LLM.Type == "" {
		if cfg.LLM.Gemini == nil {
			cfg.LLM.Gemini = &GeminiLLMConfig{}
		}
		g := cfg.LLM.Gemini
		if g.BaseURL == "" {
			g.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gemini-2.5-flash"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 60
		}
	}
}
