package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding LLMConfig       `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Log       LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Backend  string         `yaml:"backend" validate:"oneof=chromem pgvector"`
	Path     string         `yaml:"path" validate:"required_if=Backend chromem"`
	Table    string         `yaml:"table" validate:"required"`
	Compress bool           `yaml:"compress"`
	Database DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver" validate:"omitempty,oneof=pgdriver pq pgx"`
	Debug  bool   `yaml:"debug"`
}

// LLMConfig describes a model endpoint. Key may be prefixed with "Bearer ".
type LLMConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model" validate:"required"`
}

type ChatConfig struct {
	LLMConfig   `yaml:",inline"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

type ChunkingConfig struct {
	MaxTokens  int    `yaml:"max_tokens" validate:"gt=0"`
	MergePeers bool   `yaml:"merge_peers"`
	Tokenizer  string `yaml:"tokenizer" validate:"oneof=tiktoken words"`
	Encoding   string `yaml:"encoding"`
}

type RetrievalConfig struct {
	NumResults int `yaml:"num_results" validate:"gt=0"`
}

type UploadsConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "chromem",
			Path:    models.DefaultStoragePath,
			Table:   models.DefaultTableName,
			Database: DatabaseConfig{
				Driver: "pgdriver",
			},
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    models.DefaultEmbeddingModel,
		},
		Chat: ChatConfig{
			LLMConfig: LLMConfig{
				Provider: "openai",
				Model:    models.DefaultChatModel,
			},
			Temperature: models.DefaultTemperature,
		},
		Chunking: ChunkingConfig{
			MaxTokens:  models.DefaultMaxTokens,
			MergePeers: true,
			Tokenizer:  "tiktoken",
			Encoding:   "cl100k_base",
		},
		Retrieval: RetrievalConfig{
			NumResults: models.DefaultNumResults,
		},
		Uploads: UploadsConfig{
			Dir: models.DefaultUploadsDir,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadConfig reads a YAML file over the defaults, applies environment overrides and validates.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.Key == "" {
			cfg.Embedding.Key = v
		}
		if cfg.Chat.Key == "" {
			cfg.Chat.Key = v
		}
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == "openai" {
			cfg.Embedding.BaseURL = v
		}
		if cfg.Chat.BaseURL == "" && cfg.Chat.Provider == "openai" {
			cfg.Chat.BaseURL = v
		}
	}
	if v := os.Getenv("DOCQA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DOCQA_DATABASE_DSN"); v != "" {
		cfg.Storage.Database.DSN = v
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%w: %s failed on '%s' tag", ErrInvalidConfig, e.Namespace(), e.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Storage.Backend == "pgvector" && c.Storage.Database.DSN == "" {
		return fmt.Errorf("%w: storage.database.dsn is required for pgvector", ErrInvalidConfig)
	}
	return nil
}
