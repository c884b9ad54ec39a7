package config

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log    Log    `yaml:"log"`
	Server Server `yaml:"server"`
	Nvidia Nvidia `yaml:"nvidia"`
	Data   Data   `yaml:"data"`
}

type Nvidia struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://integrate.api.nvidia.com/v1" validate:"required"`
	// API token
	Token string `yaml:"token" example:"nvapi-abc123456789DEF789ghi012JKL345mno678PQR901stu" validate:"required"`
	// Chat completion model
	ChatModel string `yaml:"chat_model" example:"nvidia/llama-3.1-nemotron-nano-8b-v1" validate:"required"`
	// Embedding model
	EmbedModel string `yaml:"embed_model" example:"nvidia/llama-3.2-nv-embedqa-1b-v2" validate:"required"`
}

type Server struct {
	// Listen address of the HTTP server
	Listen string `yaml:"listen" example:":8010"`
}

type Data struct {
	// Directory with precomputed vector indexes
	IndexDir string `yaml:"index_dir" example:"data/indexes"`
	// Path to the append-only emotion log
	EmotionLog string `yaml:"emotion_log" example:"data/logs/emotion_log.jsonl"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Server.Listen == "" {
		result.Server.Listen = ":8010"
	}
	if result.Data.IndexDir == "" {
		result.Data.IndexDir = filepath.Join("data", "indexes")
	}
	if result.Data.EmotionLog == "" {
		result.Data.EmotionLog = filepath.Join("data", "logs", "emotion_log.jsonl")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
