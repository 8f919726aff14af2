package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	Trends   TrendsConfig
	Ebay     EbayConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	Host         string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	CORSOrigins  []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,https://grail-meter.vercel.app"`
	Production   bool          `envconfig:"IS_PRODUCTION" default:"false"`
}

type GeminiConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	// Gemini's OpenAI-compatible endpoint
	APIEndpoint string        `envconfig:"GEMINI_ENDPOINT" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Model       string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout     time.Duration `envconfig:"GEMINI_TIMEOUT" default:"60s"`
	MaxTokens   int64         `envconfig:"GEMINI_MAX_TOKENS" default:"1000"`
}

type TrendsConfig struct {
	Endpoint  string        `envconfig:"TRENDS_ENDPOINT" default:"https://trends.google.com/trends/api"`
	Geo       string        `envconfig:"TRENDS_GEO" default:"US"`
	Timeframe string        `envconfig:"TRENDS_TIMEFRAME" default:"today 12-m"`
	Timeout   time.Duration `envconfig:"TRENDS_TIMEOUT" default:"30s"`
}

type EbayConfig struct {
	BaseURL    string        `envconfig:"EBAY_BASE_URL" default:"https://www.ebay.com"`
	MaxResults int           `envconfig:"EBAY_MAX_RESULTS" default:"20"`
	Timeout    time.Duration `envconfig:"EBAY_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	// Optional; history falls back to an in-memory store when unset
	URL string `envconfig:"DATABASE_URL"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
