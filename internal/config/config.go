package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, parsed from the environment.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	JWTSecret string `env:"JWT_SECRET"`

	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"goodpick"`

	TranslateProvider string `env:"TRANSLATE_PROVIDER" envDefault:"dashscope"`
	DashScopeAPIKey   string `env:"DASHSCOPE_API_KEY"`
	DashScopeBaseURL  string `env:"DASHSCOPE_BASE_URL" envDefault:"https://dashscope.aliyuncs.com/api/v1"`
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`

	ASRProvider     string `env:"ASR_PROVIDER" envDefault:"dashscope"`
	ASRWebSocketURL string `env:"ASR_WEBSOCKET_URL" envDefault:"wss://dashscope.aliyuncs.com/api-ws/v1/inference"`
	ASRModel        string `env:"ASR_MODEL" envDefault:"paraformer-realtime-v2"`

	TTSAPIKey  string `env:"TTS_API_KEY"`
	TTSBaseURL string `env:"TTS_BASE_URL" envDefault:"https://api.elevenlabs.io/v1"`
	TTSVoiceID string `env:"TTS_VOICE_ID"`

	BridgeWebhookURL string `env:"BRIDGE_WEBHOOK_URL"`

	// MessageRatePerMinute bounds sendMessage events per user.
	MessageRatePerMinute int `env:"MESSAGE_RATE_PER_MINUTE" envDefault:"60"`
	// SignalRatePerMinute bounds call-signaling events per user.
	SignalRatePerMinute int `env:"SIGNAL_RATE_PER_MINUTE" envDefault:"120"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production
// hardening. Query-string token extraction is disabled in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
