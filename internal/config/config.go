// Package config provides configuration for the conversation service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider ids understood by the adapter builders.
const (
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderDeepSeek    = "deepseek"
	ProviderHuggingFace = "huggingface"
	ProviderMock        = "mock"
)

// ProviderConfig holds the credentials and tuning for one vendor.
type ProviderConfig struct {
	APIKey  string            `toml:"api_key"`
	Model   string            `toml:"model"`
	BaseURL string            `toml:"base_url"`
	Extra   map[string]string `toml:"extra"`
}

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int
	RPCAddr      string

	// Database
	DatabaseURL string

	// Mode is "MOCK" to force the mock-only provider set.
	Mode string

	// Providers
	DefaultProvider     string
	Providers           map[string]ProviderConfig
	ProvidersFile       string
	ProviderTimeout     time.Duration
	HealthCheckInterval time.Duration
	VendorRatePerSec    int
	MockDelay           time.Duration

	// Avatar rendering
	DIDAPIKey          string
	DIDBaseURL         string
	AvatarSourceURL    string
	RenderPollInterval time.Duration
	RenderMaxAttempts  int

	// Sessions and turn policy
	MaxTurnChars       int
	PolicyFile         string
	SessionIdleTimeout time.Duration

	// WebSocket settings
	WSMaxMessageSize int64
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		InternalPort:        getEnvInt("INTERNAL_PORT", 8081),
		RPCAddr:             getEnv("RPC_ADDR", ":8082"),
		DatabaseURL:         getEnv("DATABASE_URL", "file:chat-english.db?cache=shared&mode=rwc"),
		Mode:                strings.ToUpper(getEnv("CHAT_MODE", "")),
		DefaultProvider:     strings.ToLower(getEnv("DEFAULT_AI_PROVIDER", ProviderMock)),
		ProvidersFile:       getEnv("PROVIDERS_FILE", ""),
		ProviderTimeout:     time.Duration(getEnvInt("PROVIDER_TIMEOUT_MS", 30000)) * time.Millisecond,
		HealthCheckInterval: time.Duration(getEnvInt("HEALTH_CHECK_INTERVAL_MS", 60000)) * time.Millisecond,
		VendorRatePerSec:    getEnvInt("VENDOR_RATE_PER_SEC", 5),
		MockDelay:           time.Duration(getEnvInt("MOCK_DELAY_MS", 500)) * time.Millisecond,
		DIDAPIKey:           getEnv("D_ID_API_KEY", ""),
		DIDBaseURL:          getEnv("D_ID_BASE_URL", "https://api.d-id.com"),
		AvatarSourceURL:     getEnv("AVATAR_SOURCE_URL", ""),
		RenderPollInterval:  time.Duration(getEnvInt("RENDER_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		RenderMaxAttempts:   getEnvInt("RENDER_MAX_ATTEMPTS", 20),
		MaxTurnChars:        getEnvInt("MAX_TURN_CHARS", 2000),
		PolicyFile:          getEnv("POLICY_FILE", ""),
		SessionIdleTimeout:  time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MS", 1800000)) * time.Millisecond,
		WSMaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		WSReadTimeout:       time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSWriteTimeout:      time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSPingInterval:      time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		Providers:           providersFromEnv(),
	}
	return cfg
}

func providersFromEnv() map[string]ProviderConfig {
	providers := map[string]ProviderConfig{
		ProviderOpenAI: {
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		ProviderAnthropic: {
			APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			Model:   getEnv("ANTHROPIC_MODEL", ""),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		},
		ProviderDeepSeek: {
			APIKey:  getEnv("DEEPSEEK_API_KEY", ""),
			Model:   getEnv("DEEPSEEK_MODEL", ""),
			BaseURL: getEnv("DEEPSEEK_BASE_URL", ""),
		},
		ProviderHuggingFace: {
			APIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
			Model:   getEnv("HUGGINGFACE_MODEL", ""),
			BaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
		},
	}
	for id, pc := range providers {
		if pc.APIKey == "" {
			delete(providers, id)
		}
	}
	return providers
}

// IsMock reports whether the mock-only mode is forced.
func (c *Config) IsMock() bool {
	return c.Mode == "MOCK"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
