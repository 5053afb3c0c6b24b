// Package config provides configuration for the bot-or-not server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int // Static page, /ws/game, /health, /stats
	RPCPort  int // Admin jsonrpc port, 0 disables

	// Storage
	DatabaseURL   string
	RedisURL      string
	StatsCacheTTL time.Duration

	// Response generator settings
	LLMProvider     string // openai, gemini or mock
	LLMBaseURL      string
	LLMAPIKey       string
	GeminiAPIKey    string
	LLMModel        string
	LLMTimeout      time.Duration
	GenerateTimeout time.Duration

	// Scheduler settings
	PollInterval  time.Duration
	SilenceMargin time.Duration
	PromptsFile   string
	PolicyFile    string

	// Game settings
	DefaultRoom string
	ChatPhase   time.Duration // Announced chat time before voting, 0 disables

	// Registry settings
	NamePrefix  string
	SendTimeout time.Duration

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Logging
	LogLevel string
}

// Load loads configuration from an optional .env file and environment variables.
// Variables already present in the environment win over the .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8000),
		RPCPort:         getEnvInt("RPC_PORT", 8091),
		DatabaseURL:     getEnv("DATABASE_URL", "file:botornot.db?cache=shared&mode=rwc"),
		RedisURL:        getEnv("REDIS_URL", ""),
		StatsCacheTTL:   getEnvMillis("STATS_CACHE_TTL_MS", 30000),
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:       getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-3.5-turbo-0125"),
		LLMTimeout:      getEnvMillis("LLM_TIMEOUT_MS", 15000),
		GenerateTimeout: getEnvMillis("GENERATE_TIMEOUT_MS", 10000),
		PollInterval:    getEnvMillis("POLL_INTERVAL_MS", 5000),
		SilenceMargin:   getEnvMillis("SILENCE_MARGIN_MS", 15000),
		PromptsFile:     getEnv("PROMPTS_FILE", ""),
		PolicyFile:      getEnv("POLICY_FILE", ""),
		DefaultRoom:     getEnv("DEFAULT_ROOM", "lobby"),
		ChatPhase:       getEnvMillis("CHAT_PHASE_MS", 120000),
		NamePrefix:      getEnv("NAME_PREFIX", "Participant"),
		SendTimeout:     getEnvMillis("SEND_TIMEOUT_MS", 2000),
		PingInterval:    getEnvMillis("WS_PING_INTERVAL_MS", 30000),
		WriteTimeout:    getEnvMillis("WS_WRITE_TIMEOUT_MS", 10000),
		ReadTimeout:     getEnvMillis("WS_READ_TIMEOUT_MS", 60000),
		MaxMessageSize:  int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 4096)),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
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

func getEnvMillis(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
