// Package config reads client configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const DefaultAPIURL = "http://localhost:8000/api"

// Config holds all configuration for the client.
type Config struct {
	// Backend
	APIURL          string
	RequestTimeout  time.Duration
	MessagePageSize int

	// Voice
	MaxRecording     time.Duration
	RecordingWarning time.Duration
	FFmpegPath       string
	FFplayPath       string
	MicInput         string

	// Local state
	DBPath string

	// Logging
	Env      string
	LogLevel string
	LogFile  string

	// Metrics endpoint, disabled when empty
	MetricsAddr string
}

// Load reads configuration from environment variables.
func Load() *Config {
	dir := configDir()
	return &Config{
		APIURL:          getEnv("AGENTCHAT_API_URL", DefaultAPIURL),
		RequestTimeout:  getDurationEnv("AGENTCHAT_REQUEST_TIMEOUT", 60*time.Second),
		MessagePageSize: getIntEnv("AGENTCHAT_PAGE_SIZE", 50),

		MaxRecording:     getDurationEnv("AGENTCHAT_MAX_RECORDING", 120*time.Second),
		RecordingWarning: getDurationEnv("AGENTCHAT_RECORDING_WARNING", 100*time.Second),
		FFmpegPath:       getEnv("AGENTCHAT_FFMPEG", "ffmpeg"),
		FFplayPath:       getEnv("AGENTCHAT_FFPLAY", "ffplay"),
		MicInput:         getEnv("AGENTCHAT_MIC_INPUT", ""),

		DBPath: getEnv("AGENTCHAT_DB_PATH", filepath.Join(dir, "agentchat.db")),

		Env:      getEnv("AGENTCHAT_ENV", "production"),
		LogLevel: getEnv("AGENTCHAT_LOG_LEVEL", "info"),
		LogFile:  getEnv("AGENTCHAT_LOG_FILE", filepath.Join(dir, "agentchat.log")),

		MetricsAddr: getEnv("AGENTCHAT_METRICS_ADDR", ""),
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "agentchat")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
