// Package config provides configuration for the assistant service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the assistant configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseDSN string

	// Generative model settings
	GenAIBaseURL  string
	GenAIAPIKey   string
	GenAIModel    string
	GenAITimeout  time.Duration
	ForecastModel string

	// Dispatch backend (centers directory + technician auto-assign)
	DispatchBaseURL     string
	AssignTimeout       time.Duration
	RequiredTechnicians int
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8469),
		DatabaseDSN:         getEnv("DATABASE_DSN", "file:assistant.db?cache=shared&mode=rwc"),
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", "http://localhost:4000"),
		GenAIAPIKey:         getEnv("GENAI_API_KEY", ""),
		GenAIModel:          getEnv("GENAI_MODEL", "gemini-2.5-flash"),
		GenAITimeout:        time.Duration(getEnvInt("GENAI_TIMEOUT_MS", 60000)) * time.Millisecond,
		ForecastModel:       getEnv("FORECAST_MODEL", "gemini-2.0-flash-exp"),
		DispatchBaseURL:     getEnv("DISPATCH_BASE_URL", "http://localhost:5209/api"),
		AssignTimeout:       time.Duration(getEnvInt("ASSIGN_TIMEOUT_MS", 30000)) * time.Millisecond,
		RequiredTechnicians: getEnvInt("REQUIRED_TECHNICIANS", 1),
	}
	return cfg
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
