package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                int
	APIKey              string
	LogLevel            string
	ScamThreshold       float64
	MaxTurns            int
	QuietTurns          int
	CallbackURL         string
	CallbackTimeout     time.Duration
	CallbackMaxAttempts int
	GenTimeout          time.Duration
	AnthropicAPIKey     string
	AnthropicModel      string
	PersonaName         string
	DatabaseURL         string
	NatsURL             string
	NatsToken           string
}

func Load() Config {
	return Config{
		Port:                envInt("LURE_PORT", 8760),
		APIKey:              envStr("LURE_API_KEY", ""),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		ScamThreshold:       envFloat("SCAM_THRESHOLD", 0.6),
		MaxTurns:            envInt("MAX_TURNS", 20),
		QuietTurns:          envInt("QUIET_TURNS", 2),
		CallbackURL:         envStr("FINAL_CALLBACK_URL", ""),
		CallbackTimeout:     envSeconds("CALLBACK_TIMEOUT", envSeconds("HTTP_TIMEOUT_SECONDS", 5*time.Second)),
		CallbackMaxAttempts: envInt("CALLBACK_MAX_ATTEMPTS", 3),
		GenTimeout:          envSeconds("GEN_TIMEOUT", 10*time.Second),
		AnthropicAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      envStr("LURE_MODEL", "claude-sonnet-4-20250514"),
		PersonaName:         envStr("PERSONA_NAME", "Sam"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		NatsURL:             envStr("NATS_URL", ""),
		NatsToken:           envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envSeconds reads a timeout expressed as a number of seconds, which is how
// the deployment environment supplies them.
func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
