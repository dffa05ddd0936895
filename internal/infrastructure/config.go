package infrastructure

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config gathers every environment knob once at startup; components get it
// injected instead of reading the environment themselves.
type Config struct {
	DatabaseURL string
	ListenAddr  string
	JWTSecret   string

	// GlobalVerifyToken, when set, short-circuits the per-tenant token
	// scan during the provider's GET handshake.
	GlobalVerifyToken string

	GraphAPIBaseURL string
	GraphAPITimeout time.Duration

	// FlowExecTimeout bounds one flow execution per inbound message.
	FlowExecTimeout time.Duration

	// TriggerRatePerSec / TriggerBurst limit manual-trigger calls per tenant.
	TriggerRatePerSec float64
	TriggerBurst      int

	LogLevel string
}

// LoadConfig reads the environment (main loads .env via godotenv first).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ListenAddr:        envOr("LISTEN_ADDR", "0.0.0.0:8080"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		GlobalVerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		GraphAPIBaseURL:   envOr("GRAPH_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		GraphAPITimeout:   envDuration("GRAPH_API_TIMEOUT", 15*time.Second),
		FlowExecTimeout:   envDuration("FLOW_EXEC_TIMEOUT", 25*time.Second),
		TriggerRatePerSec: envFloat("TRIGGER_RATE_PER_SEC", 5),
		TriggerBurst:      envInt("TRIGGER_BURST", 10),
		LogLevel:          envOr("LOG_LEVEL", "info"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
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
