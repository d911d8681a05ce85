package config

import (
	"fmt"
	"os"
	"time"
)

// Config is loaded from environment variables.
type Config struct {
	Port          string
	RedisAddr     string // empty disables the cross-instance presence bridge
	JWTSecret     string // empty disables the room token gate (dev mode)
	SweepSchedule string
	RoomMaxIdle   time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8084"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SweepSchedule: getEnvOrDefault("SWEEP_SCHEDULE", "@every 5m"),
	}

	maxIdle := getEnvOrDefault("ROOM_MAX_IDLE", "1h")
	d, err := time.ParseDuration(maxIdle)
	if err != nil {
		return nil, fmt.Errorf("invalid ROOM_MAX_IDLE %q: %w", maxIdle, err)
	}
	cfg.RoomMaxIdle = d

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
