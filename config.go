package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type config struct {
	port             string
	healthPort       string
	redisAddr        string
	cartTTL          time.Duration
	sessionCacheSize int
	staticDir        string
	logLevel         logrus.Level
	otlpEndpoint     string
	enableTracing    bool
	enableMetrics    bool
}

// loadConfig reads the environment, after an optional .env file.
func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		port:         getenv("PORT", "8080"),
		healthPort:   getenv("HEALTH_PORT", "7070"),
		redisAddr:    os.Getenv("REDIS_ADDR"),
		staticDir:    getenv("STATIC_DIR", "./static"),
		otlpEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	// A bare host gets the default Redis port.
	if cfg.redisAddr != "" && !strings.Contains(cfg.redisAddr, ":") {
		cfg.redisAddr = cfg.redisAddr + ":6379"
	}

	var err error
	if cfg.cartTTL, err = time.ParseDuration(getenv("CART_TTL", "0s")); err != nil {
		return cfg, fmt.Errorf("CART_TTL: %w", err)
	}
	if cfg.sessionCacheSize, err = strconv.Atoi(getenv("SESSION_CACHE_SIZE", "4096")); err != nil {
		return cfg, fmt.Errorf("SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.logLevel, err = logrus.ParseLevel(getenv("LOG_LEVEL", "debug")); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.enableTracing = isTrue(os.Getenv("ENABLE_TRACING"))
	cfg.enableMetrics = isTrue(os.Getenv("ENABLE_METRICS"))
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
