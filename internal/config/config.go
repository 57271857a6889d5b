package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                  string
	DatabaseURL           string
	OTLPEndpoint          string
	OTLPInsecure          bool
	AbsentGrace           time.Duration
	AbsentScanInterval    time.Duration
	AbsentScanBatchSize   int
	DefaultServiceSeconds int
	ServiceWindow         int
	RateLimitPerMinute    int
	RateLimitBurst        int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                  port,
		DatabaseURL:           os.Getenv("DB_DSN"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:          readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		AbsentGrace:           readDurationSeconds("ABSENT_GRACE_SECONDS", 0),
		AbsentScanInterval:    readDurationSeconds("ABSENT_SCAN_INTERVAL_SECONDS", 30),
		AbsentScanBatchSize:   readInt("ABSENT_SCAN_BATCH_SIZE", 100),
		DefaultServiceSeconds: readInt("ETA_DEFAULT_SERVICE_SECONDS", 180),
		ServiceWindow:         readInt("ETA_SERVICE_WINDOW", 30),
		RateLimitPerMinute:    readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:        readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
