package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	ArrivalAPIBaseURL    string
	ArrivalPollInterval  time.Duration
	ArrivalReadyInterval time.Duration
	ArrivalReadyAttempts int

	ClovaEndpoint  string
	ClovaSecretKey string
	ClovaAccessKey string

	DetectTargetLabel   string
	DetectMinConfidence float64
	DetectMaxRegions    int
	OCRMaxInFlight      int

	NotifyDebounce time.Duration

	LocationWSURL          string
	LocationSampleInterval time.Duration
	WSReconnectDelay       time.Duration
	WSMaxReconnectAttempts int

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPerWindow      int
	FrameRateLimitPerWindow int
	RateLimitWindow         time.Duration
	RateLimitWhitelist      []string
}

func Load() (*Config, error) {
	clovaSecret := os.Getenv("CLOVA_SECRET_KEY")
	if clovaSecret == "" {
		return nil, fmt.Errorf("CLOVA_SECRET_KEY environment variable is required")
	}
	clovaEndpoint := os.Getenv("CLOVA_APIGW_URL")
	if clovaEndpoint == "" {
		return nil, fmt.Errorf("CLOVA_APIGW_URL environment variable is required")
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		ArrivalAPIBaseURL:    getEnv("ARRIVAL_API_URL", "http://localhost:3000"),
		ArrivalPollInterval:  getDurationEnv("ARRIVAL_POLL_INTERVAL", 30*time.Second),
		ArrivalReadyInterval: getDurationEnv("ARRIVAL_READY_INTERVAL", 3*time.Second),
		ArrivalReadyAttempts: getIntEnv("ARRIVAL_READY_ATTEMPTS", 20),

		ClovaEndpoint:  clovaEndpoint,
		ClovaSecretKey: clovaSecret,
		ClovaAccessKey: getEnv("CLOVA_ACCESS_KEY", ""),

		DetectTargetLabel:   getEnv("DETECT_TARGET_LABEL", "bus"),
		DetectMinConfidence: getFloatEnv("DETECT_MIN_CONFIDENCE", 0.3),
		DetectMaxRegions:    getIntEnv("DETECT_MAX_REGIONS", 4),
		OCRMaxInFlight:      getIntEnv("OCR_MAX_INFLIGHT", 4),

		NotifyDebounce: getDurationEnv("NOTIFY_DEBOUNCE", 5*time.Second),

		LocationWSURL:          getEnv("LOCATION_WS_URL", "ws://localhost:3000/location"),
		LocationSampleInterval: getDurationEnv("LOCATION_SAMPLE_INTERVAL", 100*time.Second),
		WSReconnectDelay:       getDurationEnv("WS_RECONNECT_DELAY", 3*time.Second),
		WSMaxReconnectAttempts: getIntEnv("WS_MAX_RECONNECT_ATTEMPTS", 5),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		RateLimitPerWindow:      getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		FrameRateLimitPerWindow: getIntEnv("FRAME_RATE_LIMIT_PER_WINDOW", 90),
		RateLimitWindow:         getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist:      getCSVEnv("RATE_LIMIT_WHITELIST"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
