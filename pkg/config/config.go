// Package config loads the connector configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingMongoURI is returned when MONGO_URI is unset.
var ErrMissingMongoURI = errors.New("MONGO_URI is required")

// DefaultAPIURL is the NVD CVE REST endpoint.
const DefaultAPIURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// Config holds everything the connector reads from the environment. It is
// populated once at startup and passed by value.
type Config struct {
	MongoURI        string
	MongoDB         string
	MongoCollection string

	APIURL      string
	APIKey      string
	PageSize    int
	MaxAttempts int

	RedisURL string
	CacheTTL time.Duration

	LogLevel string
}

// FromEnv reads the configuration. MONGO_URI is required; everything else
// has a default or is optional.
func FromEnv() (Config, error) {
	cfg := Config{
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         getEnv("MONGO_DB", "nvd"),
		MongoCollection: getEnv("MONGO_COLLECTION", "cves"),
		APIURL:          getEnv("NVD_API_URL", DefaultAPIURL),
		APIKey:          os.Getenv("NVD_API_KEY"),
		PageSize:        getEnvInt("NVD_PAGE_SIZE", 100),
		MaxAttempts:     getEnvInt("NVD_MAX_RETRIES", 3),
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheTTL:        getEnvDuration("NVD_CACHE_TTL", 0),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.MongoURI == "" {
		return Config{}, ErrMissingMongoURI
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
