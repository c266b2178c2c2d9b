package config

import (
	"os"
	"time"
)

type Config struct {
	UpstreamAPIURL string
	UpstreamSource string
	RedisAddr      string
	MongoURI       string
	HTTPPort       string
	SessionSecret  string
	QuizCacheTTL   time.Duration
}

func Load() *Config {
	return &Config{
		UpstreamAPIURL: getEnv("UPSTREAM_API_URL", "http://localhost:8000"),
		UpstreamSource: getEnv("UPSTREAM_SOURCE", "form_runner"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		SessionSecret:  getEnv("SESSION_SECRET", "form-runner-dev-secret"),
		QuizCacheTTL:   getDuration("QUIZ_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
