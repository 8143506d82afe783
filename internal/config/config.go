package config

import (
	"os"
	"strconv"
)

// Config carries the environment-driven settings for the chat service.
type Config struct {
	Port         string
	ArchiveDSN   string
	AMQPURL      string
	AMQPExchange string
	OTLPAddr     string
	JWTSecret    string
	UploadDir    string
	Environment  string
	DebugRoutes  bool
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "8083"),
		ArchiveDSN:   getEnv("ARCHIVE_DSN", ""),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tfplanner.events"),
		OTLPAddr:     getEnv("OTLP_ADDR", ""),
		JWTSecret:    getEnv("JWT_SECRET", "tf-planner-dev-secret"),
		UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		DebugRoutes:  getBool("DEBUG_ROUTES", false),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
