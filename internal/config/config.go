package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	// AuthSecret enables JWT bearer auth on the API when non-empty.
	AuthSecret string
}

func Load() Config {
	// A missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "conversations.db"
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8484"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	pretty := false
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			pretty = b
		}
	}

	return Config{
		DBPath:     dbPath,
		HTTPAddr:   addr,
		LogLevel:   logLevel,
		LogPretty:  pretty,
		AuthSecret: os.Getenv("AUTH_SECRET"),
	}
}
