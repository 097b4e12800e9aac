// Package config reads runtime settings from the environment. A .env
// file in the working directory is loaded automatically when present.
package config

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string
	LogLevel    string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		DatabaseURL: os.Getenv("DB_STRING"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}

// Logger builds a logrus logger at the configured level. An
// unparseable level falls back to info.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
