// Package config reads run settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Encodings accepted for bank exports.
const (
	EncodingAuto   = "auto"
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf-8"
)

type Config struct {
	InputDir    string
	RulesPath   string // empty uses the embedded labels
	Encoding    string
	LogLevel    string
	Concurrency int
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Config{
		InputDir:    getEnv("TAXPARSE_INPUT", ""),
		RulesPath:   getEnv("TAXPARSE_RULES", ""),
		Encoding:    strings.ToLower(getEnv("TAXPARSE_ENCODING", EncodingAuto)),
		LogLevel:    getEnv("TAXPARSE_LOG_LEVEL", "warn"),
		Concurrency: getEnvInt("TAXPARSE_CONCURRENCY", runtime.GOMAXPROCS(0)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the encoding and concurrency settings.
func (c Config) Validate() error {
	switch c.Encoding {
	case EncodingAuto, EncodingLatin1, EncodingUTF8:
	default:
		return fmt.Errorf("unsupported encoding %q (must be %q, %q or %q)", c.Encoding, EncodingAuto, EncodingLatin1, EncodingUTF8)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
