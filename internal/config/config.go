// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/skinroutine/internal/store"
)

// Store engines.
const (
	EngineJSON   = store.EngineJSON
	EngineSQLite = store.EngineSQLite
	EngineRedis  = store.EngineRedis
)

type Config struct {
	Model       string
	Store       string
	DataPath    string
	RedisURL    string
	Timeout     time.Duration
	Retries     int
	Temperature float64
	MaxTokens   int
	Addr        string
	LogMode     string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Model:       "openai:gpt-4o-mini",
		Store:       EngineSQLite,
		RedisURL:    "redis://localhost:6379/0",
		Timeout:     30 * time.Second,
		Retries:     0,
		Temperature: 0.7,
		MaxTokens:   2000,
		Addr:        ":8080",
		LogMode:     "dev",
	}
}

// Load reads envFile (when it exists) into the process environment without
// overriding variables that are already set, then builds a Config from the
// environment on top of Default. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from SKINROUTINE_* variables.
func FromEnv() (Config, error) {
	c := Default()
	c.Model = str("SKINROUTINE_MODEL", c.Model)
	c.Store = strings.ToLower(str("SKINROUTINE_STORE", c.Store))
	c.DataPath = str("SKINROUTINE_DATA", "")
	c.RedisURL = str("SKINROUTINE_REDIS_URL", c.RedisURL)
	c.Addr = str("SKINROUTINE_ADDR", c.Addr)
	c.LogMode = strings.ToLower(str("SKINROUTINE_LOG", c.LogMode))

	var err error
	if c.Timeout, err = duration("SKINROUTINE_TIMEOUT", c.Timeout); err != nil {
		return Config{}, err
	}
	if c.Retries, err = integer("SKINROUTINE_RETRIES", c.Retries); err != nil {
		return Config{}, err
	}
	if c.MaxTokens, err = integer("SKINROUTINE_MAX_TOKENS", c.MaxTokens); err != nil {
		return Config{}, err
	}
	if c.Temperature, err = float("SKINROUTINE_TEMPERATURE", c.Temperature); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate bounds-checks the settings.
func (c Config) Validate() error {
	if !strings.Contains(c.Model, ":") {
		return fmt.Errorf("model %q: expected provider:model", c.Model)
	}
	switch c.Store {
	case EngineJSON, EngineSQLite, EngineRedis:
	default:
		return fmt.Errorf("store %q: must be json, sqlite or redis", c.Store)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %s: must be positive", c.Timeout)
	}
	if c.Retries < 0 || c.Retries > 5 {
		return fmt.Errorf("retries %d: must be between 0 and 5", c.Retries)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f: must be between 0.0 and 2.0", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens %d: must be positive", c.MaxTokens)
	}
	return nil
}

// ResolvedDataPath returns DataPath or the engine's default location.
func (c Config) ResolvedDataPath() string {
	if c.DataPath != "" {
		return c.DataPath
	}
	switch c.Store {
	case EngineJSON:
		return "data/skinroutine.json"
	case EngineSQLite:
		return "data/skinroutine.db"
	}
	return ""
}

func str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func integer(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: not an integer", key, v)
	}
	return i, nil
}

func float(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: not a number", key, v)
	}
	return f, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: not a duration", key, v)
	}
	return d, nil
}
