// Package config loads runtime settings from .env files and the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel      string
	LogFormat     string
	Workers       int
	UnsafeStrings bool
	MetricsAddr   string
	CacheSize     int
	WireCompress  bool
}

func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   1,
		CacheSize: 128,
	}
}

// Load reads the given .env files (missing ones are skipped) and then the
// ZONEBUF_* environment variables. Variables already set in the
// environment win over .env files. Malformed values keep the default.
func Load(files ...string) Config {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	c := Default()
	c.LogLevel = str("ZONEBUF_LOG_LEVEL", c.LogLevel)
	c.LogFormat = str("ZONEBUF_LOG_FORMAT", c.LogFormat)
	c.Workers = num("ZONEBUF_WORKERS", c.Workers)
	c.UnsafeStrings = flag("ZONEBUF_UNSAFE_STRINGS", c.UnsafeStrings)
	c.MetricsAddr = str("ZONEBUF_METRICS_ADDR", c.MetricsAddr)
	c.CacheSize = num("ZONEBUF_CACHE_SIZE", c.CacheSize)
	c.WireCompress = flag("ZONEBUF_WIRE_COMPRESS", c.WireCompress)
	return c
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func flag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
