package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"ZONEBUF_LOG_LEVEL",
	"ZONEBUF_LOG_FORMAT",
	"ZONEBUF_WORKERS",
	"ZONEBUF_UNSAFE_STRINGS",
	"ZONEBUF_METRICS_ADDR",
	"ZONEBUF_CACHE_SIZE",
	"ZONEBUF_WIRE_COMPRESS",
}

// clearEnv unsets every config key for the test and afterwards, since
// godotenv writes straight into the process environment.
func clearEnv(t *testing.T) {
	t.Helper()
	unset := func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	}
	unset()
	t.Cleanup(unset)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, Default(), Load())
}

func TestEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZONEBUF_LOG_LEVEL", "debug")
	t.Setenv("ZONEBUF_WORKERS", " 8 ")
	t.Setenv("ZONEBUF_UNSAFE_STRINGS", "true")
	t.Setenv("ZONEBUF_CACHE_SIZE", "0")
	t.Setenv("ZONEBUF_WIRE_COMPRESS", "1")
	c := Load()
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
	assert.Equal(t, 8, c.Workers)
	assert.True(t, c.UnsafeStrings)
	assert.Equal(t, 0, c.CacheSize)
	assert.True(t, c.WireCompress)
}

func TestMalformedValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZONEBUF_WORKERS", "many")
	t.Setenv("ZONEBUF_CACHE_SIZE", "-3")
	t.Setenv("ZONEBUF_UNSAFE_STRINGS", "perhaps")
	c := Load()
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, 128, c.CacheSize)
	assert.False(t, c.UnsafeStrings)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ZONEBUF_LOG_FORMAT=json\nZONEBUF_WORKERS=4\nZONEBUF_METRICS_ADDR=:9102\n"), 0o644))
	t.Setenv("ZONEBUF_WORKERS", "2")

	c := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, 2, c.Workers, "environment wins over .env")
	assert.Equal(t, ":9102", c.MetricsAddr)
}
