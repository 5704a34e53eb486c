package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	t.Setenv(key, "")
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetDurationAcceptsMillisAndDurations(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "30000")
	assert.Equal(t, 30*time.Second, getDuration("TEST_TIMEOUT", time.Second))

	t.Setenv("TEST_TIMEOUT", "1m")
	assert.Equal(t, time.Minute, getDuration("TEST_TIMEOUT", time.Second))

	t.Setenv("TEST_TIMEOUT", "nonsense")
	assert.Equal(t, time.Second, getDuration("TEST_TIMEOUT", time.Second))
}

func TestLoadReadsUpstreamsAndOrigins(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_PORT", "1234")
	t.Setenv("MONGODB_API_URL", "https://api.example.com/")
	t.Setenv("WC_API_URL", "https://shop.example.com/wp-json/wc/v3")
	t.Setenv("WOO_COMMERCE_KEY", "ck")
	t.Setenv("WOO_COMMERCE_SECRET", "cs")
	t.Setenv("API_TIMEOUT", "10000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DEMO_FALLBACK", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1234", cfg.AppPort)
	assert.Equal(t, "https://api.example.com", cfg.MongoAPIURL)
	assert.True(t, cfg.WooCommerceConfigured())
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.DemoFallback)
	assert.Equal(t, 7, cfg.MongoMaxAttempts)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
}

func TestLoadYAMLThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := "app_port: \"7000\"\nwp_api_url: https://blog.example.com/wp-json/wp/v2\npage_size: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.AppPort)
	assert.Equal(t, "https://blog.example.com/wp-json/wp/v2", cfg.WordPressAPIURL)
	assert.Equal(t, 20, cfg.PageSize)
}

func TestValidateRequiresUpstream(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.WordPressAPIURL = "https://blog.example.com"
	assert.NoError(t, cfg.Validate())

	cfg.APITimeout = 0
	assert.Error(t, cfg.Validate())
}
