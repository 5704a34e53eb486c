package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 前端正式域名与本地开发地址，ALLOWED_ORIGINS 未配置时使用
var defaultAllowedOrigins = []string{
	"https://www.realestategozamadrid.com",
	"https://realestategozamadrid.com",
	"https://gozamadrid.com",
	"https://www.gozamadrid.com",
	"http://localhost:3000",
}

type Config struct {
	AppPort  string `yaml:"app_port"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	// 上游数据源
	MongoAPIURL       string        `yaml:"mongodb_api_url"`
	MongoURI          string        `yaml:"mongodb_uri"`
	MongoDatabase     string        `yaml:"mongodb_database"`
	WordPressAPIURL   string        `yaml:"wp_api_url"`
	WooCommerceAPIURL string        `yaml:"wc_api_url"`
	WooCommerceKey    string        `yaml:"woo_commerce_key"`
	WooCommerceSecret string        `yaml:"woo_commerce_secret"`
	APITimeout        time.Duration `yaml:"api_timeout"`
	PublicAPIURL      string        `yaml:"public_api_url"`
	PageSize          int           `yaml:"page_size"`
	MongoMaxAttempts  int           `yaml:"mongo_max_attempts"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	// 缓存：REDIS_ADDR 为空时仅使用进程内缓存
	RedisAddr       string        `yaml:"redis_addr"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	ListCacheTTL    time.Duration `yaml:"list_cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`
	WarmCron        string        `yaml:"warm_cron"`

	// 线索（联系表单）存储与事件通知，均为可选
	PostgresDSN     string `yaml:"postgres_dsn"`
	NATSURL         string `yaml:"nats_url"`
	NATSLeadSubject string `yaml:"nats_lead_subject"`

	// 查看线索列表的 Basic Auth 账号，未配置时该接口关闭
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`

	// DemoFallback 所有数据源都失败时是否返回演示房源
	DemoFallback bool `yaml:"demo_fallback"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		AppPort:          "9000",
		LogLevel:         "info",
		MongoDatabase:    "gozamadrid",
		APITimeout:       15 * time.Second,
		PageSize:         50,
		MongoMaxAttempts: 7,
		AllowedOrigins:   append([]string(nil), defaultAllowedOrigins...),
		CacheTTL:         5 * time.Minute,
		ListCacheTTL:     5 * time.Minute,
		CacheMaxEntries:  50,
		WarmCron:         "*/10 * * * *",
		NATSLeadSubject:  "leads.created",
		DemoFallback:     true,
	}
}

// Load 依次读取：默认值 -> .env 文件 -> CONFIG_FILE 指定的 YAML -> 环境变量（优先级最高）
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles ENV_FILE 优先，否则 .env.local 覆盖 .env；文件不存在不算错误
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.Debug = getBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.MongoAPIURL = strings.TrimRight(getEnv("MONGODB_API_URL", c.MongoAPIURL), "/")
	c.MongoURI = getEnv("MONGODB_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGODB_DATABASE", c.MongoDatabase)
	c.WordPressAPIURL = strings.TrimRight(getEnv("WP_API_URL", c.WordPressAPIURL), "/")
	c.WooCommerceAPIURL = strings.TrimRight(getEnv("WC_API_URL", c.WooCommerceAPIURL), "/")
	c.WooCommerceKey = getEnv("WOO_COMMERCE_KEY", c.WooCommerceKey)
	c.WooCommerceSecret = getEnv("WOO_COMMERCE_SECRET", c.WooCommerceSecret)
	c.APITimeout = getDuration("API_TIMEOUT", c.APITimeout)
	c.PublicAPIURL = getEnv("NEXT_PUBLIC_API_URL", c.PublicAPIURL)
	c.PageSize = getInt("PAGE_SIZE", c.PageSize)
	c.MongoMaxAttempts = getInt("MONGO_MAX_ATTEMPTS", c.MongoMaxAttempts)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.CacheTTL = getDuration("CACHE_TTL", c.CacheTTL)
	c.ListCacheTTL = getDuration("LIST_CACHE_TTL", c.ListCacheTTL)
	c.CacheMaxEntries = getInt("CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.WarmCron = getEnv("WARM_CRON", c.WarmCron)

	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSLeadSubject = getEnv("NATS_LEAD_SUBJECT", c.NATSLeadSubject)
	c.BasicAuthUser = getEnv("APP_BASIC_USER", c.BasicAuthUser)
	c.BasicAuthPass = getEnv("APP_BASIC_PASS", c.BasicAuthPass)

	c.DemoFallback = getBool("DEMO_FALLBACK", c.DemoFallback)
}

// Validate 至少需要配置一个上游数据源
func (c *Config) Validate() error {
	if c.MongoAPIURL == "" && c.MongoURI == "" && c.WordPressAPIURL == "" && c.WooCommerceAPIURL == "" {
		return errors.New("config: no upstream configured (MONGODB_API_URL, MONGODB_URI, WP_API_URL or WC_API_URL)")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("config: API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("config: PAGE_SIZE must be in 1..100, got %d", c.PageSize)
	}
	if c.MongoMaxAttempts <= 0 {
		c.MongoMaxAttempts = 1
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 50
	}
	return nil
}

// WooCommerceConfigured key/secret 与地址都齐全时才启用 WooCommerce
func (c *Config) WooCommerceConfigured() bool {
	return c.WooCommerceAPIURL != "" && c.WooCommerceKey != "" && c.WooCommerceSecret != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// getDuration 支持 "15s" 这样的时长，也兼容旧部署里的毫秒数（如 API_TIMEOUT=30000）
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
