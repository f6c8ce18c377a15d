package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config 是一次运行使用的不可变配置快照
type Config struct {
	AppPort string
	// 可选的站点级 Basic Auth，两项都配置时启用
	BasicAuthUser string
	BasicAuthPass string

	PostgresDSN string
	RedisAddr   string
	CacheTTL    time.Duration

	LogLevel  string
	LogFormat string

	// 聚合参数
	PerSourceLimit int
	MaxItems       int
	FanOut         int
	FetchTimeout   time.Duration

	SourcesFile string
	Feeds       []Source
	Quotes      []Quote
}

func Load() (*Config, error) {
	// .env 不存在时直接使用进程环境变量
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		BasicAuthUser:  getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:  getEnv("APP_BASIC_PASS", ""),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		CacheTTL:       getEnvDuration("CACHE_TTL", 10*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		PerSourceLimit: getEnvInt("PER_SOURCE_LIMIT", 5),
		MaxItems:       getEnvInt("MAX_ITEMS", 10),
		FanOut:         getEnvInt("FAN_OUT", 4),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", DefaultFetchTimeout),
		SourcesFile:    getEnv("SOURCES_FILE", ""),
	}

	file, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Feeds = file.Feeds
	cfg.Quotes = file.Quotes

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("port", cfg.AppPort).
		Int("feeds", len(cfg.Feeds)).
		Int("quotes", len(cfg.Quotes)).
		Int("max_items", cfg.MaxItems).
		Msg("config loaded")
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer in env, using default")
		return def
	}
	return n
}

// getEnvDuration 同时接受 "15s" 这类写法和纯秒数
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Str("value", v).Msg("invalid duration in env, using default")
	return def
}
