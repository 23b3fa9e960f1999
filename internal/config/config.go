package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	SpreadsheetID         string
	Timezone              string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StatsCacheTTLSeconds  int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	LogFormat             string
	LogOutput             string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("STATS_CACHE_TTL_SECONDS", "60"))
	if err != nil || ttl < 1 {
		ttl = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		SpreadsheetID:         strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		Timezone:              getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StatsCacheTTLSeconds:  ttl,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
