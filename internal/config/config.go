package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port             string
	AllowedOrigin    string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SearchTTLSeconds int
	AuthSecret       string
	TokenTTLHours    int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	searchTTL, err := strconv.Atoi(getEnv("SEARCH_TTL_SECONDS", "30"))
	if err != nil || searchTTL < 1 {
		searchTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_HOURS", "168"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 168
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		SearchTTLSeconds: searchTTL,
		AuthSecret:       strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		TokenTTLHours:    tokenTTL,
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
