package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	APIBaseURL          string
	APITimeout          time.Duration
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	ProfileCacheTTL     time.Duration
	ProfileCacheMaxSize int
	CacheSweepInterval  time.Duration
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RefreshLeeway       time.Duration
	CookieSecure        bool
	CookieDomain        string
	DefaultPageSize     int
	MaxPageSize         int
}

func Load() Config {
	return Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		APIBaseURL:          strings.TrimRight(getenv("API_BASE_URL", "http://127.0.0.1:8000"), "/"),
		APITimeout:          getenvDuration("API_TIMEOUT", 15*time.Second),
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		ProfileCacheTTL:     getenvDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		ProfileCacheMaxSize: getenvInt("PROFILE_CACHE_MAX_SIZE", 1000),
		CacheSweepInterval:  getenvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		AccessTokenTTL:      getenvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:     getenvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshLeeway:       getenvDuration("REFRESH_LEEWAY", time.Minute),
		CookieSecure:        getenvBool("COOKIE_SECURE", false),
		CookieDomain:        getenv("COOKIE_DOMAIN", ""),
		DefaultPageSize:     getenvInt("DEFAULT_PAGE_SIZE", 10),
		MaxPageSize:         getenvInt("MAX_PAGE_SIZE", 100),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
