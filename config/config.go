package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service
type Config struct {
	Port        string
	Environment string

	// DemoMode forces a fixed polling cadence regardless of market
	// hours, for deployments without live upstream credentials
	DemoMode bool

	FinnhubAPIKey    string
	TwelveDataAPIKey string

	RedisAddr     string
	RedisPassword string

	ActivePollInterval time.Duration
	IdlePollInterval   time.Duration
	DemoPollInterval   time.Duration
	FetchTimeout       time.Duration
	ValidationInterval time.Duration
	StalenessThreshold time.Duration
	PriceCeiling       float64
	MarketOpenHour     int
	MarketCloseHour    int
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DemoMode:    getEnvBool("DEMO_MODE", false),

		FinnhubAPIKey:    getEnv("FINNHUB_API_KEY", ""),
		TwelveDataAPIKey: getEnv("TWELVEDATA_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ActivePollInterval: getEnvDuration("ACTIVE_POLL_INTERVAL", 5*time.Second),
		IdlePollInterval:   getEnvDuration("IDLE_POLL_INTERVAL", 2*time.Minute),
		DemoPollInterval:   getEnvDuration("DEMO_POLL_INTERVAL", 10*time.Second),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		ValidationInterval: getEnvDuration("VALIDATION_INTERVAL", 2*time.Minute),
		StalenessThreshold: getEnvDuration("STALENESS_THRESHOLD", 5*time.Minute),
		PriceCeiling:       getEnvFloat("PRICE_CEILING", 1000000),
		MarketOpenHour:     getEnvInt("MARKET_OPEN_HOUR", 9),
		MarketCloseHour:    getEnvInt("MARKET_CLOSE_HOUR", 16),
	}

	AppConfig = config
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInt gets an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvFloat gets a float environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid number for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration gets a duration environment variable (e.g. "5s", "2m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
