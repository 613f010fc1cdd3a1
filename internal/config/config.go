package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	BindAddr       string
	MongoURL       string
	MongoDB        string
	JWTSecret      string
	PresenceWindow time.Duration
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		BindAddr:       getEnv("BIND_ADDR", ":8080"),
		MongoURL:       os.Getenv("MONGO_URL"),
		MongoDB:        getEnv("MONGO_DB", "nearby"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		PresenceWindow: 30 * time.Minute,
	}

	if v := os.Getenv("PRESENCE_WINDOW_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			log.Fatalf("Invalid PRESENCE_WINDOW_MINUTES: %q", v)
		}
		cfg.PresenceWindow = time.Duration(minutes) * time.Minute
	}

	if cfg.MongoURL == "" || cfg.JWTSecret == "" {
		log.Fatal("Required environment variables MONGO_URL or JWT_SECRET are not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
