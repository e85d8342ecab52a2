package config

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config selects the connection targets for the shared Redis and NATS handles
// and the listen port. No behavior branches on it.
type Config struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	NATSUrl       string
	Port          string
}

// Load reads configuration from the environment, with a local .env file as a
// development convenience.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	return &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		NATSUrl:       getEnv("NATS_URL", "nats://localhost:4222"),
		Port:          getEnv("PORT", "5001"),
	}
}

// RedisAddr returns the host:port target for the Redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
