package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

// Config describes the client-scoped Redis connection.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LoadConfig reads CACHE_* from the environment.
func LoadConfig() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", ""),
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	}
}

// Configured reports whether a host was provided.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Host) != ""
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient builds a client and pings it once. A failed ping is only logged;
// callers decide whether the connection is usable.
func NewClient(cfg Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("Could not connect to redis at %s (db %d): %v", cfg.Addr(), cfg.DB, err)
	} else {
		log.Infof("Successfully connected to redis: %s", pong)
	}
	return client
}
