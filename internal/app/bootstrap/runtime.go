package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/dentalcrm/internal/config"
	"github.com/wolfman30/dentalcrm/internal/messaging"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildDeduper picks the Redis deduper when a client is available so that
// replicas share one window, and the process-local one otherwise.
func BuildDeduper(client *redis.Client, logger *logging.Logger) messaging.Deduper {
	if client != nil {
		return messaging.NewRedisDeduper(client)
	}
	if logger != nil {
		logger.Info("message dedup is process local; set REDIS_ADDR to share it")
	}
	return messaging.NewMemoryDeduper()
}
