package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/phone-assistant/internal/calls"
	appconfig "github.com/wolfman30/phone-assistant/internal/config"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const redisPingTimeout = 3 * time.Second

// BuildRedisClient returns the Redis client backing call state, or nil when
// REDIS_ADDR is empty. With verify set, an unreachable server yields nil so
// the API starts without call tracking.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil {
		return nil
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{Addr: addr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", addr, "tls", cfg.RedisTLS)
	return client
}

// BuildCallStore returns the Redis-backed call store, or nil without Redis.
func BuildCallStore(rdb *redis.Client, logger *logging.Logger) *calls.Store {
	if rdb == nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("redis unavailable; call tracking and analytics disabled")
		return nil
	}
	return calls.NewStore(rdb)
}
