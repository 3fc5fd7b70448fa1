package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/doppl/config"
	"github.com/BaSui01/doppl/internal/tlsutil"
)

// =============================================================================
// 🌐 Redis 固定窗口限流
// =============================================================================

// Redis 多副本共享的固定窗口计数器
type Redis struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedis 连接 Redis 并创建限流器。连接失败时返回错误。
func NewRedis(cfg config.RedisConfig, limit int, window time.Duration, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit < 1 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit window: limit=%d window=%s", limit, window)
	}

	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: 1,
	}
	if cfg.TLS {
		tlsCfg, err := tlsutil.ClientTLSConfig(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("redis tls: %w", err)
		}
		opts.TLSConfig = tlsCfg
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &Redis{
		client: client,
		prefix: cfg.KeyPrefix + "ratelimit:",
		limit:  int64(limit),
		window: window,
		logger: logger.With(zap.String("component", "ratelimit_redis")),
	}
	r.logger.Info("redis rate limiter initialized",
		zap.String("addr", cfg.Addr),
		zap.Bool("tls", cfg.TLS),
		zap.Int("limit", limit),
		zap.Duration("window", window))
	return r, nil
}

// Allow 计数加一，窗口内超过 limit 时拒绝。
// INCR 与 PEXPIRE NX 在同一事务里执行，键不会停留在无 TTL 的状态；
// 旧版本遗留的无 TTL 键也会在下一次计数时补上过期时间。
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, fmt.Errorf("rate limiter is closed")
	}

	k := r.prefix + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpireNX(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val() <= r.limit, nil
}

// Ping 检查 Redis 连接
func (r *Redis) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("rate limiter is closed")
	}
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Info("closing redis rate limiter")
	return r.client.Close()
}
