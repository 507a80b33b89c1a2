// internal/validator/cached.go
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/metrics"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

// CacheConfig — мемоизация ответов валидатора в Redis.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`          // для валидных символов
	NegativeTTL time.Duration `mapstructure:"negative_ttl"` // для неизвестных
}

func (c *CacheConfig) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "quote-relay:symbol:"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = 10 * time.Minute
	}
}

// NewRedisClient создаёт клиент и проверяет соединение.
// Клиент возвращается и при ошибке Ping: go-redis переподключится сам.
func NewRedisClient(ctx context.Context, cfg CacheConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("validator: redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Cached запоминает окончательные ответы next в Redis. Ошибки next не кэшируются,
// сбои Redis только логируются.
type Cached struct {
	next Validator
	rdb  redis.Cmdable
	cfg  CacheConfig
	log  *logger.Logger
}

func NewCached(next Validator, rdb redis.Cmdable, cfg CacheConfig, log *logger.Logger) *Cached {
	cfg.applyDefaults()
	return &Cached{next: next, rdb: rdb, cfg: cfg, log: log.Named("validator-cache")}
}

func (c *Cached) Validate(ctx context.Context, symbol string) (bool, error) {
	key := c.cfg.KeyPrefix + symbol

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		valid := val == "1"
		if valid {
			metrics.Validations.WithLabelValues("valid", "cache").Inc()
		} else {
			metrics.Validations.WithLabelValues("invalid", "cache").Inc()
		}
		return valid, nil
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("redis get failed, asking upstream", zap.String("key", key), zap.Error(err))
	}

	valid, err := c.next.Validate(ctx, symbol)
	if err != nil {
		return false, err
	}

	v, ttl := "0", c.cfg.NegativeTTL
	if valid {
		v, ttl = "1", c.cfg.TTL
	}
	if err := c.rdb.Set(ctx, key, v, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
	return valid, nil
}
