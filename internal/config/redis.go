package config

// Redis backs the distributed login rate limiter only.  When it cannot be
// reached at startup the server keeps running and the limiter falls back
// to an in-process bucket per client IP.

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters for the rate limiter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig reads REDIS_* variables:
//
//	REDIS_HOST and REDIS_PORT  hostname and port (take precedence over REDIS_ADDR)
//	REDIS_ADDR                 host:port shorthand, default localhost:6379
//	REDIS_PASSWORD             optional password
//	REDIS_DB                   database number (default 0)
//	REDIS_TLS                  enable TLS when "true" or "1"
func LoadRedisConfig() RedisConfig {
	v := env()
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	addr := v.GetString("REDIS_ADDR")
	host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TLS:      switchOn(v, "REDIS_TLS"),
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.  On
// failure the client is closed and the error returned; callers treat that
// as "no Redis" and degrade.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{ServerName: strings.Split(cfg.Addr, ":")[0]}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return client, nil
}
