// Package cache wraps Redis as a short-TTL read-through cache for the
// buffered (pre-rewrite) bytes of HLS playlists, so concurrent viewers of
// the same video don't all hit Storage for the master/variant manifest.
// Segments are never cached here: spec §5 requires them to stream, not
// buffer, so caching their bytes in Redis would reintroduce the
// buffering the Storage split was designed to avoid.
package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/config"
)

type PlaylistCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
	ttl    time.Duration
}

func New(cfg *config.Config, logger *zap.SugaredLogger) (*PlaylistCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := time.Duration(cfg.PlaylistCacheTTLSec) * time.Second
	logger.Infow("connected to playlist cache", "host", cfg.RedisHost, "port", cfg.RedisPort, "ttl", ttl)

	return &PlaylistCache{client: client, logger: logger, ttl: ttl}, nil
}

// Key derives a cache key for a video's raw (pre-rewrite) playlist bytes.
func (c *PlaylistCache) Key(videoID, resource string) string {
	hash := md5.Sum([]byte(fmt.Sprintf("playlist:%s:%s", videoID, resource)))
	return fmt.Sprintf("playlist:%x", hash)
}

func (c *PlaylistCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.logger.Warnw("playlist cache get failed", "key", key, "err", err)
		return nil, err
	}
	return data, nil
}

func (c *PlaylistCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warnw("playlist cache set failed", "key", key, "err", err)
	}
}

func (c *PlaylistCache) Close() error { return c.client.Close() }
