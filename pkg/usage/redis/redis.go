// Package redis implements usage.Cache on top of Redis, so several
// instances share one view of per-owner totals.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/dittodrive/pkg/usage"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces cache keys.
const DefaultKeyPrefix = "dittodrive:usage:"

// RedisCacheConfig configures a RedisCache.
type RedisCacheConfig struct {
	// URL is a redis:// or rediss:// connection string. Ignored when
	// Client is set.
	URL string

	// Client is an existing client to use instead of dialing URL. The
	// cache does not close a client it did not create.
	Client goredis.UniversalClient

	// KeyPrefix is prepended to owner ids. Default: DefaultKeyPrefix.
	KeyPrefix string

	// TTL bounds the staleness of an entry. Default: 30s.
	TTL time.Duration
}

// genTTL bounds how long an idle owner's generation counter is kept.
const genTTL = 24 * time.Hour

// RedisCache implements usage.Cache with two string keys per owner: the
// cached total and a generation counter that Invalidate increments. Set
// writes the total under WATCH on the counter, so it is discarded when an
// invalidation slipped in after the caller's Get.
type RedisCache struct {
	client     goredis.UniversalClient
	ownsClient bool
	prefix     string
	ttl        time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	client := cfg.Client
	owns := false
	if client == nil {
		if cfg.URL == "" {
			return nil, errors.New("redis cache: url or client is required")
		}
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: invalid url: %w", err)
		}
		client = goredis.NewClient(opts)
		owns = true
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if owns {
			_ = client.Close()
		}
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisCache{client: client, ownsClient: owns, prefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) key(ownerID string) string {
	return c.prefix + "used:" + ownerID
}

func (c *RedisCache) genKey(ownerID string) string {
	return c.prefix + "gen:" + ownerID
}

// parseCounter reads a MGET/GET reply; a missing key is zero.
func parseCounter(val any) (uint64, error) {
	if val == nil {
		return 0, nil
	}
	s, ok := val.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected reply type %T", val)
	}
	return strconv.ParseUint(s, 10, 64)
}

func (c *RedisCache) Get(ctx context.Context, ownerID string) (int64, uint64, bool, error) {
	vals, err := c.client.MGet(ctx, c.key(ownerID), c.genKey(ownerID)).Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("redis get: %w", err)
	}

	gen, err := parseCounter(vals[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("redis get: corrupt generation: %w", err)
	}
	if vals[0] == nil {
		return 0, gen, false, nil
	}

	raw, _ := vals[0].(string)
	used, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("redis get: corrupt value %q: %w", raw, err)
	}
	return used, gen, true, nil
}

// Set stores used unless the owner's generation moved past gen.
func (c *RedisCache) Set(ctx context.Context, ownerID string, used int64, gen uint64) error {
	genKey := c.genKey(ownerID)

	err := c.client.Watch(ctx, func(tx *goredis.Tx) error {
		val, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		var current any
		if err == nil {
			current = val
		}
		currentGen, err := parseCounter(current)
		if err != nil {
			return fmt.Errorf("corrupt generation: %w", err)
		}
		if currentGen != gen {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, c.key(ownerID), strconv.FormatInt(used, 10), c.ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, goredis.TxFailedErr) {
		// Invalidated while writing; the total is already stale.
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, ownerID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, c.key(ownerID))
		pipe.Incr(ctx, c.genKey(ownerID))
		pipe.Expire(ctx, c.genKey(ownerID), genTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Close closes the client if the cache created it.
func (c *RedisCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}

var _ usage.Cache = (*RedisCache)(nil)
