// Package cache provides a Redis-backed read-through cache for the active
// version of each (code, language) template group.
//
// The cache is an optimization only: every failure degrades to a miss and
// the caller falls back to the database. Entries are invalidated whenever
// the Version Manager changes which row is active and otherwise expire
// after the configured TTL.
//
// Each group has a generation counter next to its entry. Invalidate bumps
// it, and a fill only lands when the generation still matches the one seen
// by the miss that triggered it, so a slow reader cannot put back a row
// that was superseded or deactivated while it was reading the store.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/template-service/internal/config"
	"github.com/tbourn/template-service/internal/domain"
)

const defaultTTL = 30 * time.Second

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "template:active:"

// genPrefix namespaces the per-group generation counters.
const genPrefix = "template:gen:"

// fillScript sets KEYS[1] only while the generation in KEYS[2] still equals
// ARGV[2]. A missing counter reads as 0.
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache implements services.ActiveCache over go-redis.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedis builds a client from cfg. It does not dial; use Ping to check
// connectivity.
func NewRedis(cfg config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{Client: client, TTL: ttl}
}

// Key returns the Redis key for a group.
func Key(code, language string) string {
	return KeyPrefix + language + ":" + code
}

// GenKey returns the generation counter key for a group.
func GenKey(code, language string) string {
	return genPrefix + language + ":" + code
}

// Get returns the cached active row. On a miss it returns the group's
// current generation as the fill token for Set; a backend failure returns
// -1 so the caller skips the fill.
func (c *RedisCache) Get(ctx context.Context, code, language string) (*domain.Template, int64, bool) {
	vals, err := c.Client.MGet(ctx, Key(code, language), GenKey(code, language)).Result()
	if err != nil || len(vals) != 2 {
		log.Ctx(ctx).Debug().Err(err).Str("template.code", code).Msg("cache get failed")
		return nil, -1, false
	}
	gen, ok := parseGen(vals[1])
	if !ok {
		return nil, -1, false
	}
	raw, _ := vals[0].(string)
	if raw == "" {
		return nil, gen, false
	}
	var t domain.Template
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, gen, false
	}
	return &t, gen, true
}

// Set stores t as the active row of its group unless the group was
// invalidated after the Get that returned token.
func (c *RedisCache) Set(ctx context.Context, t *domain.Template, token int64) {
	if token < 0 {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	keys := []string{Key(t.Code, t.Language), GenKey(t.Code, t.Language)}
	stored, err := fillScript.Run(ctx, c.Client, keys, raw, strconv.FormatInt(token, 10), c.TTL.Milliseconds()).Int()
	switch {
	case err != nil:
		log.Ctx(ctx).Debug().Err(err).Str("template.code", t.Code).Msg("cache set failed")
	case stored == 0:
		log.Ctx(ctx).Debug().Str("template.code", t.Code).Int64("cache.token", token).Msg("cache fill skipped, group invalidated")
	}
}

// Invalidate bumps the group's generation and drops its entry in one
// transaction.
func (c *RedisCache) Invalidate(ctx context.Context, code, language string) {
	_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, GenKey(code, language))
		p.Del(ctx, Key(code, language))
		return nil
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("template.code", code).Msg("cache invalidate failed")
	}
}

// parseGen decodes a generation counter read by MGET. nil means the group
// was never invalidated.
func parseGen(v any) (int64, bool) {
	if v == nil {
		return 0, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (c *RedisCache) Close() error {
	return c.Client.Close()
}
