package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dailyyoga/datakit/logger"
)

// RedisConfig holds connection settings for the shared Redis tier.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// MergeDefaults fills unset fields from the defaults.
func (c *RedisConfig) MergeDefaults() *RedisConfig {
	def := DefaultRedisConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.PoolSize == 0 {
		c.PoolSize = def.PoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}

// Validate validates the configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig("addr is required")
	}
	if c.DB < 0 {
		return ErrInvalidConfig("db cannot be negative")
	}
	if c.PoolSize < 0 {
		return ErrInvalidConfig("pool_size cannot be negative")
	}
	if c.MinIdleConns < 0 {
		return ErrInvalidConfig("min_idle_conns cannot be negative")
	}
	if c.MaxRetries < 0 {
		return ErrInvalidConfig("max_retries cannot be negative")
	}
	if c.DialTimeout < 0 {
		return ErrInvalidConfig("dial_timeout cannot be negative")
	}
	if c.ReadTimeout < 0 {
		return ErrInvalidConfig("read_timeout cannot be negative")
	}
	if c.WriteTimeout < 0 {
		return ErrInvalidConfig("write_timeout cannot be negative")
	}
	return nil
}

// Options converts the config to go-redis options.
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Redis is the client contract for the shared Redis tier. Commands
// return go-redis result types so callers keep the full API.
type Redis interface {
	// String operations
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	MSet(ctx context.Context, values ...any) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	DecrBy(ctx context.Context, key string, value int64) *redis.IntCmd

	// Key operations
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd

	// Hash operations
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd

	// List operations
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd

	// Set operations
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd

	// Sorted set operations
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd

	// Script operations
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd

	// Pub/Sub
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
	PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error)

	// Connection
	Ping(ctx context.Context) *redis.StatusCmd
	PoolStats() *redis.PoolStats
	Unwrap() *redis.Client
	Close() error
}

type redisClient struct {
	log logger.Logger
	rdb *redis.Client
}

// NewRedis creates a Redis client and verifies connectivity with a
// ping.
func NewRedis(log logger.Logger, cfg *RedisConfig) (Redis, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(cfg.Options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, ErrConnection(err)
	}

	log.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)
	return &redisClient{log: log, rdb: rdb}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return c.rdb.Get(ctx, key)
}

func (c *redisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return c.rdb.Set(ctx, key, value, expiration)
}

func (c *redisClient) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	return c.rdb.SetNX(ctx, key, value, expiration)
}

func (c *redisClient) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	return c.rdb.MGet(ctx, keys...)
}

func (c *redisClient) MSet(ctx context.Context, values ...any) *redis.StatusCmd {
	return c.rdb.MSet(ctx, values...)
}

func (c *redisClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	return c.rdb.Incr(ctx, key)
}

func (c *redisClient) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	return c.rdb.IncrBy(ctx, key, value)
}

func (c *redisClient) Decr(ctx context.Context, key string) *redis.IntCmd {
	return c.rdb.Decr(ctx, key)
}

func (c *redisClient) DecrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	return c.rdb.DecrBy(ctx, key, value)
}

func (c *redisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return c.rdb.Del(ctx, keys...)
}

func (c *redisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	return c.rdb.Exists(ctx, keys...)
}

func (c *redisClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return c.rdb.Expire(ctx, key, expiration)
}

func (c *redisClient) TTL(ctx context.Context, key string) *redis.DurationCmd {
	return c.rdb.TTL(ctx, key)
}

func (c *redisClient) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return c.rdb.HSet(ctx, key, values...)
}

func (c *redisClient) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	return c.rdb.HGet(ctx, key, field)
}

func (c *redisClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	return c.rdb.HGetAll(ctx, key)
}

func (c *redisClient) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	return c.rdb.HDel(ctx, key, fields...)
}

func (c *redisClient) HExists(ctx context.Context, key, field string) *redis.BoolCmd {
	return c.rdb.HExists(ctx, key, field)
}

func (c *redisClient) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return c.rdb.LPush(ctx, key, values...)
}

func (c *redisClient) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return c.rdb.RPush(ctx, key, values...)
}

func (c *redisClient) LPop(ctx context.Context, key string) *redis.StringCmd {
	return c.rdb.LPop(ctx, key)
}

func (c *redisClient) RPop(ctx context.Context, key string) *redis.StringCmd {
	return c.rdb.RPop(ctx, key)
}

func (c *redisClient) LLen(ctx context.Context, key string) *redis.IntCmd {
	return c.rdb.LLen(ctx, key)
}

func (c *redisClient) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	return c.rdb.SAdd(ctx, key, members...)
}

func (c *redisClient) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	return c.rdb.SRem(ctx, key, members...)
}

func (c *redisClient) SCard(ctx context.Context, key string) *redis.IntCmd {
	return c.rdb.SCard(ctx, key)
}

func (c *redisClient) SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd {
	return c.rdb.SIsMember(ctx, key, member)
}

func (c *redisClient) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	return c.rdb.ZAdd(ctx, key, members...)
}

func (c *redisClient) ZCard(ctx context.Context, key string) *redis.IntCmd {
	return c.rdb.ZCard(ctx, key)
}

func (c *redisClient) ZScore(ctx context.Context, key, member string) *redis.FloatCmd {
	return c.rdb.ZScore(ctx, key, member)
}

func (c *redisClient) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return c.rdb.Eval(ctx, script, keys, args...)
}

func (c *redisClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return c.rdb.EvalSha(ctx, sha1, keys, args...)
}

func (c *redisClient) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return c.rdb.ScriptLoad(ctx, script)
}

func (c *redisClient) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	return c.rdb.Publish(ctx, channel, message)
}

func (c *redisClient) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	pubsub := c.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, ErrConnection(err)
	}
	return pubsub, nil
}

func (c *redisClient) PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	pubsub := c.rdb.PSubscribe(ctx, patterns...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, ErrConnection(err)
	}
	return pubsub, nil
}

func (c *redisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return c.rdb.Ping(ctx)
}

func (c *redisClient) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

func (c *redisClient) Unwrap() *redis.Client {
	return c.rdb
}

func (c *redisClient) Close() error {
	return c.rdb.Close()
}
