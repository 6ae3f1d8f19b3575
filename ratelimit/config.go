package ratelimit

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Driver selects a Counter backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// Config holds rate limiter initialization parameters.
type Config struct {
	Driver Driver `json:"driver,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	// Ceiling is the per-IP requests-per-minute limit. The per-conversation
	// limit is twice this value over an hour.
	Ceiling int `json:"ceiling,omitempty"`
}

// DefaultConfig returns an in-memory limiter at the default ceiling.
func DefaultConfig() Config {
	return Config{
		Driver:  DriverMemory,
		Ceiling: DefaultCeiling,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.RedisAddr != "" {
		c.RedisAddr = source.RedisAddr
	}
	if source.RedisPassword != "" {
		c.RedisPassword = source.RedisPassword
	}
	if source.RedisDB != 0 {
		c.RedisDB = source.RedisDB
	}
	if source.Ceiling > 0 {
		c.Ceiling = source.Ceiling
	}
}

// Option overrides a config-created default.
type Option func(*limiterOptions)

type limiterOptions struct {
	counter     Counter
	redisClient *redis.Client
}

// WithCounter supplies a pre-built Counter, bypassing driver selection.
func WithCounter(counter Counter) Option {
	return func(o *limiterOptions) { o.counter = counter }
}

// WithRedisClient supplies a pre-built Redis client, overriding the
// address-based construction from Config.
func WithRedisClient(client *redis.Client) Option {
	return func(o *limiterOptions) { o.redisClient = client }
}

// New creates a Limiter from configuration.
func New(cfg *Config, opts ...Option) (*Limiter, error) {
	options := &limiterOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.counter != nil {
		return NewLimiter(options.counter, cfg.Ceiling), nil
	}

	switch cfg.Driver {
	case DriverMemory, "":
		return NewLimiter(NewMemoryCounter(), cfg.Ceiling), nil
	case DriverRedis:
		client := options.redisClient
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("ratelimit: redis driver requires an address")
			}
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
		}
		return NewLimiter(NewRedisCounter(client), cfg.Ceiling), nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown driver %q", cfg.Driver)
	}
}
