package conversation

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siteassist/gateway/core/protocol"
)

// Driver selects a Store backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

const (
	defaultTTL         = time.Hour
	defaultMaxTokens   = 3000
	defaultMaxMessages = 20
)

// Config holds conversation store initialization parameters.
type Config struct {
	Driver Driver `json:"driver,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	// TTLSeconds bounds how long an inactive conversation survives.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
	// MaxContextTokens is the cumulative token-estimate budget for one
	// conversation's rolling history.
	MaxContextTokens int `json:"max_context_tokens,omitempty"`
	// MaxHistoryMessages is the hard cap on history length, independent of
	// the token budget.
	MaxHistoryMessages int `json:"max_history_messages,omitempty"`
}

// DefaultConfig returns an in-memory store configuration with a one-hour TTL,
// a 3000-token budget, and a 20-message cap.
func DefaultConfig() Config {
	return Config{
		Driver:             DriverMemory,
		TTLSeconds:         int(defaultTTL / time.Second),
		MaxContextTokens:   defaultMaxTokens,
		MaxHistoryMessages: defaultMaxMessages,
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
	if source.TTLSeconds > 0 {
		c.TTLSeconds = source.TTLSeconds
	}
	if source.MaxContextTokens > 0 {
		c.MaxContextTokens = source.MaxContextTokens
	}
	if source.MaxHistoryMessages > 0 {
		c.MaxHistoryMessages = source.MaxHistoryMessages
	}
}

// limits carries the trim parameters and estimator shared by all drivers.
type limits struct {
	maxTokens   int
	maxMessages int
	ttl         time.Duration
	estimate    Estimator
}

func (l limits) newMessage(role protocol.Role, content string, now time.Time) Message {
	return Message{
		Role:       role,
		Content:    content,
		TokenCount: l.estimate(content),
		Timestamp:  now,
	}
}

// Option overrides a config-created default.
type Option func(*storeOptions)

type storeOptions struct {
	estimator   Estimator
	redisClient *redis.Client
}

// WithEstimator replaces the default token estimator.
func WithEstimator(e Estimator) Option {
	return func(o *storeOptions) { o.estimator = e }
}

// WithRedisClient supplies a pre-built Redis client, overriding the
// address-based construction from Config.
func WithRedisClient(client *redis.Client) Option {
	return func(o *storeOptions) { o.redisClient = client }
}

// New creates a Store from configuration.
func New(cfg *Config, opts ...Option) (Store, error) {
	options := &storeOptions{estimator: EstimateTokens}
	for _, opt := range opts {
		opt(options)
	}

	lim := limits{
		maxTokens:   cfg.MaxContextTokens,
		maxMessages: cfg.MaxHistoryMessages,
		ttl:         time.Duration(cfg.TTLSeconds) * time.Second,
		estimate:    options.estimator,
	}
	if lim.maxTokens <= 0 {
		lim.maxTokens = defaultMaxTokens
	}
	if lim.maxMessages <= 0 {
		lim.maxMessages = defaultMaxMessages
	}
	if lim.ttl <= 0 {
		lim.ttl = defaultTTL
	}

	switch cfg.Driver {
	case DriverMemory, "":
		return newMemoryStore(lim), nil
	case DriverRedis:
		client := options.redisClient
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("conversation: redis driver requires an address")
			}
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
		}
		return newRedisStore(client, lim), nil
	default:
		return nil, fmt.Errorf("conversation: unknown driver %q", cfg.Driver)
	}
}
