package clanmsg_sdk

import "gorm.io/gorm"
import "github.com/go-redis/redis/v8"
import "time"

type ServiceConfig struct {
	Debug bool
}

// RateLimitConfig 通用限流配置（Engine 级别）。
// Enabled 为 false 时不挂限流中间件。
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Limit   int64
}

type Config struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string
	Service     ServiceConfig
	RateLimit   RateLimitConfig
}

type Option func(*Config)

func WithDB(db *gorm.DB) Option {
	return func(c *Config) {
		c.DB = db
	}
}

func WithTablePrefix(prefix string) Option {
	return func(c *Config) {
		c.TablePrefix = prefix
	}
}

func WithRDB(RDB *redis.Client) Option {
	return func(c *Config) {
		c.RDB = RDB
	}
}

func WithServiceDebug(debug bool) Option {
	return func(c *Config) {
		c.Service.Debug = debug
	}
}

// WithRateLimit 配置通用限流闸门。
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Config) {
		c.RateLimit = cfg
	}
}
