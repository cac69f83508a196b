package redis

import (
	"time"
)

// DefaultKeyPrefix namespaces task counters.
const DefaultKeyPrefix = "da:task:"

// Config holds the Redis connection and key layout for the Tracker.
type Config struct {
	Addr         string        // host:port
	Password     string        // optional
	DB           int           // database number
	KeyPrefix    string        // prepended to every task id
	TTL          time.Duration // expiry of task keys, 0 keeps them forever
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	return c
}
