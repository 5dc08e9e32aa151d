// Package redisopts provides options for Redis client configuration.
package redisopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Redis client configuration.
type Options struct {
	// Addr is the Redis server address (host:port).
	Addr string `json:"addr" mapstructure:"addr"`

	// Password for authentication.
	Password string `json:"password" mapstructure:"password"`

	// DB is the database index.
	DB int `json:"db" mapstructure:"db"`

	// DialTimeout for establishing new connections.
	DialTimeout time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`

	// ReadTimeout for socket reads.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`

	// Enabled toggles the cache layer entirely.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Addr:        "localhost:6379",
		DB:          0,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
		PoolSize:    10,
		Enabled:     false,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, options.Join(prefixes...)+"redis.addr", o.Addr, "Redis server address (host:port).")
	fs.StringVar(&o.Password, options.Join(prefixes...)+"redis.password", o.Password, "Redis password for authentication.")
	fs.IntVar(&o.DB, options.Join(prefixes...)+"redis.db", o.DB, "Redis database index.")
	fs.DurationVar(&o.DialTimeout, options.Join(prefixes...)+"redis.dial-timeout", o.DialTimeout, "Dial timeout for new connections.")
	fs.DurationVar(&o.ReadTimeout, options.Join(prefixes...)+"redis.read-timeout", o.ReadTimeout, "Read timeout for socket reads.")
	fs.IntVar(&o.PoolSize, options.Join(prefixes...)+"redis.pool-size", o.PoolSize, "Maximum number of socket connections.")
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"redis.enabled", o.Enabled, "Enable the Redis cache layer.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("redis addr is required when redis is enabled"))
	}
	if o.DB < 0 {
		errs = append(errs, fmt.Errorf("redis db must be non-negative"))
	}
	return errs
}
