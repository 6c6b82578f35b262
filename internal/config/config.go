// Package config wraps viper with a nil-safe accessor type and handles
// loading the dremelink configuration file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a nil-safe view over a viper instance. All accessors return
// zero values when the underlying viper is nil, so callers never need a
// nil check before reading optional sub-trees.
type Config struct {
	v *viper.Viper
}

// New wraps a viper instance. A nil viper yields a Config whose accessors
// all return zero values.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// GetString returns the string value for key.
func (c *Config) GetString(key string) string {
	if c == nil || c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// GetInt returns the int value for key.
func (c *Config) GetInt(key string) int {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

// GetBool returns the bool value for key.
func (c *Config) GetBool(key string) bool {
	if c == nil || c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

// GetFloat64 returns the float value for key.
func (c *Config) GetFloat64(key string) float64 {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

// GetDuration returns the duration value for key.
func (c *Config) GetDuration(key string) time.Duration {
	if c == nil || c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

// IsSet reports whether key has a value.
func (c *Config) IsSet(key string) bool {
	if c == nil || c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the sub-tree rooted at key. Always non-nil; a missing key
// yields an empty Config.
func (c *Config) Sub(key string) *Config {
	if c == nil || c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

// Unmarshal decodes the configuration into target.
func (c *Config) Unmarshal(target any) error {
	if c == nil || c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// Viper returns the wrapped viper instance (may be nil).
func (c *Config) Viper() *viper.Viper {
	if c == nil {
		return nil
	}
	return c.v
}

// Load reads the dremelink configuration. If path is empty, the default
// search locations are tried; a missing file is not an error and the
// defaults apply. DREMELINK_* environment variables override file values.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DREMELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("dremelink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dremelink")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("store.path", "dremelink.db")

	v.SetDefault("plugins.dremel.enabled", true)
	v.SetDefault("plugins.dremel.subnet", "")
	v.SetDefault("plugins.dremel.host_min", 2)
	v.SetDefault("plugins.dremel.host_max", 249)
	v.SetDefault("plugins.dremel.probe_timeout", "1s")
	v.SetDefault("plugins.dremel.poll_interval", "2s")
	v.SetDefault("plugins.dremel.poll_timeout", "5s")
	v.SetDefault("plugins.dremel.upload_timeout", "30s")
	v.SetDefault("plugins.dremel.start_timeout", "10s")
	v.SetDefault("plugins.dremel.max_concurrent_probes", 32)
	v.SetDefault("plugins.dremel.probes_per_second", 64)
	v.SetDefault("plugins.dremel.ping_first", false)
	v.SetDefault("plugins.dremel.mdns.enabled", false)
	v.SetDefault("plugins.dremel.mdns.interval", "5m")
}

