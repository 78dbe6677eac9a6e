// Package config loads orbitscan settings from defaults, an optional YAML
// file and ORBITSCAN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/orbitscan/internal/tracing"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Auth    AuthConfig     `mapstructure:"auth"`
	TLE     TLEConfig      `mapstructure:"tle"`
	Engine  EngineConfig   `mapstructure:"engine"`
	Stream  StreamConfig   `mapstructure:"stream"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	TrustProxy   bool          `mapstructure:"trust_proxy"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type TLEConfig struct {
	CacheDir     string   `mapstructure:"cache_dir"`
	MaxFiles     int      `mapstructure:"max_files"`
	SourceURL    string   `mapstructure:"source_url"`
	ExtraURLs    []string `mapstructure:"extra_urls"`
	FetchEnabled bool     `mapstructure:"fetch_enabled"`
	NoradIDs     []int    `mapstructure:"norad_ids"`
}

type EngineConfig struct {
	MaxSamples     int     `mapstructure:"max_samples"`
	GravityModel   string  `mapstructure:"gravity_model"`
	DefaultWidthKm float64 `mapstructure:"default_width_km"`
}

type StreamConfig struct {
	MaxConcurrentPerIP int           `mapstructure:"max_concurrent_per_ip"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`
	DefaultInterval    time.Duration `mapstructure:"default_interval"`
	MinInterval        time.Duration `mapstructure:"min_interval"`
}

type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// defaults are registered on every load. Every key must appear here for
// environment overrides to reach Unmarshal.
var defaults = map[string]any{
	"server.addr":                  ":8080",
	"server.trust_proxy":           false,
	"server.read_timeout":          "10s",
	"server.write_timeout":         "30s",
	"auth.enabled":                 false,
	"auth.token":                   "",
	"tle.cache_dir":                "data/tle",
	"tle.max_files":                5,
	"tle.source_url":               "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle",
	"tle.extra_urls":               []string{},
	"tle.fetch_enabled":            true,
	"tle.norad_ids":                []int{},
	"engine.max_samples":           200000,
	"engine.gravity_model":         "wgs72",
	"engine.default_width_km":      200.0,
	"stream.max_concurrent_per_ip": 5,
	"stream.keepalive_interval":    "15s",
	"stream.default_interval":      "5s",
	"stream.min_interval":          "1s",
	"cache.ttl":                    "10m",
	"cache.max_entries":            256,
	"log.level":                    "info",
	"log.format":                   "json",
	"tracing.enabled":              false,
	"tracing.service_name":         "orbitscan",
	"tracing.exporter":             "stdout",
	"tracing.endpoint":             "",
	"tracing.sample_ratio":         1.0,
}

// Load reads configuration. When path is empty, orbitscan.yaml is looked up
// in the working directory and ./configs; a missing file is not an error.
// Invalid optional values are replaced by defaults with a warning; invalid
// required settings return an error.
func Load(path string, logger *slog.Logger) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("orbitscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: ORBITSCAN_ENGINE_MAX_SAMPLES -> engine.max_samples
	v.SetEnvPrefix("ORBITSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyFallbacks(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info("loaded config file", "path", used)
	}
	return &cfg, nil
}

// applyFallbacks resets out-of-range optional values to their defaults.
func (c *Config) applyFallbacks(logger *slog.Logger) {
	warn := func(key string, value, def any) {
		logger.Warn("invalid config value, using default", "key", key, "value", value, "default", def)
	}

	if c.TLE.MaxFiles < 1 {
		warn("tle.max_files", c.TLE.MaxFiles, 5)
		c.TLE.MaxFiles = 5
	}
	if c.Engine.MaxSamples < 1 {
		warn("engine.max_samples", c.Engine.MaxSamples, 200000)
		c.Engine.MaxSamples = 200000
	}
	if !(c.Engine.DefaultWidthKm > 0) {
		warn("engine.default_width_km", c.Engine.DefaultWidthKm, 200.0)
		c.Engine.DefaultWidthKm = 200
	}
	if c.Stream.MaxConcurrentPerIP < 1 {
		warn("stream.max_concurrent_per_ip", c.Stream.MaxConcurrentPerIP, 5)
		c.Stream.MaxConcurrentPerIP = 5
	}
	if c.Stream.KeepaliveInterval < time.Second {
		warn("stream.keepalive_interval", c.Stream.KeepaliveInterval, "15s")
		c.Stream.KeepaliveInterval = 15 * time.Second
	}
	if c.Stream.MinInterval <= 0 {
		warn("stream.min_interval", c.Stream.MinInterval, "1s")
		c.Stream.MinInterval = time.Second
	}
	if c.Stream.DefaultInterval < c.Stream.MinInterval {
		warn("stream.default_interval", c.Stream.DefaultInterval, "5s")
		c.Stream.DefaultInterval = 5 * time.Second
	}
	if c.Cache.TTL <= 0 {
		warn("cache.ttl", c.Cache.TTL, "10m")
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Cache.MaxEntries < 1 {
		warn("cache.max_entries", c.Cache.MaxEntries, 256)
		c.Cache.MaxEntries = 256
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		warn("tracing.sample_ratio", c.Tracing.SampleRatio, 1.0)
		c.Tracing.SampleRatio = 1
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	var errs []string

	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, "auth.token is required when auth is enabled")
	}
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch strings.ToLower(c.Engine.GravityModel) {
	case "wgs72", "wgs84":
	default:
		errs = append(errs, fmt.Sprintf("engine.gravity_model must be wgs72 or wgs84, got %q", c.Engine.GravityModel))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "stdout", "otlp", "otlpgrpc":
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be stdout or otlp, got %q", c.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
