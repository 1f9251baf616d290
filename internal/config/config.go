// Package config loads tandem settings from a YAML file and TANDEM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: TANDEM_LOG_LEVEL sets
// log.level.
const EnvPrefix = "TANDEM"

// Config is the full settings tree.
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Trace TraceConfig `mapstructure:"trace"`
	Fuzz  FuzzConfig  `mapstructure:"fuzz"`
	Redis RedisConfig `mapstructure:"redis"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TraceConfig locates the sqlite trace database. An empty DB disables
// recording for commands where it is optional.
type TraceConfig struct {
	DB string `mapstructure:"db"`
}

type FuzzConfig struct {
	Seeds   int    `mapstructure:"seeds"`
	Edits   int    `mapstructure:"edits"`
	Initial string `mapstructure:"initial"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// SetDefaults registers every key with its default. Keys without a default
// are invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("trace.db", "")
	v.SetDefault("fuzz.seeds", 100)
	v.SetDefault("fuzz.edits", 30)
	v.SetDefault("fuzz.initial", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "tandem")
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration. A non-empty path must name a readable file.
// With an empty path, tandem.yaml is looked up in ./config and the working
// directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tandem")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Fuzz.Seeds < 0 {
		return fmt.Errorf("fuzz.seeds must be non-negative, got %d", c.Fuzz.Seeds)
	}
	if c.Fuzz.Edits < 0 {
		return fmt.Errorf("fuzz.edits must be non-negative, got %d", c.Fuzz.Edits)
	}
	if c.Redis.ChannelPrefix == "" {
		return fmt.Errorf("redis.channel_prefix is required")
	}
	return nil
}

// LogLevel parses log.level ("debug", "info", "warn", "error").
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
