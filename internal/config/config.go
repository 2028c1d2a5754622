// Package config loads guildkeeper settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GUILDKEEPER_DB_PATH.
const EnvPrefix = "GUILDKEEPER"

// Config is the resolved configuration.
type Config struct {
	DB        DBConfig
	Log       LogConfig
	Level     LevelConfig
	Rules     RulesConfig
	Retention RetentionConfig
	Ops       OpsConfig
}

type DBConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

type LevelConfig struct {
	// Multiplier is K in level = floor(sqrt(xp / K)).
	Multiplier int64
}

type RulesConfig struct {
	// Timezone applies to guilds without their own.
	Timezone      string
	HotTimePolicy string
}

type RetentionConfig struct {
	Interval     time.Duration
	DefaultDays  int
	PurgeTimeout time.Duration
	// PurgeRate caps purges per second; 0 is unlimited.
	PurgeRate  float64
	RunOnStart bool
}

type OpsConfig struct {
	Addr string
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".guildkeeper", "guildkeeper.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", defaultDBPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("level.multiplier", 100)
	v.SetDefault("rules.timezone", "UTC")
	v.SetDefault("rules.hot_time_policy", "max")
	v.SetDefault("retention.interval", time.Hour)
	v.SetDefault("retention.default_days", 3)
	v.SetDefault("retention.purge_timeout", 30*time.Second)
	v.SetDefault("retention.purge_rate", 0)
	v.SetDefault("retention.run_on_start", true)
	v.SetDefault("ops.addr", ":9090")
}

// Load reads configuration. An empty path searches for guildkeeper.yaml in the working
// directory and in $HOME/.guildkeeper; a missing file is not an error. A .env file in the
// working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("guildkeeper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".guildkeeper"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DB: DBConfig{Path: v.GetString("db.path")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Level: LevelConfig{Multiplier: v.GetInt64("level.multiplier")},
		Rules: RulesConfig{
			Timezone:      v.GetString("rules.timezone"),
			HotTimePolicy: v.GetString("rules.hot_time_policy"),
		},
		Retention: RetentionConfig{
			Interval:     v.GetDuration("retention.interval"),
			DefaultDays:  v.GetInt("retention.default_days"),
			PurgeTimeout: v.GetDuration("retention.purge_timeout"),
			PurgeRate:    v.GetFloat64("retention.purge_rate"),
			RunOnStart:   v.GetBool("retention.run_on_start"),
		},
		Ops: OpsConfig{Addr: v.GetString("ops.addr")},
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return errors.New("db.path is required")
	}
	if c.Level.Multiplier <= 0 {
		return fmt.Errorf("level.multiplier must be positive, got %d", c.Level.Multiplier)
	}
	if c.Retention.DefaultDays < 0 {
		return fmt.Errorf("retention.default_days must not be negative, got %d", c.Retention.DefaultDays)
	}
	if c.Retention.Interval < time.Second {
		return fmt.Errorf("retention.interval must be at least 1s, got %s", c.Retention.Interval)
	}
	if _, err := time.LoadLocation(c.Rules.Timezone); err != nil {
		return fmt.Errorf("rules.timezone: %w", err)
	}
	return nil
}

// Location returns the default rules time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Rules.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
