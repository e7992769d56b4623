// Package config loads the runtime configuration of the querydsl tools from
// an optional YAML file and QUERYDSL_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// QUERYDSL_DATABASE_DSN.
const EnvPrefix = "QUERYDSL"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Query    QueryConfig    `mapstructure:"query"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" | "console"
}

type QueryConfig struct {
	// NullOrdering is "first" or "last"; empty keeps the default, nulls
	// first.
	NullOrdering string `mapstructure:"null_ordering"`
	// ContextSize enables the persistence context when positive.
	ContextSize int `mapstructure:"context_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", ":memory:")
	v.SetDefault("database.table_prefix", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("query.null_ordering", string(query.NullHandlingFirst))
	v.SetDefault("query.context_size", 0)
}

// Load reads the configuration. An empty path skips the file; environment
// variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked by their type.
func (c *Config) Validate() error {
	switch query.NullHandling(c.Query.NullOrdering) {
	case query.NullHandlingDefault, query.NullHandlingFirst, query.NullHandlingLast:
	default:
		return fmt.Errorf("invalid query.null_ordering %q: must be first, last or empty", c.Query.NullOrdering)
	}
	if c.Query.ContextSize < 0 {
		return fmt.Errorf("query.context_size cannot be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or console", c.Log.Format)
	}
	return nil
}

// InteractorOptions returns the storage options the configuration selects.
func (c *Config) InteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:   true,
		CreateIndexes: true,
		TablePrefix:   c.Database.TablePrefix,
		NullOrdering:  query.NullHandling(c.Query.NullOrdering),
	}
}

// FactoryOptions returns the query factory options the configuration selects.
func (c *Config) FactoryOptions(logger *zap.Logger) []persistence.Option {
	opts := []persistence.Option{persistence.WithLogger(logger)}
	if c.Query.ContextSize > 0 {
		opts = append(opts, persistence.WithPersistenceContext(c.Query.ContextSize))
	}
	return opts
}

// NewLogger builds a zap logger with ISO8601 timestamps under the
// "timestamp" key.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
