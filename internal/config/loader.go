package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g. MOCKFEED_SERVER_PORT
const EnvPrefix = "MOCKFEED"

// DefaultPaths are searched when Load is called without explicit paths
var DefaultPaths = []string{
	"./config.yaml",
	"./configs/config.yaml",
	"/etc/mockfeed/config.yaml",
}

// Loader reads configuration from YAML files and the environment
type Loader struct {
	mu        sync.Mutex
	viper     *viper.Viper
	validator *validator.Validate
	logger    *zap.Logger
	files     []string
}

// NewLoader creates a loader with the built-in defaults registered
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		viper:     viper.New(),
		validator: validator.New(),
		logger:    logger.Named("config"),
	}
	l.setupViper()
	return l
}

func (l *Loader) setupViper() {
	l.viper.SetConfigType("yaml")
	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	setDefaults(l.viper)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:mockfeed.db?cache=shared")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.seed_demo_data", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.quote_channel", "mockfeed.quotes")
	v.SetDefault("redis.bar_channel", "mockfeed.bars")
	v.SetDefault("redis.lifecycle_channel", "mockfeed.lifecycle")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.quote_topic", "mockfeed.quotes")
	v.SetDefault("kafka.bar_topic", "mockfeed.bars")
	v.SetDefault("kafka.lifecycle_topic", "mockfeed.lifecycle")
	v.SetDefault("kafka.batch_timeout", "50ms")

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.write_timeout", "5s")

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("telemetry.pretty_print", false)

	v.SetDefault("mockfeed.auto_start", true)
	v.SetDefault("mockfeed.tick_interval", "750ms")
	v.SetDefault("mockfeed.flush_interval", "100ms")
	v.SetDefault("mockfeed.bar_interval", "60s")
	v.SetDefault("mockfeed.min_price", "1")
	v.SetDefault("mockfeed.max_price", "10000")
	v.SetDefault("mockfeed.default_price", "100")
	v.SetDefault("mockfeed.generator_steps", 1)
	v.SetDefault("mockfeed.guard_window", "60s")
	v.SetDefault("mockfeed.guard_band", 0.05)
	v.SetDefault("mockfeed.default_volatility", 0.01)
	v.SetDefault("mockfeed.calendar_timezone", "UTC")
	v.SetDefault("mockfeed.volatility.exchange", map[string]float64{})
	v.SetDefault("mockfeed.volatility.asset_class", map[string]float64{})
}

// Load merges the given files, or DefaultPaths when none are given, applies
// environment overrides and validates the result. Missing files are skipped.
func (l *Loader) Load(paths ...string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(paths) == 0 {
		paths = DefaultPaths
	}
	l.files = l.files[:0]
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			l.logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}
		l.viper.SetConfigFile(path)
		if err := l.viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		l.files = append(l.files, path)
	}
	if len(l.files) == 0 {
		l.logger.Warn("No configuration files found, using defaults and environment variables")
	} else {
		l.logger.Info("Loaded configuration files", zap.Strings("files", l.files))
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	feed, err := cfg.MockFeed.FeedConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := marketfeeds.ValidatePriceBounds(feed.MinPrice, feed.MaxPrice, feed.DefaultPrice); err != nil {
		l.logger.Error("Inconsistent mock feed price bounds", zap.Error(err))
		return err
	}
	return nil
}

// Watch reloads the configuration whenever a loaded file changes and hands
// the new value to onChange. Invalid reloads are logged and dropped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.files) == 0 {
		l.logger.Debug("No configuration file to watch")
		return
	}
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()

		for _, path := range l.files {
			l.viper.SetConfigFile(path)
			if err := l.viper.MergeInConfig(); err != nil {
				l.logger.Error("Failed to re-read configuration", zap.String("file", path), zap.Error(err))
				return
			}
		}
		cfg, err := l.decode()
		if err != nil {
			l.logger.Error("Reloaded configuration rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		l.logger.Info("Configuration reloaded", zap.String("file", e.Name))
		onChange(cfg)
	})
	l.viper.WatchConfig()
}

// Files returns the configuration files merged by the last Load
func (l *Loader) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.files...)
}
