// Package config loads the mock feed process configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/internal/telemetry"
	"github.com/Aidin1998/pincex_mockfeed/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Config is the root configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       logger.Config   `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	MockFeed  MockFeedConfig  `mapstructure:"mockfeed"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SeedDemoData    bool          `mapstructure:"seed_demo_data"`
}

// RedisConfig configures the Redis pub/sub broadcast sink
type RedisConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Addr             string `mapstructure:"addr"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db" validate:"gte=0"`
	QuoteChannel     string `mapstructure:"quote_channel"`
	BarChannel       string `mapstructure:"bar_channel"`
	LifecycleChannel string `mapstructure:"lifecycle_channel"`

	// Pool and timeout settings
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Options converts the section into go-redis client options
func (r RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		MaxRetries:   r.MaxRetries,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	}
}

// KafkaConfig configures the Kafka broadcast sink and lifecycle publisher
type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	QuoteTopic     string        `mapstructure:"quote_topic"`
	BarTopic       string        `mapstructure:"bar_topic"`
	LifecycleTopic string        `mapstructure:"lifecycle_topic"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
}

// WebSocketConfig configures the subscriber hub
type WebSocketConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SendBuffer   int           `mapstructure:"send_buffer" validate:"min=1"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

// MockFeedConfig holds the engine tunables. Prices are decimal strings.
type MockFeedConfig struct {
	AutoStart         bool             `mapstructure:"auto_start"`
	TickInterval      time.Duration    `mapstructure:"tick_interval" validate:"gt=0"`
	FlushInterval     time.Duration    `mapstructure:"flush_interval" validate:"gt=0"`
	BarInterval       time.Duration    `mapstructure:"bar_interval" validate:"gt=0"`
	MinPrice          string           `mapstructure:"min_price" validate:"required,numeric"`
	MaxPrice          string           `mapstructure:"max_price" validate:"required,numeric"`
	DefaultPrice      string           `mapstructure:"default_price" validate:"required,numeric"`
	GeneratorSteps    int              `mapstructure:"generator_steps" validate:"min=1"`
	GuardWindow       time.Duration    `mapstructure:"guard_window" validate:"gt=0"`
	GuardBand         float64          `mapstructure:"guard_band" validate:"gt=0,lt=1"`
	DefaultVolatility float64          `mapstructure:"default_volatility" validate:"gte=0"`
	CalendarTimezone  string           `mapstructure:"calendar_timezone"`
	Volatility        VolatilityConfig `mapstructure:"volatility"`
}

// VolatilityConfig are the static volatility defaults. Keys are matched
// case-insensitively.
type VolatilityConfig struct {
	Exchange   map[string]float64 `mapstructure:"exchange"`
	AssetClass map[string]float64 `mapstructure:"asset_class"`
}

// Defaults converts the maps into engine defaults
func (v VolatilityConfig) Defaults() marketfeeds.VolatilityDefaults {
	return marketfeeds.VolatilityDefaults{
		Exchange:   upperKeys(v.Exchange),
		AssetClass: upperKeys(v.AssetClass),
	}
}

// FeedConfig converts the section into the engine configuration
func (m MockFeedConfig) FeedConfig() (marketfeeds.Config, error) {
	minPrice, err := decimal.NewFromString(m.MinPrice)
	if err != nil {
		return marketfeeds.Config{}, fmt.Errorf("mockfeed.min_price: %w", err)
	}
	maxPrice, err := decimal.NewFromString(m.MaxPrice)
	if err != nil {
		return marketfeeds.Config{}, fmt.Errorf("mockfeed.max_price: %w", err)
	}
	defaultPrice, err := decimal.NewFromString(m.DefaultPrice)
	if err != nil {
		return marketfeeds.Config{}, fmt.Errorf("mockfeed.default_price: %w", err)
	}
	loc := time.UTC
	if tz := strings.TrimSpace(m.CalendarTimezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return marketfeeds.Config{}, fmt.Errorf("mockfeed.calendar_timezone: %w", err)
		}
	}

	return marketfeeds.Config{
		TickInterval:      m.TickInterval,
		FlushInterval:     m.FlushInterval,
		BarInterval:       m.BarInterval,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		DefaultPrice:      defaultPrice,
		GeneratorSteps:    m.GeneratorSteps,
		DefaultVolatility: m.DefaultVolatility,
		Volatility:        m.Volatility.Defaults(),
		GuardWindow:       m.GuardWindow,
		GuardBand:         m.GuardBand,
		CalendarLocation:  loc,
	}, nil
}

func upperKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}
