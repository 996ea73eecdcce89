package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(zaptest.NewLogger(t)).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.MockFeed.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.MockFeed.FlushInterval)
	assert.Equal(t, time.Minute, cfg.MockFeed.BarInterval)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	feed, err := cfg.MockFeed.FeedConfig()
	require.NoError(t, err)
	assert.Equal(t, "100", feed.DefaultPrice.String())
	assert.Equal(t, time.UTC, feed.CalendarLocation)
	assert.Equal(t, 0.05, feed.GuardBand)
}

func TestLoad_FileAndVolatilityMaps(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
mockfeed:
  tick_interval: 250ms
  default_price: "250.50"
  calendar_timezone: Asia/Kolkata
  volatility:
    exchange:
      NSE: 0.05
    asset_class:
      DERIVATIVE: 0.08
      ALL: 0.03
`)
	loader := NewLoader(zaptest.NewLogger(t))
	cfg, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, loader.Files())

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.MockFeed.TickInterval)

	feed, err := cfg.MockFeed.FeedConfig()
	require.NoError(t, err)
	assert.Equal(t, "250.5", feed.DefaultPrice.String())
	assert.Equal(t, "Asia/Kolkata", feed.CalendarLocation.String())
	assert.Equal(t, 0.05, feed.Volatility.Exchange["NSE"])
	assert.Equal(t, 0.08, feed.Volatility.AssetClass["DERIVATIVE"])
	assert.Equal(t, 0.03, feed.Volatility.AssetClass["ALL"])
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("MOCKFEED_SERVER_PORT", "9191")
	t.Setenv("MOCKFEED_MOCKFEED_AUTO_START", "false")

	cfg, err := NewLoader(zaptest.NewLogger(t)).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.False(t, cfg.MockFeed.AutoStart)
}

func TestLoad_InconsistentPriceBounds(t *testing.T) {
	path := writeConfig(t, `
mockfeed:
  min_price: "100"
  max_price: "50"
`)
	_, err := NewLoader(zaptest.NewLogger(t)).Load(path)
	assert.ErrorIs(t, err, marketfeeds.ErrInvalidConfiguration)

	path = writeConfig(t, `
mockfeed:
  default_price: "20000"
`)
	_, err = NewLoader(zaptest.NewLogger(t)).Load(path)
	assert.ErrorIs(t, err, marketfeeds.ErrInvalidConfiguration)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := map[string]string{
		"bad driver":    "database:\n  driver: oracle\n",
		"bad band":      "mockfeed:\n  guard_band: 1.5\n",
		"zero steps":    "mockfeed:\n  generator_steps: 0\n",
		"bad price":     "mockfeed:\n  min_price: abc\n",
		"bad timezone":  "mockfeed:\n  calendar_timezone: Mars/Olympus\n",
		"redis no addr": "redis:\n  enabled: true\n  addr: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader(zaptest.NewLogger(t)).Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestRedisOptions(t *testing.T) {
	cfg, err := NewLoader(zaptest.NewLogger(t)).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	opts := cfg.Redis.Options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{Host: "127.0.0.1", Port: 8080}.Addr())
}

func TestWatch_ReloadsVolatilityDefaults(t *testing.T) {
	path := writeConfig(t, "mockfeed:\n  volatility:\n    exchange:\n      NSE: 0.05\n")
	// the watcher outlives the test, so it must not log through t
	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 16)
	loader.Watch(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("mockfeed:\n  volatility:\n    exchange:\n      NSE: 0.07\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.MockFeed.Volatility.Defaults().Exchange["NSE"] == 0.07 {
				return
			}
		case <-deadline:
			t.Fatal("configuration was not reloaded")
		}
	}
}
