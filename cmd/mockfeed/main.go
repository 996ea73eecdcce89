package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/Aidin1998/pincex_mockfeed/api"
	"github.com/Aidin1998/pincex_mockfeed/internal/config"
	"github.com/Aidin1998/pincex_mockfeed/internal/database"
	"github.com/Aidin1998/pincex_mockfeed/internal/marketdata"
	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/internal/messaging"
	"github.com/Aidin1998/pincex_mockfeed/internal/telemetry"
	"github.com/Aidin1998/pincex_mockfeed/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Bootstrap logger until the configured one exists
	bootLogger, err := logger.NewLogger("info")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	loader := config.NewLoader(bootLogger)
	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := loader.Load(paths...)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		zapLogger.Fatal("Failed to set up telemetry", zap.Error(err))
	}

	db, err := database.Open(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	if cfg.Database.SeedDemoData {
		if err := database.SeedDemoData(ctx, db); err != nil {
			zapLogger.Fatal("Failed to seed demo data", zap.Error(err))
		}
	}

	// Broadcast sinks
	var (
		sinks   marketdata.Fanout
		closers []io.Closer
		hub     *marketdata.Hub
	)
	listeners := messaging.Listeners{messaging.NewLogListener(zapLogger)}

	if cfg.WebSocket.Enabled {
		hub = marketdata.NewHub(marketdata.HubOptions{
			SendBuffer:   cfg.WebSocket.SendBuffer,
			WriteTimeout: cfg.WebSocket.WriteTimeout,
		}, zapLogger)
		sinks = append(sinks, hub)
	}

	if cfg.Redis.Enabled {
		redisPubSub := marketdata.NewRedisPubSub(cfg.Redis.Options(), zapLogger)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisPubSub.Ping(pingCtx); err != nil {
			zapLogger.Warn("Redis is unreachable, publishes will fail until it recovers", zap.Error(err))
		}
		cancel()
		sinks = append(sinks, marketdata.NewPubSubBroadcaster("redis", redisPubSub, cfg.Redis.QuoteChannel, cfg.Redis.BarChannel, zapLogger))
		if cfg.Redis.LifecycleChannel != "" {
			listeners = append(listeners, messaging.NewLifecyclePublisher(redisPubSub, cfg.Redis.LifecycleChannel, zapLogger))
		}
		closers = append(closers, redisPubSub)
	}

	if cfg.Kafka.Enabled {
		kafkaPubSub := marketdata.NewKafkaPubSub(marketdata.KafkaOptions{
			Brokers:      cfg.Kafka.Brokers,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, zapLogger)
		sinks = append(sinks, marketdata.NewPubSubBroadcaster("kafka", kafkaPubSub, cfg.Kafka.QuoteTopic, cfg.Kafka.BarTopic, zapLogger))
		if cfg.Kafka.LifecycleTopic != "" {
			listeners = append(listeners, messaging.NewLifecyclePublisher(kafkaPubSub, cfg.Kafka.LifecycleTopic, zapLogger))
		}
		closers = append(closers, kafkaPubSub)
	}

	if len(sinks) == 0 {
		zapLogger.Warn("No broadcast sink enabled, quotes and bars will be discarded")
	}

	feedCfg, err := cfg.MockFeed.FeedConfig()
	if err != nil {
		zapLogger.Fatal("Invalid mock feed configuration", zap.Error(err))
	}
	feed, err := marketfeeds.NewService(feedCfg, marketfeeds.Dependencies{
		Catalog:     database.NewInstrumentRepository(db),
		Calendar:    database.NewCalendarRepository(db),
		Overrides:   database.NewVolatilityOverrideRepository(db),
		Broadcaster: sinks,
		Listener:    listeners,
	}, zapLogger)
	if err != nil {
		if errors.Is(err, marketfeeds.ErrInvalidConfiguration) {
			zapLogger.Fatal("Mock feed configuration is inconsistent", zap.Error(err))
		}
		zapLogger.Fatal("Failed to create mock feed service", zap.Error(err))
	}

	// Volatility defaults apply on the next start
	loader.Watch(func(updated *config.Config) {
		feed.SetVolatilityDefaults(updated.MockFeed.Volatility.Defaults())
	})

	opts := api.Options{CORSOrigins: cfg.Server.CORSOrigins}
	if hub != nil {
		opts.MarketData = http.HandlerFunc(hub.ServeWS)
	}
	apiServer := api.NewServer(zapLogger, feed, opts)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	if cfg.MockFeed.AutoStart {
		if err := feed.Start(ctx, marketfeeds.TriggerStartup); err != nil {
			zapLogger.Error("Failed to auto-start mock feed", zap.Error(err))
		}
	}

	// Wait for interrupt to shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("Shutting down server...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	feed.Stop(shutdownCtx, marketfeeds.TriggerShutdown, "received "+sig.String())
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	if hub != nil {
		hub.Close()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			zapLogger.Error("Failed to close sink", zap.Error(err))
		}
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush telemetry", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
