package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PubSubBackend abstracts pub/sub for Redis and Kafka.
// Use Redis for low latency fan-out, Kafka when consumers need replay.
type PubSubBackend interface {
	Publish(ctx context.Context, channel string, msg interface{}) error
	Subscribe(ctx context.Context, channel string, handler func([]byte)) error
	Close() error
}

// RedisPubSub implements PubSubBackend using Redis channels
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPubSub(opts *redis.Options, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: redis.NewClient(opts), logger: logger.Named("redis-pubsub")}
}

// Ping checks the connection, used at startup
func (r *RedisPubSub) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe delivers payloads to handler until ctx is cancelled
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisPubSub) Close() error {
	return r.client.Close()
}

// MessageWriter is the subset of *kafka.Writer used for publishing
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPubSub implements PubSubBackend using Kafka topics. The channel is
// used as the topic name.
type KafkaPubSub struct {
	writer  MessageWriter
	brokers []string
	groupID string
	logger  *zap.Logger
}

// KafkaOptions configures NewKafkaPubSub
type KafkaOptions struct {
	Brokers      []string
	GroupID      string
	BatchTimeout time.Duration
}

// NewKafkaPubSub publishes asynchronously so a slow broker never holds up the
// caller. Delivery failures surface through the completion callback.
func NewKafkaPubSub(opts KafkaOptions, logger *zap.Logger) *KafkaPubSub {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: opts.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	k := NewKafkaPubSubWithWriter(writer, opts, logger)
	writer.Completion = k.completion
	return k
}

func (k *KafkaPubSub) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.SinkPublishErrors.WithLabelValues("kafka").Add(float64(len(messages)))
	k.logger.Error("Failed to publish messages", zap.Int("count", len(messages)), zap.Error(err))
}

// NewKafkaPubSubWithWriter publishes through w instead of a broker connection
func NewKafkaPubSubWithWriter(w MessageWriter, opts KafkaOptions, logger *zap.Logger) *KafkaPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPubSub{writer: w, brokers: opts.Brokers, groupID: opts.GroupID, logger: logger.Named("kafka-pubsub")}
}

// Publish writes msg as JSON, keyed by its symbol when it carries one
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	m := kafka.Message{Topic: channel, Value: data}
	if keyed, ok := msg.(interface{ Key() string }); ok {
		m.Key = []byte(keyed.Key())
	}
	return k.writer.WriteMessages(ctx, m)
}

func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	if len(k.brokers) == 0 {
		return fmt.Errorf("kafka subscribe %s: no brokers configured", channel)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		Topic:   channel,
		GroupID: k.groupID,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					k.logger.Warn("Kafka read error", zap.String("topic", channel), zap.Error(err))
				}
				return
			}
			handler(m.Value)
		}
	}()
	return nil
}

func (k *KafkaPubSub) Close() error {
	return k.writer.Close()
}
