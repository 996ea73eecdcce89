// Package messaging publishes mock feed lifecycle events
package messaging

import (
	"context"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketdata"
	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultSource identifies this service in published messages
const DefaultSource = "mockfeed"

// LifecyclePublisher writes FeedLifecycleMessage values to a pub/sub topic.
// With Kafka the message key is the event type.
type LifecyclePublisher struct {
	backend marketdata.PubSubBackend
	topic   string
	source  string
	logger  *zap.Logger
}

var _ marketfeeds.LifecycleListener = (*LifecyclePublisher)(nil)

func NewLifecyclePublisher(backend marketdata.PubSubBackend, topic string, logger *zap.Logger) *LifecyclePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecyclePublisher{
		backend: backend,
		topic:   topic,
		source:  DefaultSource,
		logger:  logger.Named("lifecycle-publisher"),
	}
}

func (p *LifecyclePublisher) FeedStarted(ctx context.Context, event marketfeeds.FeedStartedEvent) {
	p.publish(ctx, startedMessage(p.source, event))
}

func (p *LifecyclePublisher) FeedStopped(ctx context.Context, event marketfeeds.FeedStoppedEvent) {
	p.publish(ctx, stoppedMessage(p.source, event))
}

func (p *LifecyclePublisher) publish(ctx context.Context, msg FeedLifecycleMessage) {
	if err := p.backend.Publish(ctx, p.topic, msg); err != nil {
		metrics.SinkPublishErrors.WithLabelValues("lifecycle").Inc()
		p.logger.Error("Failed to publish lifecycle event",
			zap.String("topic", p.topic),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
		return
	}
	p.logger.Debug("Published lifecycle event",
		zap.String("event_id", msg.EventID),
		zap.String("type", string(msg.Type)))
}

// Close closes the backend
func (p *LifecyclePublisher) Close() error {
	return p.backend.Close()
}

// LogListener logs lifecycle events
type LogListener struct {
	logger *zap.Logger
}

func NewLogListener(logger *zap.Logger) *LogListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogListener{logger: logger.Named("lifecycle")}
}

func (l *LogListener) FeedStarted(_ context.Context, e marketfeeds.FeedStartedEvent) {
	l.logger.Info("Mock feed started",
		zap.Strings("exchanges", e.Exchanges),
		zap.String("trigger", string(e.Trigger)),
		zap.Time("timestamp", e.Timestamp))
}

func (l *LogListener) FeedStopped(_ context.Context, e marketfeeds.FeedStoppedEvent) {
	l.logger.Info("Mock feed stopped",
		zap.Strings("exchanges", e.Exchanges),
		zap.String("trigger", string(e.Trigger)),
		zap.String("cause", e.Cause),
		zap.Time("timestamp", e.Timestamp))
}

// Listeners notifies each listener in order
type Listeners []marketfeeds.LifecycleListener

func (ls Listeners) FeedStarted(ctx context.Context, e marketfeeds.FeedStartedEvent) {
	for _, l := range ls {
		l.FeedStarted(ctx, e)
	}
}

func (ls Listeners) FeedStopped(ctx context.Context, e marketfeeds.FeedStoppedEvent) {
	for _, l := range ls {
		l.FeedStopped(ctx, e)
	}
}
