package marketdata

import (
	"context"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/pkg/metrics"
	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"go.uber.org/zap"
)

// PubSubBroadcaster publishes quotes and bars to a PubSubBackend
type PubSubBroadcaster struct {
	backend      PubSubBackend
	name         string
	quoteChannel string
	barChannel   string
	logger       *zap.Logger
}

var _ marketfeeds.Broadcaster = (*PubSubBroadcaster)(nil)

// NewPubSubBroadcaster names the sink for metrics and logs, e.g. "redis"
func NewPubSubBroadcaster(name string, backend PubSubBackend, quoteChannel, barChannel string, logger *zap.Logger) *PubSubBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubBroadcaster{
		backend:      backend,
		name:         name,
		quoteChannel: quoteChannel,
		barChannel:   barChannel,
		logger:       logger.Named(name + "-broadcaster"),
	}
}

func (b *PubSubBroadcaster) BroadcastQuote(ctx context.Context, quote models.Quote) {
	b.publish(ctx, b.quoteChannel, quoteMessage(quote))
}

func (b *PubSubBroadcaster) BroadcastBar(ctx context.Context, bar models.Bar) {
	b.publish(ctx, b.barChannel, barMessage(bar))
}

func (b *PubSubBroadcaster) publish(ctx context.Context, channel string, msg MarketDataMessage) {
	if err := b.backend.Publish(ctx, channel, msg); err != nil {
		metrics.SinkPublishErrors.WithLabelValues(b.name).Inc()
		b.logger.Warn("Failed to publish market data",
			zap.String("channel", channel),
			zap.String("type", msg.Type),
			zap.String("symbol", msg.Symbol),
			zap.Error(err))
	}
}

// Close closes the backend
func (b *PubSubBroadcaster) Close() error {
	return b.backend.Close()
}

// Fanout hands every snapshot to each broadcaster in order
type Fanout []marketfeeds.Broadcaster

func (f Fanout) BroadcastQuote(ctx context.Context, quote models.Quote) {
	for _, b := range f {
		b.BroadcastQuote(ctx, quote)
	}
}

func (f Fanout) BroadcastBar(ctx context.Context, bar models.Bar) {
	for _, b := range f {
		b.BroadcastBar(ctx, bar)
	}
}
