package marketfeeds

import (
	"context"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
)

// InstrumentCatalog lists the instruments known to the platform
type InstrumentCatalog interface {
	FindAllInstruments(ctx context.Context) ([]models.Instrument, error)
}

// TradingCalendar reports exchange closures
type TradingCalendar interface {
	IsExchangeClosed(ctx context.Context, exchangeCode string, date time.Time) (bool, error)
}

// VolatilityOverrideSource provides the stored volatility override table
type VolatilityOverrideSource interface {
	ListVolatilityOverrides(ctx context.Context) ([]models.VolatilityOverride, error)
}

// Broadcaster delivers snapshots to subscribers. Delivery failures are the
// broadcaster's concern and are never reported back to the feed.
type Broadcaster interface {
	BroadcastQuote(ctx context.Context, quote models.Quote)
	BroadcastBar(ctx context.Context, bar models.Bar)
}

// LifecycleListener is notified when the feed starts or stops
type LifecycleListener interface {
	FeedStarted(ctx context.Context, event FeedStartedEvent)
	FeedStopped(ctx context.Context, event FeedStoppedEvent)
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// RandomSource is the subset of *math/rand.Rand used by the feed
type RandomSource interface {
	NormFloat64() float64
	Intn(n int) int
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now
func SystemClock() Clock { return systemClock{} }

type noopLifecycleListener struct{}

func (noopLifecycleListener) FeedStarted(context.Context, FeedStartedEvent) {}
func (noopLifecycleListener) FeedStopped(context.Context, FeedStoppedEvent) {}
