package marketfeeds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{now: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// scriptedRandom replays normals in a loop and always draws the same integer
type scriptedRandom struct {
	mu      sync.Mutex
	normals []float64
	next    int
	intn    int
}

func (r *scriptedRandom) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.normals) == 0 {
		return 0
	}
	v := r.normals[r.next%len(r.normals)]
	r.next++
	return v
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intn % n
}

type fakeCatalog struct {
	instruments []models.Instrument
	err         error
}

func (c *fakeCatalog) FindAllInstruments(context.Context) ([]models.Instrument, error) {
	return c.instruments, c.err
}

type fakeCalendar struct {
	mu     sync.Mutex
	closed map[string]bool
	err    error
	calls  int
	days   []time.Time
}

func (c *fakeCalendar) IsExchangeClosed(_ context.Context, code string, day time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.days = append(c.days, day)
	if c.err != nil {
		return false, c.err
	}
	return c.closed[code], nil
}

func (c *fakeCalendar) setClosed(code string, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = make(map[string]bool)
	}
	c.closed[code] = closed
}

func (c *fakeCalendar) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type fakeOverrides struct {
	rows []models.VolatilityOverride
	err  error
}

func (o *fakeOverrides) ListVolatilityOverrides(context.Context) ([]models.VolatilityOverride, error) {
	return o.rows, o.err
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	quotes     []models.Quote
	bars       []models.Bar
	panicQuote bool

	// gate, when set, holds every quote until it is closed
	gate      chan struct{}
	active    int
	maxActive int
}

func (b *recordingBroadcaster) BroadcastQuote(_ context.Context, q models.Quote) {
	if b.gate != nil {
		b.mu.Lock()
		b.active++
		if b.active > b.maxActive {
			b.maxActive = b.active
		}
		b.mu.Unlock()
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		b.active--
	}
	if b.panicQuote {
		b.panicQuote = false
		panic("sink exploded")
	}
	b.quotes = append(b.quotes, q)
}

func (b *recordingBroadcaster) BroadcastBar(_ context.Context, bar models.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars = append(b.bars, bar)
}

func (b *recordingBroadcaster) quoteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.quotes)
}

func (b *recordingBroadcaster) barCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bars)
}

// inFlight reports how many quotes are held at the gate
func (b *recordingBroadcaster) inFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *recordingBroadcaster) peakConcurrency() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxActive
}

func (b *recordingBroadcaster) quotesSnapshot() []models.Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Quote(nil), b.quotes...)
}

type recordingListener struct {
	mu      sync.Mutex
	started []FeedStartedEvent
	stopped []FeedStoppedEvent
}

func (l *recordingListener) FeedStarted(_ context.Context, e FeedStartedEvent) {
	l.mu.Lock()
	l.started = append(l.started, e)
	l.mu.Unlock()
}

func (l *recordingListener) FeedStopped(_ context.Context, e FeedStoppedEvent) {
	l.mu.Lock()
	l.stopped = append(l.stopped, e)
	l.mu.Unlock()
}

var errStoreDown = errors.New("store down")

func instrument(symbol, exchange, assetClass, status string) models.Instrument {
	return models.Instrument{Symbol: symbol, ExchangeCode: exchange, AssetClass: assetClass, Status: status}
}
