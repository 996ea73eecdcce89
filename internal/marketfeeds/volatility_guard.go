package marketfeeds

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultGuardWindow = 60 * time.Second
	DefaultGuardBand   = 0.05
)

// GuardOptions configures the rolling band detector
type GuardOptions struct {
	// Window is how long a sample stays in the band evaluation
	Window time.Duration
	// Band is the fraction above and below the anchor tolerated, 0.05 for 5%
	Band  float64
	Clock Clock
}

type guardSample struct {
	at    time.Time
	price decimal.Decimal
}

type guardEntry struct {
	mu             sync.Mutex
	anchor         decimal.Decimal
	samples        []guardSample
	upSuppressed   bool
	downSuppressed bool
	lastUpdated    time.Time
}

// VolatilityGuard flags, per symbol, when prices seen within the window
// left the band around the anchor. The flags are advisory.
type VolatilityGuard struct {
	window time.Duration
	band   decimal.Decimal
	clock  Clock

	entries sync.Map // symbol -> *guardEntry
}

// NewVolatilityGuard creates a guard, filling unset options with the defaults
func NewVolatilityGuard(opts GuardOptions) *VolatilityGuard {
	if opts.Window <= 0 {
		opts.Window = DefaultGuardWindow
	}
	if opts.Band <= 0 {
		opts.Band = DefaultGuardBand
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &VolatilityGuard{
		window: opts.Window,
		band:   decimal.NewFromFloat(opts.Band),
		clock:  opts.Clock,
	}
}

// Register records candidate for symbol and re-evaluates its band around anchor
func (g *VolatilityGuard) Register(symbol string, anchor, candidate decimal.Decimal) {
	now := g.clock.Now()
	v, _ := g.entries.LoadOrStore(symbol, &guardEntry{})
	e := v.(*guardEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.anchor = anchor
	e.samples = append(e.samples, guardSample{at: now, price: candidate})
	e.lastUpdated = now
	e.prune(now.Add(-g.window))

	if anchor.IsZero() {
		e.upSuppressed, e.downSuppressed = false, false
		return
	}

	one := decimal.NewFromInt(1)
	upper := anchor.Mul(one.Add(g.band)).Round(pricePlaces)
	lower := anchor.Mul(one.Sub(g.band)).Round(pricePlaces)

	maxPrice, minPrice := e.samples[0].price, e.samples[0].price
	for _, s := range e.samples[1:] {
		maxPrice = decimal.Max(maxPrice, s.price)
		minPrice = decimal.Min(minPrice, s.price)
	}
	e.upSuppressed = maxPrice.GreaterThan(upper)
	e.downSuppressed = minPrice.LessThan(lower)
}

// prune drops samples recorded before cutoff. Samples are kept in time order.
func (e *guardEntry) prune(cutoff time.Time) {
	i := 0
	for i < len(e.samples) && e.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.samples = append(e.samples[:0], e.samples[i:]...)
	}
}

// CanMoveUp reports false while an upward band breach is in the window
func (g *VolatilityGuard) CanMoveUp(symbol string) bool {
	e, ok := g.load(symbol)
	if !ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.upSuppressed
}

// CanMoveDown reports false while a downward band breach is in the window
func (g *VolatilityGuard) CanMoveDown(symbol string) bool {
	e, ok := g.load(symbol)
	if !ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.downSuppressed
}

// Snapshot returns the guard view for symbol, false if it was never registered
func (g *VolatilityGuard) Snapshot(symbol string) (GuardSnapshot, bool) {
	e, ok := g.load(symbol)
	if !ok {
		return GuardSnapshot{}, false
	}
	return e.snapshot(symbol), true
}

// Snapshots returns the view of every registered symbol
func (g *VolatilityGuard) Snapshots() map[string]GuardSnapshot {
	out := make(map[string]GuardSnapshot)
	g.entries.Range(func(k, v any) bool {
		symbol := k.(string)
		out[symbol] = v.(*guardEntry).snapshot(symbol)
		return true
	})
	return out
}

func (g *VolatilityGuard) load(symbol string) (*guardEntry, bool) {
	v, ok := g.entries.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*guardEntry), true
}

func (e *guardEntry) snapshot(symbol string) GuardSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return GuardSnapshot{
		Symbol:         symbol,
		UpSuppressed:   e.upSuppressed,
		DownSuppressed: e.downSuppressed,
		AnchorPrice:    e.anchor,
		LastUpdated:    e.lastUpdated,
	}
}
