package marketfeeds

import (
	"sync"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/shopspring/decimal"
)

// InstrumentState is the live session aggregate for one symbol.
// Every read of a mutable field takes the same lock as UpdateWithTick.
type InstrumentState struct {
	symbol       string
	exchangeCode string
	volatility   float64
	sessionOpen  decimal.Decimal
	clock        Clock

	mu               sync.Mutex
	sessionHigh      decimal.Decimal
	sessionLow       decimal.Decimal
	lastPrice        decimal.Decimal
	cumulativeVolume int64
	lastUpdated      time.Time
}

// NewInstrumentState opens a session at open. A negative volatility is treated as zero.
func NewInstrumentState(symbol, exchangeCode string, volatility float64, open decimal.Decimal, clock Clock) *InstrumentState {
	if clock == nil {
		clock = SystemClock()
	}
	if volatility < 0 {
		volatility = 0
	}
	return &InstrumentState{
		symbol:       symbol,
		exchangeCode: exchangeCode,
		volatility:   volatility,
		sessionOpen:  open,
		clock:        clock,
		sessionHigh:  open,
		sessionLow:   open,
		lastPrice:    open,
		lastUpdated:  clock.Now(),
	}
}

// Symbol returns the normalised instrument symbol
func (s *InstrumentState) Symbol() string { return s.symbol }

// ExchangeCode returns the exchange the instrument trades on
func (s *InstrumentState) ExchangeCode() string { return s.exchangeCode }

// Volatility returns the per-step volatility fixed at construction
func (s *InstrumentState) Volatility() float64 { return s.volatility }

// SessionOpen returns the opening price of the session. It never changes.
func (s *InstrumentState) SessionOpen() decimal.Decimal { return s.sessionOpen }

// UpdateWithTick applies a new price and a volume increment. Non-positive
// volume deltas leave the cumulative volume unchanged.
func (s *InstrumentState) UpdateWithTick(price decimal.Decimal, volumeDelta int64) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPrice = price
	if price.GreaterThan(s.sessionHigh) {
		s.sessionHigh = price
	}
	if price.LessThan(s.sessionLow) {
		s.sessionLow = price
	}
	if volumeDelta > 0 {
		s.cumulativeVolume += volumeDelta
	}
	if now.After(s.lastUpdated) {
		s.lastUpdated = now
	}
}

// SessionHigh returns the highest price seen this session
func (s *InstrumentState) SessionHigh() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionHigh
}

// SessionLow returns the lowest price seen this session
func (s *InstrumentState) SessionLow() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLow
}

// LastPrice returns the most recent tick price, open before the first tick
func (s *InstrumentState) LastPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice
}

// CumulativeVolume returns the volume traded this session
func (s *InstrumentState) CumulativeVolume() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cumulativeVolume
}

// LastUpdated returns the time of the latest tick. It never moves backwards.
func (s *InstrumentState) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Change returns last minus open, rounded half-up to 2 places
func (s *InstrumentState) Change() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeLocked()
}

// ChangePercent returns the change relative to open in percent, 2 places.
// It is 0.00 when the session opened at zero.
func (s *InstrumentState) ChangePercent() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changePercentLocked()
}

// LastUpdatedMinuteBucket returns the last update time truncated to its minute
func (s *InstrumentState) LastUpdatedMinuteBucket() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated.Truncate(time.Minute)
}

// Quote returns a consistent snapshot of the session
func (s *InstrumentState) Quote() models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Quote{
		Symbol:        s.symbol,
		ExchangeCode:  s.exchangeCode,
		LastPrice:     s.lastPrice,
		Open:          s.sessionOpen,
		High:          s.sessionHigh,
		Low:           s.sessionLow,
		Change:        s.changeLocked(),
		ChangePercent: s.changePercentLocked(),
		Volume:        s.cumulativeVolume,
		Timestamp:     s.lastUpdated,
	}
}

func (s *InstrumentState) bar() models.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Bar{
		Symbol:       s.symbol,
		ExchangeCode: s.exchangeCode,
		Open:         s.sessionOpen,
		High:         s.sessionHigh,
		Low:          s.sessionLow,
		Close:        s.lastPrice,
		Volume:       s.cumulativeVolume,
		Timestamp:    s.lastUpdated.Truncate(time.Minute),
	}
}

func (s *InstrumentState) changeLocked() decimal.Decimal {
	return s.lastPrice.Sub(s.sessionOpen).Round(pricePlaces)
}

func (s *InstrumentState) changePercentLocked() decimal.Decimal {
	if s.sessionOpen.IsZero() {
		return decimal.Zero.Round(pricePlaces)
	}
	return s.changeLocked().Div(s.sessionOpen).Mul(hundred).Round(pricePlaces)
}
