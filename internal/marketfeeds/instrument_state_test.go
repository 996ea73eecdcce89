package marketfeeds

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 15, 42, 0, time.UTC)

func TestInstrumentState_TickInvariants(t *testing.T) {
	clock := newManualClock(t0)
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), clock)

	prices := []string{"101.5", "99.25", "104", "97.1", "100"}
	var lastVolume int64
	for _, p := range prices {
		clock.Advance(time.Second)
		state.UpdateWithTick(d(p), 10)

		low, high, last := state.SessionLow(), state.SessionHigh(), state.LastPrice()
		assert.True(t, low.LessThanOrEqual(last))
		assert.True(t, last.LessThanOrEqual(high))
		assert.True(t, low.LessThanOrEqual(state.SessionOpen()))
		assert.True(t, state.SessionOpen().LessThanOrEqual(high))
		assert.GreaterOrEqual(t, state.CumulativeVolume(), lastVolume)
		lastVolume = state.CumulativeVolume()
	}

	assert.True(t, state.SessionHigh().Equal(d("104")))
	assert.True(t, state.SessionLow().Equal(d("97.1")))
	assert.Equal(t, int64(50), state.CumulativeVolume())
	assert.Equal(t, t0.Add(5*time.Second), state.LastUpdated())
}

func TestInstrumentState_IgnoresNonPositiveVolume(t *testing.T) {
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), newManualClock(t0))
	state.UpdateWithTick(d("100"), 25)
	state.UpdateWithTick(d("100"), 0)
	state.UpdateWithTick(d("100"), -40)
	assert.Equal(t, int64(25), state.CumulativeVolume())
}

func TestInstrumentState_LastUpdatedNeverMovesBack(t *testing.T) {
	clock := newManualClock(t0)
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), clock)

	clock.Advance(10 * time.Second)
	state.UpdateWithTick(d("101"), 1)
	clock.Set(t0)
	state.UpdateWithTick(d("102"), 1)

	assert.Equal(t, t0.Add(10*time.Second), state.LastUpdated())
	assert.True(t, state.LastPrice().Equal(d("102")))
}

func TestInstrumentState_Change(t *testing.T) {
	state := NewInstrumentState("INFY", "NSE", 0.02, d("200"), newManualClock(t0))
	state.UpdateWithTick(d("211.11"), 1)

	assert.Equal(t, "11.11", state.Change().StringFixed(2))
	// 11.11 / 200 * 100 = 5.555
	assert.Equal(t, "5.56", state.ChangePercent().StringFixed(2))
}

func TestInstrumentState_ChangePercentZeroOpen(t *testing.T) {
	state := NewInstrumentState("ZERO", "NSE", 0.02, decimal.Zero, newManualClock(t0))
	state.UpdateWithTick(d("12.5"), 1)

	require.NotPanics(t, func() { state.ChangePercent() })
	assert.Equal(t, "0.00", state.ChangePercent().StringFixed(2))
	assert.Equal(t, "12.50", state.Change().StringFixed(2))
}

func TestInstrumentState_MinuteBucket(t *testing.T) {
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), newManualClock(t0))
	assert.Equal(t, time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC), state.LastUpdatedMinuteBucket())
}

func TestInstrumentState_Quote(t *testing.T) {
	clock := newManualClock(t0)
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), clock)
	clock.Advance(time.Second)
	state.UpdateWithTick(d("95"), 7)

	q := state.Quote()
	assert.Equal(t, "INFY", q.Symbol)
	assert.Equal(t, "NSE", q.ExchangeCode)
	assert.True(t, q.LastPrice.Equal(d("95")))
	assert.True(t, q.Open.Equal(d("100")))
	assert.True(t, q.High.Equal(d("100")))
	assert.True(t, q.Low.Equal(d("95")))
	assert.Equal(t, "-5.00", q.Change.StringFixed(2))
	assert.Equal(t, "-5.00", q.ChangePercent.StringFixed(2))
	assert.Equal(t, int64(7), q.Volume)
	assert.Equal(t, t0.Add(time.Second), q.Timestamp)
}

func TestInstrumentState_NegativeVolatilityClamped(t *testing.T) {
	state := NewInstrumentState("INFY", "NSE", -1, d("100"), nil)
	assert.Zero(t, state.Volatility())
}

func TestInstrumentState_ConcurrentReaders(t *testing.T) {
	state := NewInstrumentState("INFY", "NSE", 0.02, d("100"), SystemClock())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			state.UpdateWithTick(decimal.NewFromInt(int64(90+i%20)), 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			q := state.Quote()
			assert.True(t, q.Low.LessThanOrEqual(q.LastPrice))
			assert.True(t, q.LastPrice.LessThanOrEqual(q.High))
		}
	}()
	wg.Wait()
	assert.Equal(t, int64(500), state.CumulativeVolume())
}
