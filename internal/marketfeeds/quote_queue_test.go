package marketfeeds

import (
	"testing"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteQueue_KeepsLastPerSymbol(t *testing.T) {
	var q quoteQueue
	q.enqueue(models.Quote{Symbol: "INFY", LastPrice: d("100"), Timestamp: t0})
	q.enqueue(models.Quote{Symbol: "TCS", LastPrice: d("50"), Timestamp: t0})
	q.enqueue(models.Quote{Symbol: "INFY", LastPrice: d("101"), Timestamp: t0.Add(time.Second)})
	q.enqueue(models.Quote{Symbol: "INFY", LastPrice: d("102"), Timestamp: t0.Add(2 * time.Second)})

	quotes, raw := q.drain()
	assert.Equal(t, 4, raw)
	require.Len(t, quotes, 2)
	assert.Equal(t, "INFY", quotes[0].Symbol)
	assert.True(t, quotes[0].LastPrice.Equal(d("102")))
	assert.Equal(t, t0.Add(2*time.Second), quotes[0].Timestamp)
	assert.Equal(t, "TCS", quotes[1].Symbol)

	quotes, raw = q.drain()
	assert.Empty(t, quotes)
	assert.Zero(t, raw)
}

func TestExchangeMetrics_TicksPerSecond(t *testing.T) {
	var m exchangeMetrics
	for i := 0; i < 10; i++ {
		m.recordTick(t0.Add(time.Duration(i) * 500 * time.Millisecond))
	}

	last, tps := m.snapshot(t0.Add(4500 * time.Millisecond))
	assert.Equal(t, t0.Add(4500*time.Millisecond), last)
	assert.Equal(t, 2.0, tps)

	// only the ticks at 4.0s and 4.5s remain 5s later
	_, tps = m.snapshot(t0.Add(9 * time.Second))
	assert.InDelta(t, 0.4, tps, 1e-9)
}
