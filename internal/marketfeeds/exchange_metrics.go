package marketfeeds

import (
	"sync"
	"time"
)

const tickRateWindow = 5 * time.Second

// exchangeMetrics tracks recent tick timestamps for one exchange
type exchangeMetrics struct {
	mu       sync.Mutex
	ticks    []time.Time
	lastTick time.Time
}

func (m *exchangeMetrics) recordTick(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = append(m.ticks, at)
	if at.After(m.lastTick) {
		m.lastTick = at
	}
	m.pruneLocked(at)
}

// snapshot returns the last tick time and ticks per second over the trailing window
func (m *exchangeMetrics) snapshot(now time.Time) (time.Time, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	return m.lastTick, float64(len(m.ticks)) / tickRateWindow.Seconds()
}

func (m *exchangeMetrics) pruneLocked(now time.Time) {
	cutoff := now.Add(-tickRateWindow)
	i := 0
	for i < len(m.ticks) && m.ticks[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.ticks = append(m.ticks[:0], m.ticks[i:]...)
	}
}
