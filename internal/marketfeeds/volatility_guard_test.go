package marketfeeds

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(clock Clock) *VolatilityGuard {
	return NewVolatilityGuard(GuardOptions{Window: time.Minute, Band: 0.05, Clock: clock})
}

func TestVolatilityGuard_UnknownSymbolIsPermissive(t *testing.T) {
	guard := newTestGuard(newManualClock(t0))

	assert.True(t, guard.CanMoveUp("INFY"))
	assert.True(t, guard.CanMoveDown("INFY"))
	_, ok := guard.Snapshot("INFY")
	assert.False(t, ok)
	assert.Empty(t, guard.Snapshots())
}

func TestVolatilityGuard_WithinBand(t *testing.T) {
	clock := newManualClock(t0)
	guard := newTestGuard(clock)
	anchor := d("100")

	for _, p := range []string{"100", "104.99", "105", "95", "96.5"} {
		clock.Advance(time.Second)
		guard.Register("INFY", anchor, d(p))
	}

	assert.True(t, guard.CanMoveUp("INFY"))
	assert.True(t, guard.CanMoveDown("INFY"))
}

func TestVolatilityGuard_UpBreachExpiresWithWindow(t *testing.T) {
	clock := newManualClock(t0)
	guard := newTestGuard(clock)
	anchor := d("100")

	guard.Register("INFY", anchor, d("105.01"))
	assert.False(t, guard.CanMoveUp("INFY"))
	assert.True(t, guard.CanMoveDown("INFY"))

	clock.Advance(30 * time.Second)
	guard.Register("INFY", anchor, d("101"))
	assert.False(t, guard.CanMoveUp("INFY"), "breach still inside the window")

	clock.Advance(31 * time.Second)
	guard.Register("INFY", anchor, d("101"))
	assert.True(t, guard.CanMoveUp("INFY"))
}

func TestVolatilityGuard_DownBreach(t *testing.T) {
	clock := newManualClock(t0)
	guard := newTestGuard(clock)

	guard.Register("TCS", d("200"), d("189.99"))
	assert.False(t, guard.CanMoveDown("TCS"))
	assert.True(t, guard.CanMoveUp("TCS"))
}

func TestVolatilityGuard_ZeroAnchorClearsFlags(t *testing.T) {
	clock := newManualClock(t0)
	guard := newTestGuard(clock)

	guard.Register("INFY", d("100"), d("200"))
	require.False(t, guard.CanMoveUp("INFY"))

	guard.Register("INFY", decimal.Zero, d("200"))
	assert.True(t, guard.CanMoveUp("INFY"))
	assert.True(t, guard.CanMoveDown("INFY"))
}

func TestVolatilityGuard_Snapshots(t *testing.T) {
	clock := newManualClock(t0)
	guard := newTestGuard(clock)

	guard.Register("INFY", d("100"), d("110"))
	clock.Advance(time.Second)
	guard.Register("TCS", d("50"), d("50"))

	snap, ok := guard.Snapshot("INFY")
	require.True(t, ok)
	assert.Equal(t, "INFY", snap.Symbol)
	assert.True(t, snap.UpSuppressed)
	assert.False(t, snap.DownSuppressed)
	assert.True(t, snap.AnchorPrice.Equal(d("100")))
	assert.Equal(t, t0, snap.LastUpdated)

	all := guard.Snapshots()
	require.Len(t, all, 2)
	assert.Equal(t, t0.Add(time.Second), all["TCS"].LastUpdated)
	assert.False(t, all["TCS"].UpSuppressed)
}

func TestNewVolatilityGuard_Defaults(t *testing.T) {
	guard := NewVolatilityGuard(GuardOptions{})
	assert.Equal(t, DefaultGuardWindow, guard.window)
	assert.True(t, guard.band.Equal(d("0.05")))
}
