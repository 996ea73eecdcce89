package marketfeeds

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeedState is the lifecycle state of the feed or of one exchange
type FeedState string

const (
	FeedStateStopped FeedState = "STOPPED"
	FeedStateRunning FeedState = "RUNNING"
	// FeedStateHoliday is only reported per exchange
	FeedStateHoliday FeedState = "HOLIDAY"
)

// FeedStatus is the read-only view returned by Service.Status
type FeedStatus struct {
	State     FeedState        `json:"state"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	Exchanges []ExchangeStatus `json:"exchanges"`
}

// ExchangeStatus describes one exchange with at least one tracked instrument
type ExchangeStatus struct {
	ExchangeCode      string     `json:"exchange_code"`
	State             FeedState  `json:"state"`
	LastTickAt        *time.Time `json:"last_tick_at,omitempty"`
	TicksPerSecond    float64    `json:"ticks_per_second"`
	ActiveInstruments int        `json:"active_instruments"`
}

// GuardSnapshot is an immutable view of one symbol's volatility guard entry
type GuardSnapshot struct {
	Symbol         string          `json:"symbol"`
	UpSuppressed   bool            `json:"up_suppressed"`
	DownSuppressed bool            `json:"down_suppressed"`
	AnchorPrice    decimal.Decimal `json:"anchor_price"`
	LastUpdated    time.Time       `json:"last_updated"`
}
