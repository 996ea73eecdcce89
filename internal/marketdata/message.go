// Package marketdata delivers mock feed quotes and bars to subscribers over
// pub/sub backends and WebSocket connections
package marketdata

import (
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
)

// Message types carried in MarketDataMessage.Type
const (
	MsgQuote = "quote"
	MsgBar   = "bar"
)

// MarketDataMessage is the envelope sent to every sink
type MarketDataMessage struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Key partitions messages by symbol
func (m MarketDataMessage) Key() string { return m.Symbol }

func quoteMessage(q models.Quote) MarketDataMessage {
	return MarketDataMessage{Type: MsgQuote, Symbol: q.Symbol, Data: q, Timestamp: q.Timestamp}
}

func barMessage(b models.Bar) MarketDataMessage {
	return MarketDataMessage{Type: MsgBar, Symbol: b.Symbol, Data: b, Timestamp: b.Timestamp}
}
