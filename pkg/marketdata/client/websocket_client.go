// Package client is a WebSocket client SDK for the mock feed market data hub
// with auto-reconnect
package client

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketdata"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// subscriptionFrame matches what the hub's read pump accepts
type subscriptionFrame struct {
	Subscribe   []string `json:"subscribe,omitempty"`
	Unsubscribe []string `json:"unsubscribe,omitempty"`
}

// WSClient is a WebSocket client with auto-reconnect. Subscriptions are
// replayed after every reconnect.
type WSClient struct {
	url               string
	reconnectInterval time.Duration
	logger            *zap.Logger

	connMu sync.RWMutex
	conn   *websocket.Conn

	subsMu        sync.Mutex
	subscriptions map[string]bool

	recvCh    chan marketdata.MarketDataMessage
	quitCh    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSClient creates a new WSClient connecting to the given URL
func NewWSClient(rawURL string, reconnectInterval time.Duration, logger *zap.Logger) (*WSClient, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &WSClient{
		url:               rawURL,
		reconnectInterval: reconnectInterval,
		logger:            logger.Named("ws-client"),
		subscriptions:     make(map[string]bool),
		recvCh:            make(chan marketdata.MarketDataMessage, 1000),
		quitCh:            make(chan struct{}),
		done:              make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// run manages connection and reconnection
func (c *WSClient) run() {
	defer close(c.done)
	defer close(c.recvCh)
	for {
		select {
		case <-c.quitCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.logger.Debug("Dial failed, retrying", zap.Duration("in", c.reconnectInterval), zap.Error(err))
			select {
			case <-c.quitCh:
				return
			case <-time.After(c.reconnectInterval):
			}
			continue
		}
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		if symbols := c.subscribed(); len(symbols) > 0 {
			c.connMu.RLock()
			err = conn.WriteJSON(subscriptionFrame{Subscribe: symbols})
			c.connMu.RUnlock()
			if err != nil {
				c.logger.Warn("Failed to replay subscriptions", zap.Error(err))
			}
		}

		c.readLoop(conn)

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
	}
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var msg marketdata.MarketDataMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.recvCh <- msg:
		case <-c.quitCh:
			return
		default:
			// drop when the consumer is behind
		}
	}
}

func (c *WSClient) subscribed() []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]string, 0, len(c.subscriptions))
	for sym := range c.subscriptions {
		out = append(out, sym)
	}
	return out
}

// Subscribe adds symbols to the client's filter. With no subscriptions the
// hub sends every symbol.
func (c *WSClient) Subscribe(symbols ...string) error {
	return c.update(subscriptionFrame{Subscribe: c.track(symbols, true)})
}

// Unsubscribe removes symbols from the client's filter
func (c *WSClient) Unsubscribe(symbols ...string) error {
	return c.update(subscriptionFrame{Unsubscribe: c.track(symbols, false)})
}

func (c *WSClient) track(symbols []string, add bool) []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if add {
			c.subscriptions[s] = true
		} else {
			delete(c.subscriptions, s)
		}
		normalized = append(normalized, s)
	}
	return normalized
}

// update sends frame on the live connection, if any. It is replayed on
// reconnect either way.
func (c *WSClient) update(frame subscriptionFrame) error {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn != nil {
		return c.conn.WriteJSON(frame)
	}
	return nil
}

// Next returns the next message, blocking. ok is false once the client is closed.
func (c *WSClient) Next() (marketdata.MarketDataMessage, bool) {
	msg, ok := <-c.recvCh
	return msg, ok
}

// Messages exposes the receive channel for select loops
func (c *WSClient) Messages() <-chan marketdata.MarketDataMessage {
	return c.recvCh
}

// Close shuts down the client and waits for the connection loop to exit
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.quitCh)
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	<-c.done
}
