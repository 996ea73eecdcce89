package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/pkg/metrics"
	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

// HubOptions configures a Hub
type HubOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
}

// Hub fans quotes and bars out to WebSocket clients. A client whose send
// buffer is full is disconnected rather than slowing the feed.
type Hub struct {
	clients      sync.Map // *Client -> struct{}
	sendBuffer   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

var _ marketfeeds.Broadcaster = (*Hub)(nil)

func NewHub(opts HubOptions, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		sendBuffer:   opts.SendBuffer,
		writeTimeout: opts.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: true,
		},
		logger: logger.Named("ws-hub"),
	}
}

// Client is one WebSocket subscriber
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	connected time.Time

	mu      sync.RWMutex
	symbols map[string]bool // empty means every symbol
	closed  bool            // send is closed; guarded by mu
}

func newClient(conn *websocket.Conn, buffer int, symbols []string) *Client {
	c := &Client{
		conn:      conn,
		send:      make(chan []byte, buffer),
		connected: time.Now(),
		symbols:   make(map[string]bool),
	}
	c.subscribe(symbols)
	return c
}

func (c *Client) subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			c.symbols[s] = true
		}
	}
}

func (c *Client) unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
}

func (c *Client) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// trySend queues data without blocking. ok is false when the buffer is full;
// a closed client reports ok without queueing.
func (c *Client) trySend(data []byte) (ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	n := 0
	h.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) addClient(c *Client) {
	h.clients.Store(c, struct{}{})
	metrics.WSConnections.Inc()
}

func (h *Hub) removeClient(c *Client) {
	if _, loaded := h.clients.LoadAndDelete(c); loaded {
		c.closeSend()
		metrics.WSConnections.Dec()
	}
}

func (h *Hub) BroadcastQuote(_ context.Context, quote models.Quote) {
	h.broadcast(quoteMessage(quote))
}

func (h *Hub) BroadcastBar(_ context.Context, bar models.Bar) {
	h.broadcast(barMessage(bar))
}

func (h *Hub) broadcast(msg MarketDataMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.SinkPublishErrors.WithLabelValues("websocket").Inc()
		h.logger.Error("Failed to encode market data", zap.String("symbol", msg.Symbol), zap.Error(err))
		return
	}
	h.clients.Range(func(key, _ interface{}) bool {
		client := key.(*Client)
		if !client.wants(msg.Symbol) {
			return true
		}
		if !client.trySend(data) {
			h.logger.Warn("Dropping slow WebSocket client", zap.Time("connected", client.connected))
			h.removeClient(client)
		}
		return true
	})
}

// Close disconnects every client
func (h *Hub) Close() {
	h.clients.Range(func(key, _ interface{}) bool {
		h.removeClient(key.(*Client))
		return true
	})
}

// ServeWS upgrades the request. The optional symbols query parameter is a
// comma separated filter; clients may also send {"subscribe": [...]} and
// {"unsubscribe": [...]} frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	client := newClient(conn, h.sendBuffer, symbols)
	h.addClient(client)
	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		h.removeClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string][]string
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		if subs, ok := req["subscribe"]; ok {
			c.subscribe(subs)
		}
		if unsubs, ok := req["unsubscribe"]; ok {
			c.unsubscribe(unsubs)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
