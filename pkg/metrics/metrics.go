package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TicksGenerated counts simulated ticks by exchange
var TicksGenerated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mockfeed_ticks_total",
		Help: "Total number of simulated ticks applied to instrument state",
	},
	[]string{"exchange"},
)

// Broadcast volume after batching
var (
	QuotesBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mockfeed_quotes_broadcast_total",
			Help: "Total number of quotes handed to the broadcast sink",
		},
	)

	BarsBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mockfeed_bars_broadcast_total",
			Help: "Total number of bars handed to the broadcast sink",
		},
	)

	QuoteFlushBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mockfeed_quote_flush_batch_size",
			Help:    "Number of queued quotes drained per flush, before deduplication",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// Feed lifecycle and task health
var (
	FeedRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mockfeed_feed_running",
			Help: "1 while the mock feed is running, 0 otherwise",
		},
	)

	TaskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockfeed_task_failures_total",
			Help: "Periodic task invocations that failed and were recovered",
		},
		[]string{"task"},
	)
)

// Sink metrics
var (
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mockfeed_ws_connections",
			Help: "Current number of market data WebSocket subscribers",
		},
	)

	SinkPublishErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockfeed_sink_publish_errors_total",
			Help: "Publish failures per broadcast sink",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(TicksGenerated, QuotesBroadcast, BarsBroadcast, QuoteFlushBatchSize)
	prometheus.MustRegister(FeedRunning, TaskFailures)
	prometheus.MustRegister(WSConnections, SinkPublishErrors)
}
