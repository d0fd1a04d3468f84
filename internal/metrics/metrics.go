package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"}, // "text", "image" or "both"
	)

	MessagePushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_message_pushes_total",
			Help: "Total newMessage events pushed over live connections",
		},
	)

	CallEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_call_events_total",
			Help: "Total call signaling events relayed",
		},
		[]string{"event"},
	)

	CallDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_call_drops_total",
			Help: "Total call signaling events dropped",
		},
		[]string{"reason"}, // "offline", "invalid_transition", "no_session"
	)

	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_socket_connections",
			Help: "Currently open socket connections",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)

	AssetUploadLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_asset_upload_latency_seconds",
			Help:    "Asset store upload latency",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		},
	)
)
