package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Metrics
var (
	// MessagesReceived tracks parsed lines received from the chat server by command
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_messages_received_total",
			Help: "Total protocol messages received by command",
		},
		[]string{"command"},
	)

	// MessagesSent tracks lines written to the chat server by command
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_messages_sent_total",
			Help: "Total protocol messages sent by command",
		},
		[]string{"command"},
	)

	// Reconnects tracks successful reconnects after a restart
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmi_reconnects_total",
			Help: "Total successful reconnects",
		},
	)

	// ReconnectFailures tracks failed reconnect attempts
	ReconnectFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmi_reconnect_failures_total",
			Help: "Total failed reconnect attempts",
		},
	)

	// SendDuration tracks how long a single frame write takes
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmi_send_duration_seconds",
			Help:    "Time to write one frame to the chat server",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Channel Metrics
var (
	// ChannelsReady tracks channels materialized and held in the lookup tables
	ChannelsReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmi_channels_ready",
			Help: "Number of ready channels",
		},
	)

	// AccumulationTimeouts tracks channels finalized with partial data
	AccumulationTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmi_accumulation_timeouts_total",
			Help: "Total channel accumulations finalized by timeout",
		},
	)

	// DelayedMessages tracks messages waiting for their channel to become ready
	DelayedMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmi_delayed_messages",
			Help: "Messages currently waiting for channel readiness",
		},
	)

	// DelayedMessagesDropped tracks messages dropped because the delay queue was full
	DelayedMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmi_delayed_messages_dropped_total",
			Help: "Total delayed messages dropped at the queue cap",
		},
	)
)

// Dispatch Metrics
var (
	// EventsDispatched tracks handler invocations by event
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_events_dispatched_total",
			Help: "Total event handler invocations by event",
		},
		[]string{"event"},
	)

	// HandlerPanics tracks panics recovered from event handlers
	HandlerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_handler_panics_total",
			Help: "Total panics recovered from event handlers",
		},
		[]string{"event"},
	)

	// UnknownCommands tracks messages without a command handler
	UnknownCommands = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmi_unknown_commands_total",
			Help: "Total messages with an unhandled command",
		},
	)
)

// Collaborator Metrics
var (
	// EventSubNotifications tracks webhook deliveries by subscription type and result
	EventSubNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_eventsub_notifications_total",
			Help: "Total EventSub webhook deliveries by type and result",
		},
		[]string{"type", "result"},
	)

	// RedisOpsTotal tracks redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks redis operation latency
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks failed redis dials
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total failed Redis connection attempts",
		},
	)

	// ChannelSourceRequests tracks helix requests of the channel source by status
	ChannelSourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmi_channel_source_requests_total",
			Help: "Total helix requests made by the channel source by status",
		},
		[]string{"status"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests served by route, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks request latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// HTTPErrors tracks error responses by error type
	HTTPErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
