package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec

	engineRunTotal    *prometheus.CounterVec
	engineRunDuration *prometheus.HistogramVec
	engineErrorsTotal *prometheus.CounterVec
	providerCooldown  *prometheus.GaugeVec

	githubRequestsTotal   *prometheus.CounterVec
	githubRequestDuration prometheus.Histogram

	activeConversations    prometheus.Gauge
	conversationIterations prometheus.Histogram
	reconnectsTotal        prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			dispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dispatch_total",
					Help: "Total tool dispatches by tool and result status.",
				},
				[]string{"tool", "status"},
			),
			dispatchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "dispatch_duration_seconds",
					Help:    "Tool dispatch duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			dispatchErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dispatch_errors_total",
					Help: "Total failed tool dispatches by tool.",
				},
				[]string{"tool"},
			),
			engineRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engine_run_total",
					Help: "Total reasoning engine calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			engineRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "engine_run_duration_seconds",
					Help:    "Reasoning engine call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			engineErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engine_errors_total",
					Help: "Total reasoning engine errors by provider.",
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "provider_cooldown_active",
					Help: "Provider cooldown active state (1 active, 0 inactive).",
				},
				[]string{"provider"},
			),
			githubRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "github_requests_total",
					Help: "Total GitHub API requests by endpoint and status.",
				},
				[]string{"endpoint", "status"},
			),
			githubRequestDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "github_request_duration_seconds",
					Help:    "GitHub API request duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			activeConversations: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_conversations",
					Help: "Conversations currently inside the agentic loop.",
				},
			),
			conversationIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "conversation_iterations",
					Help:    "Iterations consumed per completed conversation.",
					Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
				},
			),
			reconnectsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "router_reconnects_total",
					Help: "Total reconnect attempts against the router channel.",
				},
			),
		}

		prometheus.MustRegister(
			m.dispatchTotal,
			m.dispatchDuration,
			m.dispatchErrors,
			m.engineRunTotal,
			m.engineRunDuration,
			m.engineErrorsTotal,
			m.providerCooldown,
			m.githubRequestsTotal,
			m.githubRequestDuration,
			m.activeConversations,
			m.conversationIterations,
			m.reconnectsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordDispatch(tool, status string, duration time.Duration) {
	m := getMetrics()
	m.dispatchTotal.WithLabelValues(tool, status).Inc()
	m.dispatchDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if status != "success" {
		m.dispatchErrors.WithLabelValues(tool).Inc()
	}
}

func RecordEngineRun(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.engineRunTotal.WithLabelValues(provider, status).Inc()
	m.engineRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.engineErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func SetProviderCooldown(provider string, active bool) {
	m := getMetrics()
	value := 0.0
	if active {
		value = 1.0
	}
	m.providerCooldown.WithLabelValues(provider).Set(value)
}

func RecordGitHubRequest(endpoint, status string, duration time.Duration) {
	m := getMetrics()
	m.githubRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.githubRequestDuration.Observe(duration.Seconds())
}

func ConversationStarted() {
	getMetrics().activeConversations.Inc()
}

func ConversationFinished(iterations int) {
	m := getMetrics()
	m.activeConversations.Dec()
	m.conversationIterations.Observe(float64(iterations))
}

func RecordReconnect() {
	getMetrics().reconnectsTotal.Inc()
}
